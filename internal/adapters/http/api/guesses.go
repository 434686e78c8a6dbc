package api

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/pkg/metrics"
)

// GuessDependencies defines the interface for guess submission.
type GuessDependencies interface {
	CurrentPost(ctx context.Context) (model.Post, error)
	SubmitGuess(ctx context.Context, guesserID, postID string, d model.Direction) (model.Guess, error)
}

// GuessesHandler handles guess requests.
type GuessesHandler struct {
	deps    GuessDependencies
	limiter *rate.Limiter
}

// guessRequest targets the pending post when post_id is empty.
type guessRequest struct {
	GuesserID string `json:"guesser_id" validate:"required,max=128"`
	PostID    string `json:"post_id" validate:"max=128"`
	Direction string `json:"direction" validate:"required,oneof=up down bull bear"`
}

// NewGuessesHandler creates a guesses handler admitting perSec submissions
// with the given burst.
func NewGuessesHandler(deps GuessDependencies, perSec float64, burst int) *GuessesHandler {
	return &GuessesHandler{
		deps:    deps,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

// HandlePostGuess handles POST /guesses requests.
func (h *GuessesHandler) HandlePostGuess(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_guess"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if !h.limiter.Allow() {
		metrics.RecordRateLimited("guesses")
		writeError(w, http.StatusTooManyRequests, "rate_limited", NewKind(op, ErrRateLimited))
		return
	}
	var req guessRequest
	if err := readAndValidateRequest(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	dir, err := model.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	postID := req.PostID
	if postID == "" {
		p, err := h.deps.CurrentPost(r.Context())
		if err != nil {
			writeFailure(w, op, err)
			return
		}
		postID = p.ID
	}
	g, err := h.deps.SubmitGuess(r.Context(), req.GuesserID, postID, dir)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}
