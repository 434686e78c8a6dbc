package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/internal/domain/types"
)

// GuesserDependencies defines the interface for guesser operations.
type GuesserDependencies interface {
	EnsureGuesser(ctx context.Context, handle string) (model.Guesser, bool, error)
	Profile(ctx context.Context, id string) (types.Profile, error)
}

// GuessersHandler handles guesser login and profile requests.
type GuessersHandler struct {
	deps GuesserDependencies
}

type guesserRequest struct {
	Handle string `json:"handle" validate:"required,max=64"`
}

type guesserResponse struct {
	Guesser model.Guesser `json:"guesser"`
	Created bool          `json:"created"`
}

// NewGuessersHandler creates a new guessers handler.
func NewGuessersHandler(deps GuesserDependencies) *GuessersHandler {
	return &GuessersHandler{deps: deps}
}

// HandlePostGuesser handles POST /guessers requests. A known handle logs in
// to the existing guesser.
func (h *GuessersHandler) HandlePostGuesser(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_guesser"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req guesserRequest
	if err := readAndValidateRequest(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	g, created, err := h.deps.EnsureGuesser(r.Context(), req.Handle)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, guesserResponse{Guesser: g, Created: created})
}

// HandleGetGuesser handles GET /guessers/{id} requests.
func (h *GuessersHandler) HandleGetGuesser(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_guesser"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/guessers/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	profile, err := h.deps.Profile(r.Context(), id)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
