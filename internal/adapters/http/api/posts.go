package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	service "github.com/okian/bullbear/internal/app"
	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/internal/domain/scoring"
)

// PostDependencies defines the interface for post tracking and resolution.
type PostDependencies interface {
	CurrentPost(ctx context.Context) (model.Post, error)
	LatestPost(ctx context.Context) (model.Post, error)
	TrackPost(ctx context.Context, in service.PostInput) (model.Post, error)
	ResolvePending(ctx context.Context) (scoring.Result, error)
	ResolvePost(ctx context.Context, postID string, priceAfter decimal.Decimal) (scoring.Result, error)
}

// PostsHandler handles post requests.
type PostsHandler struct {
	deps PostDependencies
}

type postRequest struct {
	ExternalID  string      `json:"external_id" validate:"max=128"`
	Content     string      `json:"content" validate:"max=1000"`
	PublishedAt *time.Time  `json:"published_at"`
	PriceBefore json.Number `json:"price_before" validate:"required,numeric"`
}

// resolveRequest resolves post_id (the pending post when empty) at
// price_after, or at a sampled price when price_after is empty.
type resolveRequest struct {
	PostID     string      `json:"post_id" validate:"max=128"`
	PriceAfter json.Number `json:"price_after" validate:"omitempty,numeric"`
}

type danglingReference struct {
	GuessID   string `json:"guess_id"`
	GuesserID string `json:"guesser_id"`
}

type resolutionResponse struct {
	Post     model.Post          `json:"post"`
	Guesses  []model.Guess       `json:"guesses"`
	Guessers []model.Guesser     `json:"guessers"`
	Dangling []danglingReference `json:"dangling"`
}

func newResolutionResponse(res scoring.Result) resolutionResponse {
	out := resolutionResponse{
		Post:     res.Post,
		Guesses:  res.Guesses,
		Guessers: res.Guessers,
		Dangling: make([]danglingReference, 0, len(res.Dangling)),
	}
	for _, d := range res.Dangling {
		out.Dangling = append(out.Dangling, danglingReference{GuessID: d.GuessID, GuesserID: d.GuesserID})
	}
	return out
}

// NewPostsHandler creates a new posts handler.
func NewPostsHandler(deps PostDependencies) *PostsHandler {
	return &PostsHandler{deps: deps}
}

// HandleGetCurrent handles GET /posts/current requests.
func (h *PostsHandler) HandleGetCurrent(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_current_post"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	p, err := h.deps.CurrentPost(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleGetLatest handles GET /posts/latest requests.
func (h *PostsHandler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_latest_post"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	p, err := h.deps.LatestPost(r.Context())
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandlePostPost handles POST /posts requests.
func (h *PostsHandler) HandlePostPost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_post"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req postRequest
	if err := readAndValidateRequest(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	price, err := decimal.NewFromString(req.PriceBefore.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	in := service.PostInput{
		ExternalID:  req.ExternalID,
		Content:     req.Content,
		PriceBefore: price,
	}
	if req.PublishedAt != nil {
		in.PublishedAt = *req.PublishedAt
	}
	p, err := h.deps.TrackPost(r.Context(), in)
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleResolve handles POST /posts/resolve requests.
func (h *PostsHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.resolve_post"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req resolveRequest
	if err := readAndValidateRequest(w, r, op, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	var (
		res scoring.Result
		err error
	)
	if req.PriceAfter == "" {
		if req.PostID != "" {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		res, err = h.deps.ResolvePending(r.Context())
	} else {
		res, err = h.resolveAt(r.Context(), op, req)
	}
	if err != nil {
		writeFailure(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newResolutionResponse(res))
}

func (h *PostsHandler) resolveAt(ctx context.Context, op string, req resolveRequest) (scoring.Result, error) {
	price, err := decimal.NewFromString(req.PriceAfter.String())
	if err != nil {
		return scoring.Result{}, WrapKind(op, ErrBadRequest, err)
	}
	postID := req.PostID
	if postID == "" {
		p, err := h.deps.CurrentPost(ctx)
		if err != nil {
			return scoring.Result{}, err
		}
		postID = p.ID
	}
	return h.deps.ResolvePost(ctx, postID, price)
}
