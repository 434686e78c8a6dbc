// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/bullbear/internal/adapters/pricefeed"
	"github.com/okian/bullbear/internal/adapters/repository"
	service "github.com/okian/bullbear/internal/app"
	"github.com/okian/bullbear/internal/domain/scoring"
	"github.com/okian/bullbear/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider
	GuesserDependencies
	PostDependencies
	GuessDependencies
	LeaderboardDependencies
	RankDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	maxLimit   int
	guessRate  float64
	guessBurst int

	healthHandler      *HealthHandler
	metricsHandler     http.Handler
	statsHandler       *StatsHandler
	guessersHandler    *GuessersHandler
	postsHandler       *PostsHandler
	guessesHandler     *GuessesHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		maxLimit:   DefaultMaxLeaderboardLimit,
		guessRate:  DefaultGuessRatePerSec,
		guessBurst: DefaultGuessRateBurst,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.metricsHandler = NewMetricsHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.guessersHandler = NewGuessersHandler(deps)
	s.postsHandler = NewPostsHandler(deps)
	s.guessesHandler = NewGuessesHandler(deps, s.guessRate, s.guessBurst)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.rankHandler = NewRankHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.metricsHandler)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/guessers", MetricsMiddleware(s.guessersHandler.HandlePostGuesser, "guessers"))
	mux.HandleFunc("/guessers/", MetricsMiddleware(s.guessersHandler.HandleGetGuesser, "guesser"))
	mux.HandleFunc("/posts", MetricsMiddleware(s.postsHandler.HandlePostPost, "posts"))
	mux.HandleFunc("/posts/current", MetricsMiddleware(s.postsHandler.HandleGetCurrent, "posts_current"))
	mux.HandleFunc("/posts/latest", MetricsMiddleware(s.postsHandler.HandleGetLatest, "posts_latest"))
	mux.HandleFunc("/posts/resolve", MetricsMiddleware(s.postsHandler.HandleResolve, "posts_resolve"))
	mux.HandleFunc("/guesses", MetricsMiddleware(s.guessesHandler.HandlePostGuess, "guesses"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps an upstream error onto a status code and error code.
func writeFailure(w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	writeError(w, status, code, Wrap(op, err))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidDirection),
		errors.Is(err, service.ErrInvalidHandle),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrNoPendingPost):
		return http.StatusNotFound, "no_pending_post"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrDuplicateGuess):
		return http.StatusConflict, "duplicate_guess"
	case errors.Is(err, service.ErrPostClosed):
		return http.StatusConflict, "post_closed"
	case errors.Is(err, service.ErrPendingPostExists):
		return http.StatusConflict, "pending_post_exists"
	case errors.Is(err, scoring.ErrAlreadyResolved):
		return http.StatusConflict, "already_resolved"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, pricefeed.ErrNoPrice), errors.Is(err, pricefeed.ErrUnavailable):
		return http.StatusBadGateway, "price_unavailable"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
