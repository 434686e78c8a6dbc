package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/internal/domain/scoring"
	"github.com/okian/bullbear/internal/domain/types"
	"github.com/okian/bullbear/pkg/metrics"
)


// MemoryStore is an in-memory Store. Guessers are ranked by a treap so TopN
// and Rank do not rescan the whole population.
type MemoryStore struct {
	mu sync.RWMutex

	guessers map[string]model.Guesser
	byHandle map[string]string // handle -> guesser id
	root     *node

	posts     map[string]model.Post
	postOrder []string // insertion order

	guesses     map[string]model.Guess
	byPost      map[string][]string // post id -> guess ids, insertion order
	byGuesser   map[string][]string // guesser id -> guess ids, insertion order
	guessByPair map[string]string   // guessKey -> guess id

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	stopOnce              sync.Once
}

// NewMemoryStore constructs a memory store and starts its gauge updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		guessers:              make(map[string]model.Guesser),
		byHandle:              make(map[string]string),
		posts:                 make(map[string]model.Post),
		guesses:               make(map[string]model.Guess),
		byPost:                make(map[string][]string),
		byGuesser:             make(map[string][]string),
		guessByPair:           make(map[string]string),
		metricsUpdateInterval: metrics.DefaultRefreshInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

func track(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func keyOf(g model.Guesser) rankKey {
	return rankKey{score: g.Score, handle: g.Handle, id: g.ID}
}

// CreateGuesser implements Store.
func (s *MemoryStore) CreateGuesser(_ context.Context, g model.Guesser) error {
	defer track("create_guesser", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guessers[g.ID]; ok {
		return fmt.Errorf("guesser %s: %w", g.ID, ErrConflict)
	}
	if _, ok := s.byHandle[g.Handle]; ok {
		return fmt.Errorf("handle %s: %w", g.Handle, ErrConflict)
	}
	s.guessers[g.ID] = g
	s.byHandle[g.Handle] = g.ID
	s.root = insert(s.root, keyOf(g))
	return nil
}

// Guesser implements Store.
func (s *MemoryStore) Guesser(_ context.Context, id string) (model.Guesser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.guessers[id]
	if !ok {
		return model.Guesser{}, fmt.Errorf("guesser %s: %w", id, ErrNotFound)
	}
	return g, nil
}

// GuesserByHandle implements Store.
func (s *MemoryStore) GuesserByHandle(_ context.Context, handle string) (model.Guesser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHandle[handle]
	if !ok {
		return model.Guesser{}, fmt.Errorf("handle %s: %w", handle, ErrNotFound)
	}
	return s.guessers[id], nil
}

// GuessersByID implements Store.
func (s *MemoryStore) GuessersByID(_ context.Context, ids []string) (map[string]model.Guesser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Guesser, len(ids))
	for _, id := range ids {
		if g, ok := s.guessers[id]; ok {
			out[id] = g
		}
	}
	return out, nil
}

// CreatePost implements Store.
func (s *MemoryStore) CreatePost(_ context.Context, p model.Post) error {
	defer track("create_post", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[p.ID]; ok {
		return fmt.Errorf("post %s: %w", p.ID, ErrConflict)
	}
	s.posts[p.ID] = p
	s.postOrder = append(s.postOrder, p.ID)
	return nil
}

// Post implements Store.
func (s *MemoryStore) Post(_ context.Context, id string) (model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return model.Post{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func postTime(p model.Post) time.Time {
	if p.PublishedAt.IsZero() {
		return p.CreatedAt
	}
	return p.PublishedAt
}

// LatestPost implements Store.
func (s *MemoryStore) LatestPost(_ context.Context) (model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest model.Post
		found  bool
	)
	for _, id := range s.postOrder {
		p := s.posts[id]
		if !found || !postTime(p).Before(postTime(latest)) {
			latest, found = p, true
		}
	}
	if !found {
		return model.Post{}, fmt.Errorf("latest post: %w", ErrNotFound)
	}
	return latest, nil
}

// PendingPost implements Store.
func (s *MemoryStore) PendingPost(_ context.Context) (model.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.postOrder {
		if p := s.posts[id]; !p.Resolved() {
			return p, nil
		}
	}
	return model.Post{}, fmt.Errorf("pending post: %w", ErrNotFound)
}

// CreateGuess implements Store.
func (s *MemoryStore) CreateGuess(_ context.Context, g model.Guess) error {
	defer track("create_guess", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guesses[g.ID]; ok {
		return fmt.Errorf("guess %s: %w", g.ID, ErrConflict)
	}
	pair := guessKey(g.GuesserID, g.PostID)
	if _, ok := s.guessByPair[pair]; ok {
		return fmt.Errorf("guesser %s on post %s: %w", g.GuesserID, g.PostID, ErrConflict)
	}
	s.guesses[g.ID] = g
	s.guessByPair[pair] = g.ID
	s.byPost[g.PostID] = append(s.byPost[g.PostID], g.ID)
	s.byGuesser[g.GuesserID] = append(s.byGuesser[g.GuesserID], g.ID)
	return nil
}

// GuessesForPost implements Store.
func (s *MemoryStore) GuessesForPost(_ context.Context, postID string) ([]model.Guess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byPost[postID]
	out := make([]model.Guess, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.guesses[id])
	}
	return out, nil
}

// GuessesByGuesser implements Store.
func (s *MemoryStore) GuessesByGuesser(_ context.Context, guesserID string) ([]model.Guess, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byGuesser[guesserID]
	out := make([]model.Guess, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, s.guesses[ids[i]])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// PersistResolution implements Store. Every reference is checked before the
// first write so a failure leaves the store untouched.
func (s *MemoryStore) PersistResolution(_ context.Context, post model.Post, guesses []model.Guess, guessers []model.Guesser) error {
	defer track("persist_resolution", time.Now())
	if !post.Resolved() {
		return fmt.Errorf("post %s: %w", post.ID, scoring.ErrUnresolvedPost)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.posts[post.ID]
	if !ok {
		return fmt.Errorf("post %s: %w", post.ID, ErrNotFound)
	}
	if stored.Resolved() {
		return fmt.Errorf("post %s: %w", post.ID, scoring.ErrAlreadyResolved)
	}
	for _, g := range guessers {
		if _, ok := s.guessers[g.ID]; !ok {
			return fmt.Errorf("guesser %s: %w", g.ID, ErrNotFound)
		}
	}

	s.posts[post.ID] = post
	for _, g := range guesses {
		if cur, ok := s.guesses[g.ID]; ok && cur.Correctness == model.Pending {
			cur.Correctness = g.Correctness
			s.guesses[g.ID] = cur
		}
	}
	for _, g := range guessers {
		old := s.guessers[g.ID]
		s.root = deleteNode(s.root, keyOf(old))
		// handle is immutable here; only statistics move
		old.Score, old.Streak = g.Score, g.Streak
		old.TotalGuesses, old.CorrectGuesses = g.TotalGuesses, g.CorrectGuesses
		s.guessers[g.ID] = old
		s.root = insert(s.root, keyOf(old))
	}
	return nil
}

// TopN implements Store.
func (s *MemoryStore) TopN(_ context.Context, n int) ([]types.Entry, error) {
	defer track("top_n", time.Now())
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, min(n, len(s.guessers)))
	collectTopN(s.root, n, &ids)
	out := make([]types.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.EntryFor(0, s.guessers[id]))
	}
	assignRanksWithTies(out)
	return out, nil
}

// Rank implements Store.
func (s *MemoryStore) Rank(_ context.Context, guesserID string) (types.Entry, error) {
	defer track("rank", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.guessers[guesserID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, fmt.Errorf("guesser %s: %w", guesserID, ErrNotFound)
	}
	var (
		last  int64
		above int
	)
	countScoresAbove(s.root, g.Score, &last, &above)
	return types.EntryFor(above+1, g), nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.guessers), nil
}

// Close stops the gauge updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// startMetricsUpdater periodically publishes population gauges.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	metrics.UpdateTotalGuessers(len(s.guessers))
	for _, id := range s.postOrder {
		if p := s.posts[id]; !p.Resolved() {
			pending := 0
			for _, gid := range s.byPost[id] {
				if s.guesses[gid].Correctness == model.Pending {
					pending++
				}
			}
			metrics.UpdatePendingGuesses(pending)
			metrics.UpdatePendingPostAge(time.Since(p.CreatedAt))
			return
		}
	}
	metrics.UpdatePendingGuesses(0)
	metrics.UpdatePendingPostAge(0)
}
