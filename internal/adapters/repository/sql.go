package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/bullbear/internal/domain/model"
	"github.com/okian/bullbear/internal/domain/scoring"
	"github.com/okian/bullbear/internal/domain/types"
	"github.com/okian/bullbear/pkg/metrics"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultPostgresMaxOpenConns = 10
	defaultConnMaxLifetime      = 30 * time.Minute
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS guessers (
		id TEXT PRIMARY KEY,
		handle TEXT NOT NULL UNIQUE,
		score BIGINT NOT NULL DEFAULT 0,
		streak INTEGER NOT NULL DEFAULT 0,
		total_guesses INTEGER NOT NULL DEFAULT 0,
		correct_guesses INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		published_at BIGINT,
		price_before TEXT NOT NULL,
		price_after TEXT,
		outcome TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS guesses (
		id TEXT PRIMARY KEY,
		guesser_id TEXT NOT NULL REFERENCES guessers(id),
		post_id TEXT NOT NULL REFERENCES posts(id),
		direction TEXT NOT NULL,
		correctness TEXT NOT NULL DEFAULT 'pending',
		created_at BIGINT NOT NULL,
		UNIQUE (guesser_id, post_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_guessers_score ON guessers(score DESC, handle)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_outcome ON posts(outcome)`,
	`CREATE INDEX IF NOT EXISTS idx_guesses_post ON guesses(post_id)`,
	`CREATE INDEX IF NOT EXISTS idx_guesses_guesser ON guesses(guesser_id)`,
}

const (
	guesserCols = `id, handle, score, streak, total_guesses, correct_guesses, created_at`
	postCols    = `id, external_id, content, published_at, price_before, price_after, outcome, created_at`
	guessCols   = `id, guesser_id, post_id, direction, correctness, created_at`
)

// SQLStore is a Store backed by database/sql. It runs on SQLite (modernc) or PostgreSQL (lib/pq).
type SQLStore struct {
	db              *sql.DB
	driver          string
	maxOpenConns    int
	connMaxLifetime time.Duration
}

// NewSQLStore opens the database, applies the schema and returns a ready store.
func NewSQLStore(ctx context.Context, driver, dsn string, opts ...SQLOption) (*SQLStore, error) {
	s := &SQLStore{driver: driver, connMaxLifetime: defaultConnMaxLifetime}
	switch driver {
	case DriverSQLite:
	case DriverPostgres:
		s.maxOpenConns = defaultPostgresMaxOpenConns
	default:
		return nil, fmt.Errorf("%q: %w", driver, ErrUnknownDriver)
	}
	for _, opt := range opts {
		opt(s)
	}
	if driver == DriverSQLite {
		// one writer; also keeps a ":memory:" database on a single connection
		s.maxOpenConns = 1
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetConnMaxLifetime(s.connMaxLifetime)
	s.db = db

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", s.driver, err)
	}
	if s.driver == DriverSQLite {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
			if _, err := s.db.ExecContext(ctx, pragma); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// observe records latency and failures of one store operation.
func observe(op string, start time.Time, err *error) {
	track(op, start)
	if *err != nil && !errors.Is(*err, ErrNotFound) {
		metrics.RecordStoreError(op)
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scanner interface {
	Scan(dest ...any) error
}

func millis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

func scanGuesser(row scanner) (model.Guesser, error) {
	var (
		g       model.Guesser
		created sql.NullInt64
	)
	if err := row.Scan(&g.ID, &g.Handle, &g.Score, &g.Streak, &g.TotalGuesses, &g.CorrectGuesses, &created); err != nil {
		return model.Guesser{}, err
	}
	g.CreatedAt = fromMillis(created)
	return g, nil
}

func scanPost(row scanner) (model.Post, error) {
	var (
		p                  model.Post
		published, created sql.NullInt64
		priceAfter         decimal.NullDecimal
		outcome            sql.NullString
	)
	if err := row.Scan(&p.ID, &p.ExternalID, &p.Content, &published, &p.PriceBefore, &priceAfter, &outcome, &created); err != nil {
		return model.Post{}, err
	}
	if outcome.Valid {
		o, err := model.ParseOutcome(outcome.String)
		if err != nil {
			return model.Post{}, err
		}
		p.Outcome = o
	}
	if priceAfter.Valid {
		p.PriceAfter = priceAfter.Decimal
	}
	p.PublishedAt = fromMillis(published)
	p.CreatedAt = fromMillis(created)
	return p, nil
}

func scanGuess(row scanner) (model.Guess, error) {
	var (
		g                      model.Guess
		direction, correctness string
		created                sql.NullInt64
	)
	if err := row.Scan(&g.ID, &g.GuesserID, &g.PostID, &direction, &correctness, &created); err != nil {
		return model.Guess{}, err
	}
	var err error
	if g.Direction, err = model.ParseDirection(direction); err != nil {
		return model.Guess{}, err
	}
	if g.Correctness, err = model.ParseCorrectness(correctness); err != nil {
		return model.Guess{}, err
	}
	g.CreatedAt = fromMillis(created)
	return g, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// CreateGuesser implements Store.
func (s *SQLStore) CreateGuesser(ctx context.Context, g model.Guesser) (err error) {
	defer observe("create_guesser", time.Now(), &err)
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO guessers (`+guesserCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		g.ID, g.Handle, g.Score, g.Streak, g.TotalGuesses, g.CorrectGuesses, g.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("guesser %s (%s): %w", g.ID, g.Handle, ErrConflict)
		}
		return fmt.Errorf("insert guesser: %w", err)
	}
	return nil
}

// Guesser implements Store.
func (s *SQLStore) Guesser(ctx context.Context, id string) (g model.Guesser, err error) {
	defer observe("guesser", time.Now(), &err)
	g, err = scanGuesser(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+guesserCols+` FROM guessers WHERE id = ?`), id))
	if err != nil {
		return model.Guesser{}, notFound(err, "guesser "+id)
	}
	return g, nil
}

// GuesserByHandle implements Store.
func (s *SQLStore) GuesserByHandle(ctx context.Context, handle string) (g model.Guesser, err error) {
	defer observe("guesser_by_handle", time.Now(), &err)
	g, err = scanGuesser(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+guesserCols+` FROM guessers WHERE handle = ?`), handle))
	if err != nil {
		return model.Guesser{}, notFound(err, "handle "+handle)
	}
	return g, nil
}

// GuessersByID implements Store.
func (s *SQLStore) GuessersByID(ctx context.Context, ids []string) (out map[string]model.Guesser, err error) {
	defer observe("guessers_by_id", time.Now(), &err)
	out = make(map[string]model.Guesser, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+guesserCols+` FROM guessers WHERE id IN (`+placeholders+`)`), args...)
	if err != nil {
		return nil, fmt.Errorf("query guessers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		g, err := scanGuesser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan guesser: %w", err)
		}
		out[g.ID] = g
	}
	return out, rows.Err()
}

// CreatePost implements Store.
func (s *SQLStore) CreatePost(ctx context.Context, p model.Post) (err error) {
	defer observe("create_post", time.Now(), &err)
	var priceAfter, outcome sql.NullString
	if p.Resolved() {
		priceAfter = sql.NullString{String: p.PriceAfter.String(), Valid: true}
		outcome = sql.NullString{String: p.Outcome.String(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO posts (`+postCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.ExternalID, p.Content, millis(p.PublishedAt), p.PriceBefore.String(), priceAfter, outcome, p.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("post %s: %w", p.ID, ErrConflict)
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// Post implements Store.
func (s *SQLStore) Post(ctx context.Context, id string) (p model.Post, err error) {
	defer observe("post", time.Now(), &err)
	p, err = scanPost(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+postCols+` FROM posts WHERE id = ?`), id))
	if err != nil {
		return model.Post{}, notFound(err, "post "+id)
	}
	return p, nil
}

// LatestPost implements Store.
func (s *SQLStore) LatestPost(ctx context.Context) (p model.Post, err error) {
	defer observe("latest_post", time.Now(), &err)
	p, err = scanPost(s.db.QueryRowContext(ctx,
		`SELECT `+postCols+` FROM posts ORDER BY COALESCE(published_at, created_at) DESC, created_at DESC LIMIT 1`))
	if err != nil {
		return model.Post{}, notFound(err, "latest post")
	}
	return p, nil
}

// PendingPost implements Store.
func (s *SQLStore) PendingPost(ctx context.Context) (p model.Post, err error) {
	defer observe("pending_post", time.Now(), &err)
	p, err = scanPost(s.db.QueryRowContext(ctx,
		`SELECT `+postCols+` FROM posts WHERE outcome IS NULL ORDER BY created_at ASC LIMIT 1`))
	if err != nil {
		return model.Post{}, notFound(err, "pending post")
	}
	return p, nil
}

// CreateGuess implements Store.
func (s *SQLStore) CreateGuess(ctx context.Context, g model.Guess) (err error) {
	defer observe("create_guess", time.Now(), &err)
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO guesses (`+guessCols+`) VALUES (?, ?, ?, ?, ?, ?)`),
		g.ID, g.GuesserID, g.PostID, g.Direction.String(), g.Correctness.String(), g.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("guesser %s on post %s: %w", g.GuesserID, g.PostID, ErrConflict)
		}
		return fmt.Errorf("insert guess: %w", err)
	}
	return nil
}

func (s *SQLStore) queryGuesses(ctx context.Context, query string, arg string) ([]model.Guess, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), arg)
	if err != nil {
		return nil, fmt.Errorf("query guesses: %w", err)
	}
	defer rows.Close()
	out := []model.Guess{}
	for rows.Next() {
		g, err := scanGuess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan guess: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GuessesForPost implements Store.
func (s *SQLStore) GuessesForPost(ctx context.Context, postID string) (out []model.Guess, err error) {
	defer observe("guesses_for_post", time.Now(), &err)
	return s.queryGuesses(ctx, `SELECT `+guessCols+` FROM guesses WHERE post_id = ? ORDER BY created_at ASC, id ASC`, postID)
}

// GuessesByGuesser implements Store.
func (s *SQLStore) GuessesByGuesser(ctx context.Context, guesserID string) (out []model.Guess, err error) {
	defer observe("guesses_by_guesser", time.Now(), &err)
	return s.queryGuesses(ctx, `SELECT `+guessCols+` FROM guesses WHERE guesser_id = ? ORDER BY created_at DESC, id DESC`, guesserID)
}

// PersistResolution implements Store in one transaction. The post row is
// claimed with a compare-and-set on outcome IS NULL.
func (s *SQLStore) PersistResolution(ctx context.Context, post model.Post, guesses []model.Guess, guessers []model.Guesser) (err error) {
	defer observe("persist_resolution", time.Now(), &err)
	if !post.Resolved() {
		return fmt.Errorf("post %s: %w", post.ID, scoring.ErrUnresolvedPost)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE posts SET price_after = ?, outcome = ? WHERE id = ? AND outcome IS NULL`),
		post.PriceAfter.String(), post.Outcome.String(), post.ID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if qerr := tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM posts WHERE id = ?`), post.ID).Scan(&exists); qerr != nil {
			return notFound(qerr, "post "+post.ID)
		}
		return fmt.Errorf("post %s: %w", post.ID, scoring.ErrAlreadyResolved)
	}

	for _, g := range guesses {
		if _, err = tx.ExecContext(ctx, s.rebind(`UPDATE guesses SET correctness = ? WHERE id = ? AND correctness = 'pending'`),
			g.Correctness.String(), g.ID); err != nil {
			return fmt.Errorf("update guess %s: %w", g.ID, err)
		}
	}

	for _, g := range guessers {
		res, err = tx.ExecContext(ctx, s.rebind(`UPDATE guessers SET score = ?, streak = ?, total_guesses = ?, correct_guesses = ? WHERE id = ?`),
			g.Score, g.Streak, g.TotalGuesses, g.CorrectGuesses, g.ID)
		if err != nil {
			return fmt.Errorf("update guesser %s: %w", g.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			err = fmt.Errorf("guesser %s: %w", g.ID, ErrNotFound)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// TopN implements Store.
func (s *SQLStore) TopN(ctx context.Context, n int) (out []types.Entry, err error) {
	defer observe("top_n", time.Now(), &err)
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+guesserCols+` FROM guessers ORDER BY score DESC, handle ASC, id ASC LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()
	out = []types.Entry{}
	for rows.Next() {
		g, err := scanGuesser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan guesser: %w", err)
		}
		out = append(out, types.EntryFor(0, g))
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	assignRanksWithTies(out)
	return out, nil
}

// Rank implements Store.
func (s *SQLStore) Rank(ctx context.Context, guesserID string) (e types.Entry, err error) {
	defer observe("rank", time.Now(), &err)
	g, err := s.Guesser(ctx, guesserID)
	if err != nil {
		return types.Entry{}, err
	}
	var above int
	if err = s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(DISTINCT score) FROM guessers WHERE score > ?`), g.Score).Scan(&above); err != nil {
		return types.Entry{}, fmt.Errorf("rank %s: %w", guesserID, err)
	}
	return types.EntryFor(above+1, g), nil
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context) (n int, err error) {
	defer observe("count", time.Now(), &err)
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM guessers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count guessers: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
