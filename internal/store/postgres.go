package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// notifyChannel is the LISTEN/NOTIFY channel carrying changed paths.
const notifyChannel = "store_changes"

// DefaultUpdateRetries bounds how often Update re-reads after losing a race.
const DefaultUpdateRetries = 5

const (
	listenRetryDelay  = time.Second
	changeReadTimeout = 5 * time.Second
)

// Postgres is a Store backed by the store_nodes and store_counters tables.
//
// All subscriptions share one LISTEN connection that is opened outside the
// pool on the first Subscribe. Changed values are read back one at a time on
// that listener's goroutine, so subscribers hold no pool connections.
type Postgres struct {
	pool       *pgxpool.Pool
	maxRetries int
	logger     zerolog.Logger

	mu         sync.Mutex
	subs       map[int]*subscriber
	nextSub    int
	stopListen context.CancelFunc
	listening  chan struct{}
}

// NewPostgres creates a PostgreSQL-backed store.
func NewPostgres(pool *pgxpool.Pool, maxRetries int, logger zerolog.Logger) *Postgres {
	if maxRetries < 1 {
		maxRetries = DefaultUpdateRetries
	}
	return &Postgres{
		pool:       pool,
		maxRetries: maxRetries,
		logger:     logger.With().Str("store", "postgres").Logger(),
		subs:       make(map[int]*subscriber),
	}
}

// Get returns the value at path or ErrNotFound.
func (s *Postgres) Get(ctx context.Context, path string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM store_nodes WHERE path = $1`, path).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.Error().Err(err).Str("path", path).Msg("failed to read value")
		return nil, classify("read value", err)
	}
	return value, nil
}

// Put replaces the value at path and notifies subscribers on commit.
func (s *Postgres) Put(ctx context.Context, path string, value []byte) error {
	query := `
		INSERT INTO store_nodes (path, value, version, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (path) DO UPDATE
		SET value = EXCLUDED.value, version = store_nodes.version + 1, updated_at = NOW()
	`

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, query, path, value); err != nil {
			return err
		}
		return notify(ctx, tx, path)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("failed to write value")
		return classify("write value", err)
	}

	s.logger.Debug().Str("path", path).Msg("value written")
	return nil
}

// Update runs an optimistic read-modify-write. A write only lands when the
// row version still matches the one fn saw; otherwise it re-reads and
// retries, giving up with ErrConflict after maxRetries attempts.
func (s *Postgres) Update(ctx context.Context, path string, fn UpdateFunc) ([]byte, error) {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		var (
			current []byte
			version int64
		)
		err := s.pool.QueryRow(ctx, `SELECT value, version FROM store_nodes WHERE path = $1`, path).Scan(&current, &version)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().Err(err).Str("path", path).Msg("failed to read value for update")
			return nil, classify("read value", err)
		}
		exists := err == nil

		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return current, nil
		}

		applied, err := s.compareAndSwap(ctx, path, next, exists, version)
		if err != nil {
			s.logger.Error().Err(err).Str("path", path).Msg("failed to update value")
			return nil, classify("update value", err)
		}
		if applied {
			return next, nil
		}

		s.logger.Debug().Str("path", path).Int("attempt", attempt).Msg("concurrent update detected, retrying")
	}

	s.logger.Warn().Str("path", path).Int("attempts", s.maxRetries).Msg("update abandoned after repeated conflicts")
	return nil, ErrConflict
}

func (s *Postgres) compareAndSwap(ctx context.Context, path string, value []byte, exists bool, version int64) (bool, error) {
	applied := false
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			tag pgconn.CommandTag
			err error
		)
		if exists {
			tag, err = tx.Exec(ctx, `
				UPDATE store_nodes
				SET value = $2, version = version + 1, updated_at = NOW()
				WHERE path = $1 AND version = $3
			`, path, value, version)
		} else {
			tag, err = tx.Exec(ctx, `
				INSERT INTO store_nodes (path, value, version, updated_at)
				VALUES ($1, $2, 1, NOW())
				ON CONFLICT (path) DO NOTHING
			`, path, value)
		}
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		applied = true
		return notify(ctx, tx, path)
	})
	return applied, err
}

// Increment adds one to the named counter in a single statement.
func (s *Postgres) Increment(ctx context.Context, counter string) (int64, error) {
	query := `
		INSERT INTO store_counters (name, value)
		VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = store_counters.value + 1
		RETURNING value
	`

	var value int64
	if err := s.pool.QueryRow(ctx, query, counter).Scan(&value); err != nil {
		s.logger.Error().Err(err).Str("counter", counter).Msg("failed to increment counter")
		return 0, classify("increment counter", err)
	}
	return value, nil
}

// List returns every entry below prefix ordered by path.
func (s *Postgres) List(ctx context.Context, prefix string) ([]Entry, error) {
	query := `
		SELECT path, value, version
		FROM store_nodes
		WHERE starts_with(path, $1)
		ORDER BY path
	`

	rows, err := s.pool.Query(ctx, query, prefix)
	if err != nil {
		s.logger.Error().Err(err).Str("prefix", prefix).Msg("failed to list values")
		return nil, classify("list values", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Value, &e.Version); err != nil {
			s.logger.Error().Err(err).Msg("failed to scan store row")
			return nil, fmt.Errorf("failed to scan store row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		s.logger.Error().Err(err).Msg("error iterating store rows")
		return nil, classify("iterate values", err)
	}

	return entries, nil
}

// Subscribe registers a subscriber with the shared change listener, starting
// the listener if it is not running yet.
func (s *Postgres) Subscribe(ctx context.Context, prefix string) (<-chan Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopListen == nil {
		conn, err := s.listen(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to start change listener")
			return nil, err
		}
		listenCtx, cancel := context.WithCancel(context.Background())
		s.stopListen = cancel
		s.listening = make(chan struct{})
		go s.dispatch(listenCtx, conn, s.listening)
	}

	sub := newSubscriber(prefix)
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub

	go func() {
		sub.run(ctx)
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}()

	s.logger.Debug().Str("prefix", prefix).Msg("subscription started")
	return sub.out, nil
}

// Close stops the change listener. Open subscriptions receive no further
// events and end with their contexts.
func (s *Postgres) Close() {
	s.mu.Lock()
	stop, done := s.stopListen, s.listening
	s.stopListen, s.listening = nil, nil
	s.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

// listen opens a connection outside the pool and LISTENs on it.
func (s *Postgres) listen(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, s.pool.Config().ConnConfig.Copy())
	if err != nil {
		return nil, classify("connect change listener", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, classify("listen for changes", err)
	}
	return conn, nil
}

// dispatch waits for notifications and fans each changed value out to the
// matching subscribers, reconnecting when the listener connection drops.
func (s *Postgres) dispatch(ctx context.Context, conn *pgx.Conn, done chan struct{}) {
	defer close(done)
	defer func() {
		if conn != nil {
			_ = conn.Close(context.Background())
		}
	}()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("change listener lost its connection, reconnecting")
			_ = conn.Close(context.Background())
			if conn = s.reconnect(ctx); conn == nil {
				return
			}
			continue
		}
		s.deliver(ctx, n.Payload)
	}
}

func (s *Postgres) reconnect(ctx context.Context) *pgx.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(listenRetryDelay):
		}

		conn, err := s.listen(ctx)
		if err == nil {
			s.logger.Info().Msg("change listener reconnected")
			return conn
		}
		s.logger.Warn().Err(err).Msg("failed to reconnect change listener")
	}
}

// deliver reads the changed value once and queues it for every subscriber
// whose prefix matches. Paths nobody watches are not read.
func (s *Postgres) deliver(ctx context.Context, path string) {
	s.mu.Lock()
	targets := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		if strings.HasPrefix(path, sub.prefix) {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	readCtx, cancel := context.WithTimeout(ctx, changeReadTimeout)
	value, err := s.Get(readCtx, path)
	cancel()
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("failed to read changed value")
		return
	}

	for _, sub := range targets {
		sub.push(Event{Path: path, Value: clone(value)})
	}
}

func notify(ctx context.Context, tx pgx.Tx, path string) error {
	_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, path)
	return err
}

// classify marks failures that did not come back from the server, and
// server errors a retry can clear, as transient. Other server errors and
// context cancellation keep their type.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && !transient(pgErr.Code) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return fmt.Errorf("failed to %s: %w: %w", op, ErrUnavailable, err)
}

func transient(code string) bool {
	return pgerrcode.IsConnectionException(code) ||
		pgerrcode.IsInsufficientResources(code) ||
		pgerrcode.IsOperatorIntervention(code) ||
		pgerrcode.IsTransactionRollback(code)
}
