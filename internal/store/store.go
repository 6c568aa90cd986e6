// Package store persists the music room entities in PostgreSQL. Every
// mutation runs inside a serializable transaction opened by Store.InTx.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"musicroom-core/internal/apperr"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is implemented by *pgxpool.Pool and can be mocked with pgxmock.
type DB interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Transactor runs units of work against a Repo.
type Transactor interface {
	// InTx runs fn in a serializable read-write transaction and retries it
	// on serialization failures. fn may run more than once.
	InTx(ctx context.Context, fn func(Repo) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Repo) error) error
}

type Store struct {
	db         DB
	maxRetries int
	log        *slog.Logger
}

func New(db DB, maxRetries int) *Store {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Store{
		db:         db,
		maxRetries: maxRetries,
		log:        slog.With("component", "store"),
	}
}

var (
	serializableTx = pgx.TxOptions{IsoLevel: pgx.Serializable}
	readOnlyTx     = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
)

func (s *Store) InTx(ctx context.Context, fn func(Repo) error) error {
	for attempt := 0; ; attempt++ {
		err := s.run(ctx, serializableTx, fn)
		if err == nil || !retryable(err) || attempt >= s.maxRetries {
			return err
		}
		s.log.Debug("retrying transaction", "attempt", attempt+1, "error", err)

		wait := time.Duration(attempt+1)*10*time.Millisecond + rand.N(10*time.Millisecond)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (s *Store) View(ctx context.Context, fn func(Repo) error) error {
	return s.run(ctx, readOnlyTx, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(Repo) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"

	// two appends racing for the same next position
	positionIndex = "idx_tracks_resource_position"
)

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	case codeUniqueViolation:
		return pgErr.ConstraintName == positionIndex
	}
	return false
}

// mapErr converts driver errors to the apperr taxonomy. what names the
// entity for caller-facing messages.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, err, what+" already exists")
		case codeForeignKeyViolation:
			return apperr.Wrap(apperr.KindNotFound, err, "referenced entity not found")
		case codeCheckViolation:
			return apperr.Wrap(apperr.KindInvalidArgument, err, "invalid "+what)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Queries implements Repo on top of a pool or a transaction.
type Queries struct {
	q Querier
}

func NewQueries(q Querier) *Queries { return &Queries{q: q} }
