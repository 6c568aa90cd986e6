package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicroom-core/internal/apperr"
	"musicroom-core/internal/model"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestInTxCommits(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 3)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("UPDATE accounts SET tier").
		WithArgs("acc-1", "elevated").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(r Repo) error {
		return r.SetAccountTier(context.Background(), "acc-1", model.TierElevated)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 3)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("UPDATE accounts SET tier").
		WithArgs("missing", "elevated").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(r Repo) error {
		return r.SetAccountTier(context.Background(), "missing", model.TierElevated)
	})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRetriesSerializationFailure(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 3)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("INSERT INTO relationships").
		WithArgs("a", "b").
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("INSERT INTO relationships").
		WithArgs("a", "b").
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	calls := 0
	err := s.InTx(context.Background(), func(r Repo) error {
		calls++
		return r.InsertEdgePair(context.Background(), "a", "b")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxGivesUpAfterMaxRetries(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 0)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("INSERT INTO relationships").
		WithArgs("a", "b").
		WillReturnError(&pgconn.PgError{Code: "40P01"})
	mock.ExpectRollback()

	err := s.InTx(context.Background(), func(r Repo) error {
		return r.InsertEdgePair(context.Background(), "a", "b")
	})
	require.Error(t, err)
	assert.True(t, retryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRetriesPositionCollision(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 3)

	track := func() *model.Track {
		return &model.Track{ResourceKind: model.KindEvent, ResourceID: "ev-1", Title: "x", AddedBy: "acc-1"}
	}

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("INSERT INTO tracks").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_tracks_resource_position"})
	mock.ExpectRollback()
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectQuery("INSERT INTO tracks").
		WillReturnRows(pgxmock.NewRows([]string{"id", "added_at", "status", "tally", "position"}).
			AddRow("tr-1", fixedTime, model.TrackUnplayed, 0, 2))
	mock.ExpectCommit()

	var got *model.Track
	calls := 0
	err := s.InTx(context.Background(), func(r Repo) error {
		calls++
		got = track()
		return r.InsertTrack(context.Background(), got)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, got.Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryableUniqueViolation(t *testing.T) {
	other := apperr.Wrap(apperr.KindConflict, &pgconn.PgError{Code: "23505", ConstraintName: "accounts_handle_key"}, "account already exists")
	position := apperr.Wrap(apperr.KindConflict, &pgconn.PgError{Code: "23505", ConstraintName: "idx_tracks_resource_position"}, "track already exists")

	assert.False(t, retryable(other))
	assert.True(t, retryable(position))
}

func TestInTxDoesNotRetryOtherErrors(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 3)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectRollback()

	calls := 0
	err := s.InTx(context.Background(), func(r Repo) error {
		calls++
		return apperr.Forbidden("no")
	})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViewIsReadOnly(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 3)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery("SELECT id, handle, contact, tier, created_at").
		WithArgs("acc-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "handle", "contact", "tier", "created_at"}).
			AddRow("acc-1", "dj", "dj@example.com", model.TierElevated, fixedTime))
	mock.ExpectCommit()

	var got *model.Account
	err := s.View(context.Background(), func(r Repo) error {
		var err error
		got, err = r.GetAccount(context.Background(), "acc-1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "dj", got.Handle)
	assert.Equal(t, model.TierElevated, got.Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginFailure(t *testing.T) {
	mock := newMock(t)
	s := New(mock, 3)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable}).WillReturnError(errors.New("pool closed"))

	err := s.InTx(context.Background(), func(r Repo) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, apperr.KindConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, apperr.KindNotFound},
		{"check", &pgconn.PgError{Code: "23514"}, apperr.KindInvalidArgument},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, apperr.KindInternal},
		{"plain", errors.New("boom"), apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, apperr.KindOf(mapErr(tt.err, "thing")))
		})
	}
	assert.NoError(t, mapErr(nil, "thing"))
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)
	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts").WillReturnError(errors.New("permission denied"))

	err := Migrate(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate step 0")
}
