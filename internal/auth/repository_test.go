// AngelaMos | 2026
// repository_test.go

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

func newTokenRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(sqlx.NewDb(db, "pgx")), mock
}

func TestRotateConsumesAndInserts(t *testing.T) {
	repo, mock := newTokenRepo(t)
	now := time.Now()
	next := &RefreshToken{ID: "new", UserID: "u1", TokenHash: "h", FamilyID: "f", ExpiresAt: now.Add(time.Hour)}

	mock.ExpectQuery(`WITH consumed AS`).
		WithArgs("new", "u1", "h", "f", next.ExpiresAt, "", "", "old").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	require.NoError(t, repo.Rotate(context.Background(), "old", next))
	assert.Equal(t, now, next.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateAlreadyConsumed(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectQuery(`WITH consumed AS`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

	err := repo.Rotate(context.Background(), "old", &RefreshToken{ID: "new"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRevokeByIDMissing(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectExec(`UPDATE refresh_tokens`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.RevokeByID(context.Background(), "gone"), core.ErrNotFound)
}
