// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

var listingColumns = []string{
	"id", "email", "full_name", "email_verified_at", "token_version",
	"created_at", "updated_at", "role",
}

func newUserService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewService(NewRepository(sqlx.NewDb(db, "pgx"))), mock
}

func expectListing(mock sqlmock.Sqlmock, id, role string) {
	now := time.Now()
	mock.ExpectQuery(`FROM users u\s+LEFT JOIN profiles p`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(listingColumns).
			AddRow(id, id+"@example.com", "Shopper", now, 0, now, now, role))
}

func TestDeleteUserRunsHooksFirst(t *testing.T) {
	svc, mock := newUserService(t)

	var order []string
	svc.OnDelete(func(_ context.Context, id string) error {
		order = append(order, "sessions:"+id)
		return nil
	})
	svc.OnDelete(func(_ context.Context, id string) error {
		order = append(order, "cart:"+id)
		return nil
	})

	expectListing(mock, "shopper", "user")
	mock.ExpectExec(`UPDATE users\s+SET deleted_at = NOW\(\)`).
		WithArgs("shopper").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.DeleteUser(context.Background(), "boss", "shopper"))
	assert.Equal(t, []string{"sessions:shopper", "cart:shopper"}, order)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserGuards(t *testing.T) {
	svc, mock := newUserService(t)

	err := svc.DeleteUser(context.Background(), "boss", "boss")
	assert.ErrorIs(t, err, core.ErrForbidden)

	expectListing(mock, "other-admin", "admin")
	err = svc.DeleteUser(context.Background(), "boss", "other-admin")
	assert.ErrorIs(t, err, core.ErrForbidden)

	mock.ExpectQuery(`FROM users u`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(listingColumns))
	err = svc.DeleteUser(context.Background(), "boss", "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserHookFailureKeepsAccount(t *testing.T) {
	svc, mock := newUserService(t)
	boom := errors.New("redis down")
	svc.OnDelete(func(context.Context, string) error { return boom })

	expectListing(mock, "shopper", "user")

	err := svc.DeleteUser(context.Background(), "boss", "shopper")
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet(), "no soft delete after a failed hook")
}

func TestCreateVerifiedUser(t *testing.T) {
	svc, mock := newUserService(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "ada@example.com", "hash", "Ada", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at", "token_version"}).
			AddRow(now, now, 0))

	info, err := svc.Create(context.Background(), "ada@example.com", "hash", "Ada", true)
	require.NoError(t, err)
	assert.True(t, info.EmailVerified)
	assert.NotEmpty(t, info.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmailNotFound(t *testing.T) {
	svc, mock := newUserService(t)

	mock.ExpectQuery(`FROM users\s+WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListUsersFiltersByRole(t *testing.T) {
	svc, mock := newUserService(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("%ada%", "admin").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY u.created_at DESC`).
		WithArgs("%ada%", "admin", 20, 0).
		WillReturnRows(sqlmock.NewRows(listingColumns).
			AddRow("u1", "ada@example.com", "Ada", nil, 0, now, now, "admin"))

	listings, total, err := svc.ListUsers(context.Background(), ListUsersParams{Search: "ada", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, listings, 1)
	assert.False(t, ToUserResponse(&listings[0]).EmailVerified)
	require.NoError(t, mock.ExpectationsWereMet())
}
