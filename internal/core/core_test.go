// AngelaMos | 2026
// core_test.go

package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("fresh basil")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPassword("fresh basil", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("dried basil", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _, err = VerifyPasswordTimingSafe("fresh basil", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateNumericCode(t *testing.T) {
	for range 20 {
		code, err := GenerateNumericCode(6)
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}

	_, err := GenerateNumericCode(0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = GenerateNumericCode(13)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCompareTokenHash(t *testing.T) {
	token, err := GenerateSecureToken(32)
	require.NoError(t, err)

	assert.True(t, CompareTokenHash(token, HashToken(token)))
	assert.False(t, CompareTokenHash(token+"x", HashToken(token)))
}

func TestValidID(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.True(t, ValidID(rec, uuid.NewString(), "order"))

	rec = httptest.NewRecorder()
	assert.False(t, ValidID(rec, "not-a-uuid", "order"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NotFoundError("product")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.True(t, IsAppError(err))
	assert.False(t, IsAppError(ErrNotFound))
}

func TestRedisJSONHelpers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	type entry struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	ctx := context.Background()
	require.NoError(t, SetJSON(ctx, rdb, "k", entry{Name: "apples", Count: 3}, time.Minute))

	var got entry
	require.NoError(t, GetJSON(ctx, rdb, "k", &got))
	assert.Equal(t, entry{Name: "apples", Count: 3}, got)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, GetJSON(ctx, rdb, "k", &got), ErrNotFound)
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return sqlx.NewDb(db, "pgx"), mock
}

func TestInTxRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM cart_items`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	err := NewTxRunner(db).InTx(context.Background(), func(tx DBTX) error {
		if _, err := tx.ExecContext(context.Background(), `DELETE FROM cart_items`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxCommits(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, InTx(context.Background(), db, func(*sqlx.Tx) error { return nil }))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = InTx(context.Background(), db, func(*sqlx.Tx) error { panic("boom") })
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxReportsFailedRollback(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

	err := InTx(context.Background(), db, func(*sqlx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "rollback: connection reset")
}

func TestMigrateAppliesPendingInOrder(t *testing.T) {
	db, mock := newMockDB(t)

	fsys := fstest.MapFS{
		"002_orders.sql":   {Data: []byte("CREATE TABLE orders (id UUID)")},
		"001_products.sql": {Data: []byte("CREATE TABLE products (id UUID)")},
		"README.md":        {Data: []byte("not a migration")},
	}

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM schema_migrations`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("001_products.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE orders`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs("002_orders.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), db, fsys))
	require.NoError(t, mock.ExpectationsWereMet())
}
