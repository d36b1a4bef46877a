// AngelaMos | 2026
// handler_test.go

package banner

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/harvest-table/internal/config"
	"github.com/carterperez-dev/harvest-table/internal/storage"
)

var columns = []string{
	"id", "title", "subtitle", "image_url", "link_url",
	"is_active", "sort_order", "created_at", "updated_at",
}

type flushes struct{ n int }

func (f *flushes) InvalidateCache(context.Context, string) { f.n++ }

func newBannerRouter(t *testing.T) (http.Handler, sqlmock.Sqlmock, *flushes) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := storage.NewLocal(config.StorageConfig{
		Dir:           t.TempDir(),
		PublicBaseURL: "https://shop.test",
		MaxUploadSize: 1 << 20,
	})
	require.NoError(t, err)

	f := &flushes{}
	h := NewHandler(NewService(NewRepository(sqlx.NewDb(db, "pgx")), store, f), store)

	pass := func(next http.Handler) http.Handler { return next }
	r := chi.NewRouter()
	h.RegisterRoutes(r, pass)
	h.RegisterAdminRoutes(r, pass, pass)
	return r, mock, f
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func imageForm(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "hero.png")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestActiveBannersOnlyQueriesActive(t *testing.T) {
	h, mock, _ := newBannerRouter(t)
	now := time.Now()

	mock.ExpectQuery(`FROM banner_settings WHERE is_active = true ORDER BY sort_order`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(uuid.NewString(), "Harvest sale", "", "", "/products", true, 0, now, now))

	rec := do(h, httptest.NewRequest(http.MethodGet, "/banners/active", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data []BannerResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, "Harvest sale", env.Data[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBanner(t *testing.T) {
	h, mock, f := newBannerRouter(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO banner_settings`).
		WithArgs(sqlmock.AnyArg(), "Fresh figs", "", "", "", true, 2).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	req := httptest.NewRequest(http.MethodPost, "/admin/banners/",
		strings.NewReader(`{"title":"Fresh figs","is_active":true,"sort_order":2}`))
	rec := do(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, f.n)

	req = httptest.NewRequest(http.MethodPost, "/admin/banners/", strings.NewReader(`{"sort_order":2}`))
	assert.Equal(t, http.StatusBadRequest, do(h, req).Code)
}

func TestUpdateMissingBanner(t *testing.T) {
	h, mock, f := newBannerRouter(t)
	id := uuid.NewString()

	mock.ExpectQuery(`FROM banner_settings WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns))

	req := httptest.NewRequest(http.MethodPut, "/admin/banners/"+id, strings.NewReader(`{"title":"x"}`))
	assert.Equal(t, http.StatusNotFound, do(h, req).Code)
	assert.Zero(t, f.n)
}

func TestUploadBannerImage(t *testing.T) {
	h, mock, f := newBannerRouter(t)
	id := uuid.NewString()
	now := time.Now()

	var pic bytes.Buffer
	require.NoError(t, png.Encode(&pic, image.NewGray(image.Rect(0, 0, 1, 1))))

	mock.ExpectQuery(`FROM banner_settings WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(id, "Harvest sale", "", "", "", true, 0, now, now))
	mock.ExpectQuery(`UPDATE banner_settings`).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	body, contentType := imageForm(t, pic.Bytes())
	req := httptest.NewRequest(http.MethodPost, "/admin/banners/"+id+"/image", body)
	req.Header.Set("Content-Type", contentType)

	rec := do(h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env struct {
		Data BannerResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.True(t, strings.HasPrefix(env.Data.ImageURL, "https://shop.test/uploads/banners/"))
	assert.Equal(t, 1, f.n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadRejectsNonImage(t *testing.T) {
	h, mock, _ := newBannerRouter(t)
	id := uuid.NewString()
	now := time.Now()

	mock.ExpectQuery(`FROM banner_settings WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(id, "Harvest sale", "", "", "", true, 0, now, now))

	body, contentType := imageForm(t, []byte("just some text, not a picture"))
	req := httptest.NewRequest(http.MethodPost, "/admin/banners/"+id+"/image", body)
	req.Header.Set("Content-Type", contentType)

	assert.Equal(t, http.StatusBadRequest, do(h, req).Code)
}
