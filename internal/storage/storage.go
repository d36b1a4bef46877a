// AngelaMos | 2026
// storage.go

package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/segmentio/ksuid"

	"github.com/carterperez-dev/harvest-table/internal/config"
	"github.com/carterperez-dev/harvest-table/internal/core"
)

const RoutePrefix = "/uploads"

var (
	ErrTooLarge        = errors.New("file exceeds upload limit")
	ErrUnsupportedType = errors.New("unsupported image type")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Local writes uploads under a directory served at RoutePrefix and hands
// back absolute public URLs.
type Local struct {
	dir     string
	baseURL string
	maxSize int64
}

func NewLocal(cfg config.StorageConfig) (*Local, error) {
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	return &Local{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxSize: cfg.MaxUploadSize,
	}, nil
}

func (l *Local) MaxUploadSize() int64 {
	return l.maxSize
}

// UploadImage sniffs the content type, stores the bytes under folder with a
// generated name and returns the public URL.
func (l *Local) UploadImage(ctx context.Context, folder string, src io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	br := bufio.NewReaderSize(src, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("read upload: %w", err)
	}

	ext, ok := imageExtensions[http.DetectContentType(head)]
	if !ok {
		return "", ErrUnsupportedType
	}

	folder = sanitizeFolder(folder)
	if err := os.MkdirAll(filepath.Join(l.dir, folder), 0o750); err != nil {
		return "", fmt.Errorf("create upload folder: %w", err)
	}

	name := ksuid.New().String() + ext
	dst := filepath.Join(l.dir, folder, name)

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}

	limit := l.maxSize
	if limit <= 0 {
		limit = 5 << 20
	}

	n, copyErr := io.Copy(f, io.LimitReader(br, limit+1))
	closeErr := f.Close()

	if copyErr == nil && n > limit {
		copyErr = ErrTooLarge
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		//nolint:errcheck // partial upload cleanup
		_ = os.Remove(dst)
		return "", fmt.Errorf("write upload: %w", copyErr)
	}

	return l.baseURL + path.Join(RoutePrefix, folder, name), nil
}

// Delete removes the file behind a URL previously returned by UploadImage.
// URLs that do not point into this store are ignored.
func (l *Local) Delete(ctx context.Context, publicURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := l.baseURL + RoutePrefix + "/"
	if !strings.HasPrefix(publicURL, prefix) {
		return nil
	}

	rel := filepath.FromSlash(strings.TrimPrefix(publicURL, prefix))
	if strings.Contains(rel, "..") {
		return fmt.Errorf("delete upload: %w", core.ErrInvalidInput)
	}

	if err := os.Remove(filepath.Join(l.dir, rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload: %w", err)
	}

	return nil
}

// Handler serves stored files. Mount it at RoutePrefix.
func (l *Local) Handler() http.Handler {
	return http.StripPrefix(RoutePrefix, http.FileServer(http.Dir(l.dir)))
}

// FormImage pulls the named multipart field out of r, enforcing the upload
// limit on the whole request body.
func (l *Local) FormImage(
	w http.ResponseWriter,
	r *http.Request,
	field string,
) (io.ReadCloser, error) {
	limit := l.maxSize
	if limit <= 0 {
		limit = 5 << 20
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, fmt.Errorf("parse upload: %w", ErrTooLarge)
	}

	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("read form file %q: %w", field, core.ErrInvalidInput)
	}

	return file, nil
}

func sanitizeFolder(folder string) string {
	folder = strings.Trim(path.Clean("/"+folder), "/")
	if folder == "" || folder == "." {
		return "misc"
	}
	return strings.ReplaceAll(folder, "..", "")
}
