// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetListing(ctx context.Context, id string) (*Listing, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkVerified(ctx context.Context, id string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]Listing, int, error)
	Count(ctx context.Context) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `id, email, password_hash, full_name, email_verified_at,
	token_version, created_at, updated_at, deleted_at`

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, full_name, email_verified_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at, token_version`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.EmailVerifiedAt,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "get user", "id", id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getUser(ctx, "get user by email", "email", email)
}

// getUser loads one live account by a unique column.
func (r *repository) getUser(ctx context.Context, op, column string, value any) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE ` + column + ` = $1 AND deleted_at IS NULL`

	var user User
	if err := r.db.GetContext(ctx, &user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

// Listings carry the profile role; accounts without a profile row read as
// plain users.
const listingSelect = `
	SELECT u.id, u.email, u.full_name, u.email_verified_at, u.token_version,
	       u.created_at, u.updated_at, COALESCE(p.role, 'user') AS role
	FROM users u
	LEFT JOIN profiles p ON p.id = u.id`

func (r *repository) GetListing(ctx context.Context, id string) (*Listing, error) {
	var listing Listing
	err := r.db.GetContext(ctx, &listing,
		listingSelect+` WHERE u.id = $1 AND u.deleted_at IS NULL`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get user listing: %w", core.ErrNotFound)
		}
		return nil, fmt.Errorf("get user listing: %w", err)
	}

	return &listing, nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) MarkVerified(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET email_verified_at = COALESCE(email_verified_at, NOW()), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "mark verified", query, id)
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	query := `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "increment token version", query, id)
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "delete user", query, id)
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]Listing, int, error) {
	params.Normalize()

	where := []string{"u.deleted_at IS NULL"}
	var args []any

	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Search != "" {
		ph := bind("%" + escapeLike(params.Search) + "%")
		where = append(where, "(u.email ILIKE "+ph+" OR u.full_name ILIKE "+ph+")")
	}
	if params.Role != "" {
		where = append(where, "COALESCE(p.role, 'user') = "+bind(params.Role))
	}

	filter := " WHERE " + strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM users u LEFT JOIN profiles p ON p.id = u.id` + filter
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := listingSelect + filter + ` ORDER BY u.created_at DESC LIMIT ` +
		bind(params.PageSize) + ` OFFSET ` + bind(params.Offset())

	var listings []Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return listings, total, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
