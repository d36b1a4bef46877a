// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

type Repository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	FindByID(ctx context.Context, id string) (*RefreshToken, error)
	Rotate(ctx context.Context, usedID string, next *RefreshToken) error
	RevokeByID(ctx context.Context, id string) error
	RevokeByFamilyID(ctx context.Context, familyID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	GetActiveSessionsForUser(
		ctx context.Context,
		userID string,
	) ([]RefreshToken, error)
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const tokenColumns = `id, user_id, token_hash, family_id, expires_at, created_at,
	is_used, used_at, revoked_at, replaced_by_id, user_agent, ip_address`

func (r *repository) Create(ctx context.Context, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, family_id, expires_at,
			user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &token.CreatedAt, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.FamilyID,
		token.ExpiresAt,
		token.UserAgent,
		token.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (r *repository) FindByHash(
	ctx context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	return r.findOne(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1`,
		tokenHash,
	)
}

func (r *repository) FindByID(
	ctx context.Context,
	id string,
) (*RefreshToken, error) {
	return r.findOne(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE id = $1`,
		id,
	)
}

func (r *repository) findOne(
	ctx context.Context,
	query string,
	arg any,
) (*RefreshToken, error) {
	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

// Rotate consumes usedID and stores next in one statement. It returns
// core.ErrNotFound when usedID was already consumed or revoked, which is how
// two concurrent refreshes with the same token are told apart.
func (r *repository) Rotate(
	ctx context.Context,
	usedID string,
	next *RefreshToken,
) error {
	query := `
		WITH consumed AS (
			UPDATE refresh_tokens
			SET is_used = true, used_at = NOW(), replaced_by_id = $1
			WHERE id = $8 AND is_used = false AND revoked_at IS NULL
			RETURNING id
		)
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, family_id, expires_at,
			user_agent, ip_address
		)
		SELECT $1, $2, $3, $4, $5, $6, $7 FROM consumed
		RETURNING created_at`

	err := r.db.GetContext(ctx, &next.CreatedAt, query,
		next.ID,
		next.UserID,
		next.TokenHash,
		next.FamilyID,
		next.ExpiresAt,
		next.UserAgent,
		next.IPAddress,
		usedID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("rotate refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	return nil
}

func (r *repository) RevokeByID(ctx context.Context, id string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL`

	return r.execOne(ctx, "revoke refresh token", query, id)
}

func (r *repository) RevokeByFamilyID(
	ctx context.Context,
	familyID string,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE family_id = $1 AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, familyID); err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}

	return nil
}

func (r *repository) RevokeAllForUser(
	ctx context.Context,
	userID string,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("revoke all user tokens: %w", err)
	}

	return nil
}

func (r *repository) GetActiveSessionsForUser(
	ctx context.Context,
	userID string,
) ([]RefreshToken, error) {
	query := `SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1
			AND revoked_at IS NULL
			AND is_used = false
			AND expires_at > NOW()
		ORDER BY created_at DESC`

	var tokens []RefreshToken
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("get active sessions: %w", err)
	}

	return tokens, nil
}

func (r *repository) DeleteExpired(
	ctx context.Context,
	olderThan time.Duration,
) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return rows, nil
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
