// AngelaMos | 2026
// repository.go

package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/harvest-table/internal/core"
)

type Repository interface {
	Get(ctx context.Context, id string) (*Profile, error)
	Upsert(ctx context.Context, p *Profile) error
	SetRole(ctx context.Context, id string, role Role) error
	RoleOf(ctx context.Context, id string) (Role, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const profileColumns = `id, full_name, role, address_line1, address_line2,
	city, state, postal_code, phone, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := r.db.GetContext(ctx, &p,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get profile: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

// Upsert writes the self-service fields. The role column is never touched
// here; new rows start as "user".
func (r *repository) Upsert(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (
			id, full_name, address_line1, address_line2,
			city, state, postal_code, phone
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			address_line1 = EXCLUDED.address_line1,
			address_line2 = EXCLUDED.address_line2,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			postal_code = EXCLUDED.postal_code,
			phone = EXCLUDED.phone,
			updated_at = NOW()
		RETURNING role, created_at, updated_at`

	err := r.db.GetContext(ctx, p, query,
		p.ID,
		p.FullName,
		p.AddressLine1,
		p.AddressLine2,
		p.City,
		p.State,
		p.PostalCode,
		p.Phone,
	)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("upsert profile: %w", core.ErrNotFound)
		}
		return fmt.Errorf("upsert profile: %w", err)
	}

	return nil
}

// SetRole creates the profile from the user row when missing.
func (r *repository) SetRole(ctx context.Context, id string, role Role) error {
	query := `
		INSERT INTO profiles (id, full_name, role)
		SELECT id, full_name, $2 FROM users
		WHERE id = $1 AND deleted_at IS NULL
		ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`

	result, err := r.db.ExecContext(ctx, query, id, string(role))
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("set role: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) RoleOf(ctx context.Context, id string) (Role, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw, `SELECT role FROM profiles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get role: %w", core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get role: %w", err)
	}

	return ParseRole(raw)
}
