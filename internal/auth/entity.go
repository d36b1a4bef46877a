// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

type RefreshToken struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

type tokenState int

const (
	tokenLive tokenState = iota
	tokenConsumed
	tokenRevoked
	tokenExpired
)

// stateAt classifies the token at now. A consumed token reports as consumed
// even once expired so a replay still trips reuse detection.
func (t *RefreshToken) stateAt(now time.Time) tokenState {
	switch {
	case t.IsUsed:
		return tokenConsumed
	case t.RevokedAt != nil:
		return tokenRevoked
	case !now.Before(t.ExpiresAt):
		return tokenExpired
	default:
		return tokenLive
	}
}

func (t *RefreshToken) sessionInfo() SessionInfo {
	return SessionInfo{
		ID:        t.ID,
		UserAgent: t.UserAgent,
		IPAddress: t.IPAddress,
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
	}
}

// resetCode is the Redis record behind a pending password reset.
type resetCode struct {
	UserID   string `json:"user_id"`
	CodeHash string `json:"code_hash"`
	Attempts int    `json:"attempts"`
}
