// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

// User is the bare identity: credentials and verification state. Role and
// contact details live on the profile.
type User struct {
	ID              string     `db:"id"`
	Email           string     `db:"email"`
	PasswordHash    string     `db:"password_hash"`
	FullName        string     `db:"full_name"`
	EmailVerifiedAt *time.Time `db:"email_verified_at"`
	TokenVersion    int        `db:"token_version"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at"`
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

// Listing is a user row joined with its profile role for the admin list.
type Listing struct {
	User
	Role string `db:"role"`
}
