// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type RegisterRequest struct {
	Email    string `json:"email"     validate:"required,email,max=255"`
	Password string `json:"password"  validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"omitempty,max=100"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"        validate:"required,email,max=255"`
	Phone       string `json:"phone"        validate:"required,min=6,max=32"`
	Code        string `json:"code"         validate:"required,numeric,min=4,max=12"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

type AuthResponse struct {
	User   UserResponse  `json:"user"`
	Tokens TokenResponse `json:"tokens"`
}

// RegisterResponse carries tokens only when the account is usable right
// away; otherwise the client waits for the verification email.
type RegisterResponse struct {
	User                 UserResponse   `json:"user"`
	VerificationRequired bool           `json:"verification_required"`
	Tokens               *TokenResponse `json:"tokens,omitempty"`
}

type SessionInfo struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=128"`
}
