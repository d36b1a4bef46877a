// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/harvest-table/internal/config"
	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidResetCode   = errors.New("invalid or expired reset code")
	ErrInvalidVerifyToken = errors.New("invalid or expired verification token")
)

const (
	blacklistPrefix = "blacklist:"
	verifyPrefix    = "verify:"
	resetPrefix     = "reset:"
)

type UserInfo struct {
	ID            string
	Email         string
	FullName      string
	PasswordHash  string
	EmailVerified bool
	TokenVersion  int
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		email, passwordHash, fullName string,
		verified bool,
	) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	MarkVerified(ctx context.Context, userID string) error
}

// ProfileLookup reads the role and contact phone from the profile row.
// Missing profiles resolve to the "user" role and an empty phone.
type ProfileLookup interface {
	RoleOf(ctx context.Context, userID string) (string, error)
	PhoneOf(ctx context.Context, userID string) (string, error)
}

type Mailer interface {
	SendVerification(ctx context.Context, to, name, link string) error
	SendPasswordResetCode(ctx context.Context, to, code string) error
}

type Service struct {
	repo     Repository
	jwt      *JWTManager
	users    UserProvider
	profiles ProfileLookup
	mailer   Mailer
	redis    redis.UniversalClient
	cfg      config.AuthConfig
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	users UserProvider,
	profiles ProfileLookup,
	mailer Mailer,
	redisClient redis.UniversalClient,
	cfg config.AuthConfig,
) *Service {
	return &Service{
		repo:     repo,
		jwt:      jwt,
		users:    users,
		profiles: profiles,
		mailer:   mailer,
		redis:    redisClient,
		cfg:      cfg,
	}
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if s.cfg.RequireEmailVerification && !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.users.UpdatePassword(ctx, user.ID, newHash)
	}

	return s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*RegisterResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verified := !s.cfg.RequireEmailVerification

	user, err := s.users.Create(
		ctx,
		normalizeEmail(req.Email),
		passwordHash,
		strings.TrimSpace(req.FullName),
		verified,
	)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if !verified {
		if err := s.sendVerification(ctx, user); err != nil {
			slog.Error("send verification email failed",
				"user_id", user.ID,
				"error", err,
			)
		}

		return &RegisterResponse{
			User:                 s.userResponse(ctx, user),
			VerificationRequired: true,
		}, nil
	}

	authResp, err := s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
	if err != nil {
		return nil, err
	}

	return &RegisterResponse{
		User:   authResp.User,
		Tokens: &authResp.Tokens,
	}, nil
}

func (s *Service) sendVerification(ctx context.Context, user *UserInfo) error {
	token, err := core.GenerateSecureToken(32)
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}

	key := verifyPrefix + core.HashToken(token)
	if err := s.redis.Set(ctx, key, user.ID, s.cfg.VerificationTTL).Err(); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	link := s.cfg.VerifyURL + "?token=" + url.QueryEscape(token)
	return s.mailer.SendVerification(ctx, user.Email, user.FullName, link)
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	key := verifyPrefix + core.HashToken(token)

	userID, err := s.redis.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidVerifyToken
	}
	if err != nil {
		return fmt.Errorf("load verification token: %w", err)
	}

	if err := s.users.MarkVerified(ctx, userID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrInvalidVerifyToken
		}
		return fmt.Errorf("mark verified: %w", err)
	}

	return nil
}

// ResendVerification never reports whether the address exists.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	if user.EmailVerified {
		return nil
	}

	return s.sendVerification(ctx, user)
}

// RequestPasswordReset mails a short numeric code. Unknown addresses succeed
// silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}

	code, err := core.GenerateNumericCode(s.cfg.ResetCodeDigits)
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}

	record := resetCode{UserID: user.ID, CodeHash: core.HashToken(code)}
	if err := core.SetJSON(ctx, s.redis, resetPrefix+email, record, s.cfg.ResetCodeTTL); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	if err := s.mailer.SendPasswordResetCode(ctx, user.Email, code); err != nil {
		return fmt.Errorf("send reset code: %w", err)
	}

	return nil
}

// ResetPassword requires the mailed code and the phone number on the
// account's profile. Wrong guesses count against the code.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	email := normalizeEmail(req.Email)
	key := resetPrefix + email

	var record resetCode
	if err := core.GetJSON(ctx, s.redis, key, &record); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrInvalidResetCode
		}
		return fmt.Errorf("load reset code: %w", err)
	}

	if record.Attempts >= s.cfg.ResetMaxAttempts {
		s.redis.Del(ctx, key)
		return ErrInvalidResetCode
	}

	phone, err := s.profiles.PhoneOf(ctx, record.UserID)
	if err != nil {
		return fmt.Errorf("load profile phone: %w", err)
	}

	if !core.CompareTokenHash(req.Code, record.CodeHash) ||
		phone == "" || digitsOnly(phone) != digitsOnly(req.Phone) {
		record.Attempts++
		if err := s.storeResetAttempt(ctx, key, record); err != nil {
			slog.Warn("reset attempt counter not persisted", "error", err)
		}
		return ErrInvalidResetCode
	}

	newHash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, record.UserID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.redis.Del(ctx, key)

	if err := s.LogoutAll(ctx, record.UserID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	return nil
}

func (s *Service) storeResetAttempt(ctx context.Context, key string, record resetCode) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.redis.SetArgs(ctx, key, data, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err()
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	switch storedToken.stateAt(time.Now()) {
	case tokenConsumed:
		//nolint:errcheck // security revocation continues regardless
		_ = s.repo.RevokeByFamilyID(ctx, storedToken.FamilyID)
		slog.Warn("refresh token reuse detected",
			"user_id", storedToken.UserID,
			"family_id", storedToken.FamilyID,
		)
		return nil, ErrTokenReuse
	case tokenRevoked:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	case tokenExpired:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.users.GetByID(ctx, storedToken.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return s.createAuthResponse(
		ctx,
		user,
		userAgent,
		ipAddress,
		storedToken.FamilyID,
		&storedToken.ID,
	)
}

// Logout revokes the refresh token and blacklists the presented access
// token for the rest of its lifetime.
func (s *Service) Logout(
	ctx context.Context,
	refreshToken string,
	claims *middleware.AccessTokenClaims,
) error {
	if claims.JTI != "" {
		if err := s.RevokeAccessToken(ctx, claims.JTI, claims.ExpiresAt); err != nil {
			slog.Warn("access token blacklist failed",
				"user_id", claims.UserID,
				"error", err,
			)
		}
	}

	if refreshToken == "" {
		return nil
	}

	storedToken, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find token: %w", err)
	}

	if storedToken.UserID != claims.UserID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, storedToken.ID); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

// LogoutAll revokes every refresh token of the user and invalidates all
// outstanding access tokens through the token version.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, blacklistPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (s *Service) IsAccessTokenBlacklisted(
	ctx context.Context,
	jti string,
) (bool, error) {
	exists, err := s.redis.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

// ValidateAccessClaims implements middleware.ClaimsValidator.
func (s *Service) ValidateAccessClaims(
	ctx context.Context,
	claims *middleware.AccessTokenClaims,
) error {
	if claims.JTI != "" {
		blacklisted, err := s.IsAccessTokenBlacklisted(ctx, claims.JTI)
		if err != nil {
			return err
		}
		if blacklisted {
			return fmt.Errorf("validate token: %w", core.ErrTokenRevoked)
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("validate token: %w", core.ErrTokenRevoked)
		}
		return fmt.Errorf("get user: %w", err)
	}

	if claims.TokenVersion < user.TokenVersion {
		return fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
	}

	return nil
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for i := range tokens {
		sessions = append(sessions, tokens[i].sessionInfo())
	}

	return sessions, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	userID, sessionID string,
) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if token.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, _, err := core.VerifyPasswordWithRehash(
		currentPassword,
		user.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.LogoutAll(ctx, userID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := s.userResponse(ctx, user)
	return &resp, nil
}

// PruneExpiredTokens deletes refresh tokens that expired more than
// olderThan ago.
func (s *Service) PruneExpiredTokens(
	ctx context.Context,
	olderThan time.Duration,
) (int64, error) {
	return s.repo.DeleteExpired(ctx, olderThan)
}

func (s *Service) roleOf(ctx context.Context, userID string) string {
	role, err := s.profiles.RoleOf(ctx, userID)
	if err != nil {
		slog.Warn("role lookup failed, defaulting to user",
			"user_id", userID,
			"error", err,
		)
		return "user"
	}
	return role
}

func (s *Service) userResponse(ctx context.Context, user *UserInfo) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		FullName:      user.FullName,
		Role:          s.roleOf(ctx, user.ID),
		EmailVerified: user.EmailVerified,
	}
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID string,
	oldTokenID *string,
) (*AuthResponse, error) {
	userResp := s.userResponse(ctx, user)

	accessToken, expiresAt, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         userResp.Role,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.CreateRefreshToken(familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	newTokenID := uuid.New().String()

	refreshTokenEntity := &RefreshToken{
		ID:        newTokenID,
		UserID:    user.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if oldTokenID == nil {
		err = s.repo.Create(ctx, refreshTokenEntity)
	} else {
		err = s.repo.Rotate(ctx, *oldTokenID, refreshTokenEntity)
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // the family is burned either way
			_ = s.repo.RevokeByFamilyID(ctx, familyID)
			return nil, ErrTokenReuse
		}
	}
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &AuthResponse{
		User: userResp,
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.jwt.AccessTokenTTL() / time.Second),
			ExpiresAt:    expiresAt,
		},
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
