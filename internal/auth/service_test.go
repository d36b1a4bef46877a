// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/harvest-table/internal/config"
	"github.com/carterperez-dev/harvest-table/internal/core"
)

type memUsers struct {
	mu    sync.Mutex
	byID  map[string]*UserInfo
	email map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[string]*UserInfo), email: make(map[string]string)}
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.email[email]
	if !ok {
		return nil, core.ErrNotFound
	}
	u := *m.byID[id]
	return &u, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Create(
	_ context.Context,
	email, passwordHash, fullName string,
	verified bool,
) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.email[email]; ok {
		return nil, core.ErrDuplicateKey
	}
	u := &UserInfo{
		ID:            uuid.NewString(),
		Email:         email,
		FullName:      fullName,
		PasswordHash:  passwordHash,
		EmailVerified: verified,
	}
	m.byID[u.ID] = u
	m.email[email] = u.ID
	cp := *u
	return &cp, nil
}

func (m *memUsers) IncrementTokenVersion(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[userID].TokenVersion++
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[userID].PasswordHash = passwordHash
	return nil
}

func (m *memUsers) MarkVerified(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return core.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

type stubProfiles struct {
	roles  map[string]string
	phones map[string]string
}

func (p stubProfiles) RoleOf(_ context.Context, userID string) (string, error) {
	if r, ok := p.roles[userID]; ok {
		return r, nil
	}
	return "user", nil
}

func (p stubProfiles) PhoneOf(_ context.Context, userID string) (string, error) {
	return p.phones[userID], nil
}

type captureMailer struct {
	mu    sync.Mutex
	links []string
	codes []string
}

func (c *captureMailer) SendVerification(_ context.Context, _, _, link string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links = append(c.links, link)
	return nil
}

func (c *captureMailer) SendPasswordResetCode(_ context.Context, _, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes = append(c.codes, code)
	return nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func (m *memTokens) Create(_ context.Context, token *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *token
	cp.CreatedAt = time.Now()
	m.tokens[token.ID] = &cp
	return nil
}

func (m *memTokens) FindByHash(_ context.Context, tokenHash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memTokens) FindByID(_ context.Context, id string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) Rotate(_ context.Context, usedID string, next *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	used, ok := m.tokens[usedID]
	if !ok || used.IsUsed || used.RevokedAt != nil {
		return core.ErrNotFound
	}
	now := time.Now()
	used.IsUsed = true
	used.UsedAt = &now
	used.ReplacedByID = &next.ID
	cp := *next
	cp.CreatedAt = now
	m.tokens[next.ID] = &cp
	return nil
}

func (m *memTokens) revokeWhere(match func(*RefreshToken) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, t := range m.tokens {
		if match(t) && t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	}
}

func (m *memTokens) RevokeByID(_ context.Context, id string) error {
	m.revokeWhere(func(t *RefreshToken) bool { return t.ID == id })
	return nil
}

func (m *memTokens) RevokeByFamilyID(_ context.Context, familyID string) error {
	m.revokeWhere(func(t *RefreshToken) bool { return t.FamilyID == familyID })
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.revokeWhere(func(t *RefreshToken) bool { return t.UserID == userID })
	return nil
}

func (m *memTokens) GetActiveSessionsForUser(_ context.Context, userID string) ([]RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RefreshToken
	for _, t := range m.tokens {
		if t.UserID == userID && t.stateAt(time.Now()) == tokenLive {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTokens) DeleteExpired(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type authFixture struct {
	svc      *Service
	jwt      *JWTManager
	users    *memUsers
	tokens   *memTokens
	mailer   *captureMailer
	profiles stubProfiles
	redis    *miniredis.Miniredis
}

func newAuthFixture(t *testing.T, requireVerification bool) *authFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	jwtManager, err := NewJWTManagerFromECDSA(key, config.JWTConfig{
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "harvest-table-test",
		Audience:           "harvest-table-test",
	})
	require.NoError(t, err)

	f := &authFixture{
		jwt:      jwtManager,
		users:    newMemUsers(),
		tokens:   &memTokens{tokens: make(map[string]*RefreshToken)},
		mailer:   &captureMailer{},
		profiles: stubProfiles{roles: map[string]string{}, phones: map[string]string{}},
		redis:    mr,
	}
	f.svc = NewService(f.tokens, jwtManager, f.users, f.profiles, f.mailer, rdb, config.AuthConfig{
		RequireEmailVerification: requireVerification,
		VerificationTTL:          time.Hour,
		ResetCodeTTL:             10 * time.Minute,
		ResetCodeDigits:          6,
		ResetMaxAttempts:         3,
		VerifyURL:                "http://shop.test/verify",
	})
	return f
}

func (f *authFixture) register(t *testing.T, email, password string) *UserInfo {
	t.Helper()

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Email:    email,
		Password: password,
		FullName: "Test Shopper",
	}, "test-agent", "127.0.0.1")
	require.NoError(t, err)

	u, err := f.users.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	f := newAuthFixture(t, false)
	u := f.register(t, "shopper@example.com", "correct horse")
	f.profiles.roles[u.ID] = "admin"

	resp, err := f.svc.Login(context.Background(), LoginRequest{
		Email:    "  Shopper@Example.com",
		Password: "correct horse",
	}, "test-agent", "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "admin", resp.User.Role)
	assert.Equal(t, "Bearer", resp.Tokens.TokenType)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)

	claims, err := f.jwt.VerifyAccessToken(context.Background(), resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	require.NoError(t, f.svc.ValidateAccessClaims(context.Background(), claims))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t, false)
	f.register(t, "shopper@example.com", "correct horse")

	_, err := f.svc.Login(context.Background(), LoginRequest{
		Email: "shopper@example.com", Password: "wrong horse",
	}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		Email: "nobody@example.com", Password: "correct horse",
	}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t, false)
	f.register(t, "shopper@example.com", "correct horse")

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Email: "SHOPPER@example.com", Password: "another pass",
	}, "", "")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestEmailVerificationFlow(t *testing.T) {
	f := newAuthFixture(t, true)
	ctx := context.Background()

	resp, err := f.svc.Register(ctx, RegisterRequest{
		Email: "new@example.com", Password: "correct horse",
	}, "", "")
	require.NoError(t, err)
	assert.True(t, resp.VerificationRequired)
	assert.Nil(t, resp.Tokens)
	require.Len(t, f.mailer.links, 1)

	_, err = f.svc.Login(ctx, LoginRequest{Email: "new@example.com", Password: "correct horse"}, "", "")
	require.ErrorIs(t, err, ErrEmailNotVerified)

	link, err := url.Parse(f.mailer.links[0])
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	require.NoError(t, f.svc.VerifyEmail(ctx, token))
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, token), ErrInvalidVerifyToken)

	_, err = f.svc.Login(ctx, LoginRequest{Email: "new@example.com", Password: "correct horse"}, "", "")
	require.NoError(t, err)
}

func TestPasswordResetRequiresCodeAndPhone(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	u := f.register(t, "shopper@example.com", "correct horse")
	f.profiles.phones[u.ID] = "+1 (555) 010-0200"

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "Shopper@example.com"))
	require.Len(t, f.mailer.codes, 1)
	code := f.mailer.codes[0]
	assert.Len(t, code, 6)
	assert.True(t, f.redis.Exists(resetPrefix+"shopper@example.com"))

	err := f.svc.ResetPassword(ctx, ResetPasswordRequest{
		Email: "shopper@example.com", Phone: "5550000000", Code: code, NewPassword: "brand new pass",
	})
	require.ErrorIs(t, err, ErrInvalidResetCode)

	versionBefore := f.users.byID[u.ID].TokenVersion

	require.NoError(t, f.svc.ResetPassword(ctx, ResetPasswordRequest{
		Email: "shopper@example.com", Phone: "15550100200", Code: code, NewPassword: "brand new pass",
	}))
	assert.False(t, f.redis.Exists(resetPrefix+"shopper@example.com"))
	assert.Greater(t, f.users.byID[u.ID].TokenVersion, versionBefore)

	_, err = f.svc.Login(ctx, LoginRequest{Email: "shopper@example.com", Password: "brand new pass"}, "", "")
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, ResetPasswordRequest{
		Email: "shopper@example.com", Phone: "15550100200", Code: code, NewPassword: "third pass",
	})
	assert.ErrorIs(t, err, ErrInvalidResetCode)
}

func TestPasswordResetLocksAfterMaxAttempts(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	u := f.register(t, "shopper@example.com", "correct horse")
	f.profiles.phones[u.ID] = "5550100200"

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "shopper@example.com"))
	code := f.mailer.codes[0]

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for range 3 {
		err := f.svc.ResetPassword(ctx, ResetPasswordRequest{
			Email: "shopper@example.com", Phone: "5550100200", Code: wrong, NewPassword: "brand new pass",
		})
		require.ErrorIs(t, err, ErrInvalidResetCode)
	}

	err := f.svc.ResetPassword(ctx, ResetPasswordRequest{
		Email: "shopper@example.com", Phone: "5550100200", Code: code, NewPassword: "brand new pass",
	})
	assert.ErrorIs(t, err, ErrInvalidResetCode)
	assert.False(t, f.redis.Exists(resetPrefix+"shopper@example.com"))
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	f := newAuthFixture(t, false)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, f.mailer.codes)
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	f.register(t, "shopper@example.com", "correct horse")

	login, err := f.svc.Login(ctx, LoginRequest{Email: "shopper@example.com", Password: "correct horse"}, "", "")
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(ctx, login.Tokens.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, login.Tokens.RefreshToken, rotated.Tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, login.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, ErrTokenReuse)

	_, err = f.svc.Refresh(ctx, rotated.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestLogoutBlacklistsAccessToken(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	f.register(t, "shopper@example.com", "correct horse")

	login, err := f.svc.Login(ctx, LoginRequest{Email: "shopper@example.com", Password: "correct horse"}, "", "")
	require.NoError(t, err)

	claims, err := f.jwt.VerifyAccessToken(ctx, login.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, login.Tokens.RefreshToken, claims))

	assert.ErrorIs(t, f.svc.ValidateAccessClaims(ctx, claims), core.ErrTokenRevoked)
	_, err = f.svc.Refresh(ctx, login.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestLogoutAllInvalidatesOutstandingAccessTokens(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	u := f.register(t, "shopper@example.com", "correct horse")

	login, err := f.svc.Login(ctx, LoginRequest{Email: "shopper@example.com", Password: "correct horse"}, "", "")
	require.NoError(t, err)
	claims, err := f.jwt.VerifyAccessToken(ctx, login.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.LogoutAll(ctx, u.ID))

	assert.ErrorIs(t, f.svc.ValidateAccessClaims(ctx, claims), core.ErrTokenRevoked)

	sessions, err := f.svc.GetActiveSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestChangePasswordChecksCurrent(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	u := f.register(t, "shopper@example.com", "correct horse")

	err := f.svc.ChangePassword(ctx, u.ID, "wrong horse", "brand new pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, "correct horse", "brand new pass"))
	_, err = f.svc.Login(ctx, LoginRequest{Email: "shopper@example.com", Password: "brand new pass"}, "", "")
	require.NoError(t, err)
}

func TestConcurrentRefreshOnlyOneWins(t *testing.T) {
	f := newAuthFixture(t, false)
	ctx := context.Background()
	f.register(t, "racer@example.com", "correct horse")

	login, err := f.svc.Login(ctx, LoginRequest{Email: "racer@example.com", Password: "correct horse"}, "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = f.svc.Refresh(ctx, login.Tokens.RefreshToken, "", "")
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrTokenReuse)
	}
	assert.LessOrEqual(t, wins, 1)
}
