// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/harvest-table/internal/config"
	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/middleware"
)

const (
	claimEmail   = "email"
	claimRole    = "role"
	claimVersion = "token_version"
	claimKind    = "type"
	kindAccess   = "access"
)

// JWTManager signs ES256 access tokens for shoppers and staff and publishes
// the verification key as a JWKS document.
type JWTManager struct {
	signing jwk.Key
	verify  jwk.Key
	jwks    jwk.Set
	keyID   string
	config  config.JWTConfig
}

// NewJWTManager loads the PEM signing key, writing a fresh P-256 pair first
// when the private key file does not exist yet.
func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	pem, err := os.ReadFile(cfg.PrivateKeyPath)
	if errors.Is(err, os.ErrNotExist) {
		if err = GenerateKeyPair(cfg.PrivateKeyPath, cfg.PublicKeyPath); err == nil {
			pem, err = os.ReadFile(cfg.PrivateKeyPath)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	key, err := jwk.ParseKey(pem, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return newJWTManager(key, cfg)
}

func NewJWTManagerFromECDSA(key *ecdsa.PrivateKey, cfg config.JWTConfig) (*JWTManager, error) {
	imported, err := jwk.Import(key)
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}
	return newJWTManager(imported, cfg)
}

// newJWTManager derives the key id from the RFC 7638 thumbprint so it stays
// stable across restarts and replicas sharing one key.
func newJWTManager(signing jwk.Key, cfg config.JWTConfig) (*JWTManager, error) {
	verify, err := signing.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive verification key: %w", err)
	}

	thumb, err := verify.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("thumbprint: %w", err)
	}
	kid := base64.RawURLEncoding.EncodeToString(thumb)[:16]

	for _, k := range []jwk.Key{signing, verify} {
		if err := k.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, fmt.Errorf("set key id: %w", err)
		}
		if err := k.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
			return nil, fmt.Errorf("set algorithm: %w", err)
		}
	}
	if err := verify.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(verify); err != nil {
		return nil, fmt.Errorf("build jwks: %w", err)
	}

	return &JWTManager{
		signing: signing,
		verify:  verify,
		jwks:    set,
		keyID:   kid,
		config:  cfg,
	}, nil
}

func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	private, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import key: %w", err)
	}
	public, err := private.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	if err := writePEM(privateKeyPath, private, 0o600); err != nil {
		return err
	}
	return writePEM(publicKeyPath, public, 0o644)
}

func writePEM(path string, key jwk.Key, mode os.FileMode) error {
	data, err := jwk.Pem(key)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

type AccessTokenClaims struct {
	UserID       string
	Email        string
	Role         string
	TokenVersion int
}

func (m *JWTManager) KeyID() string { return m.keyID }

func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.config.AccessTokenExpire
}

func (m *JWTManager) CreateAccessToken(c AccessTokenClaims) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(m.config.AccessTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(c.UserID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(exp).
		Claim(claimEmail, c.Email).
		Claim(claimRole, c.Role).
		Claim(claimVersion, c.TokenVersion).
		Claim(claimKind, kindAccess).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build access token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.signing))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return string(signed), exp, nil
}

func (m *JWTManager) VerifyAccessToken(
	_ context.Context,
	raw string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.ParseString(raw,
		jwt.WithKey(jwa.ES256(), m.verify),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if errors.Is(err, jwt.TokenExpiredError()) {
		return nil, fmt.Errorf("verify access token: %w", core.ErrTokenExpired)
	}
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w", core.ErrTokenInvalid)
	}

	var kind, role string
	var version float64
	if token.Get(claimKind, &kind) != nil || kind != kindAccess {
		return nil, fmt.Errorf("verify access token: not an access token: %w", core.ErrTokenInvalid)
	}
	if token.Get(claimRole, &role) != nil || token.Get(claimVersion, &version) != nil {
		return nil, fmt.Errorf("verify access token: missing claims: %w", core.ErrTokenInvalid)
	}

	sub, ok := token.Subject()
	if !ok || sub == "" {
		return nil, fmt.Errorf("verify access token: no subject: %w", core.ErrTokenInvalid)
	}

	claims := &middleware.AccessTokenClaims{
		UserID:       sub,
		Role:         role,
		TokenVersion: int(version),
	}
	_ = token.Get(claimEmail, &claims.Email)
	claims.JTI, _ = token.JwtID()
	claims.ExpiresAt, _ = token.Expiration()
	return claims, nil
}

// JWKSHandler serves the public verification key for other services.
func (m *JWTManager) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		core.JSON(w, http.StatusOK, m.jwks)
	}
}

type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

// CreateRefreshToken mints an opaque refresh token. An empty familyID starts
// a new rotation family, which is how sign-in differs from refresh.
func (m *JWTManager) CreateRefreshToken(familyID string) (*RefreshTokenData, error) {
	token, err := core.GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if familyID == "" {
		familyID = uuid.NewString()
	}

	return &RefreshTokenData{
		Token:     token,
		Hash:      core.HashToken(token),
		ExpiresAt: time.Now().Add(m.config.RefreshTokenExpire),
		FamilyID:  familyID,
	}, nil
}
