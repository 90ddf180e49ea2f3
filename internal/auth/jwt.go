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
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/bookshelf/internal/config"
	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/middleware"
)

const (
	claimRole         = "role"
	claimTokenVersion = "token_version"
	claimType         = "type"
	claimSession      = "sid"

	accessTokenType = "access"
)

// JWTManager signs ES256 access tokens and mints opaque refresh tokens.
type JWTManager struct {
	privateKey jwk.Key
	publicKey  jwk.Key
	publicJWKS jwk.Set
	config     config.JWTConfig
	now        func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	privatePEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return newJWTManagerFromPEM(privatePEM, cfg)
}

func newJWTManagerFromPEM(privatePEM []byte, cfg config.JWTConfig) (*JWTManager, error) {
	privateKey, err := jwk.ParseKey(privatePEM, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	// The kid is the key thumbprint so it survives restarts.
	kid, err := thumbprintID(privateKey)
	if err != nil {
		return nil, err
	}
	for k, v := range map[string]any{
		jwk.AlgorithmKey: jwa.ES256(),
		jwk.KeyIDKey:     kid,
	} {
		if err := privateKey.Set(k, v); err != nil {
			return nil, fmt.Errorf("set %s: %w", k, err)
		}
	}

	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	if err := publicKey.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(publicKey); err != nil {
		return nil, fmt.Errorf("add key to set: %w", err)
	}

	return &JWTManager{
		privateKey: privateKey,
		publicKey:  publicKey,
		publicJWKS: set,
		config:     cfg,
		now:        time.Now,
	}, nil
}

func thumbprintID(key jwk.Key) (string, error) {
	sum, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("thumbprint key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sum)[:16], nil
}

// GenerateKeyPair writes a fresh P-256 key pair as PEM. The private key is
// only readable by the owner.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	private, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}
	public, err := private.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	files := []struct {
		path string
		key  jwk.Key
		mode os.FileMode
	}{
		{privateKeyPath, private, 0o600},
		{publicKeyPath, public, 0o644},
	}
	for _, f := range files {
		pem, err := jwk.Pem(f.key)
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.path, err)
		}
		if err := os.WriteFile(f.path, pem, f.mode); err != nil {
			return fmt.Errorf("write %s: %w", f.path, err)
		}
	}

	return nil
}

type AccessTokenClaims struct {
	UserID       string
	Role         string
	TokenVersion int
	SessionID    string
}

func (m *JWTManager) CreateAccessToken(claims AccessTokenClaims) (string, error) {
	now := m.now()

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(m.config.AccessTokenExpire)).
		Claim(claimRole, claims.Role).
		Claim(claimTokenVersion, claims.TokenVersion).
		Claim(claimType, accessTokenType).
		Claim(claimSession, claims.SessionID).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.privateKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

func (m *JWTManager) VerifyAccessToken(
	_ context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.ES256(), m.publicKey),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(m.now)),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if err != nil {
		if isExpired(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var (
		tokenType string
		role      string
		version   float64
	)
	if err := token.Get(claimType, &tokenType); err != nil || tokenType != accessTokenType {
		return nil, fmt.Errorf("verify token: wrong type: %w", core.ErrTokenInvalid)
	}
	if err := token.Get(claimRole, &role); err != nil {
		return nil, fmt.Errorf("verify token: missing role: %w", core.ErrTokenInvalid)
	}
	if err := token.Get(claimTokenVersion, &version); err != nil {
		return nil, fmt.Errorf("verify token: missing token version: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("verify token: missing subject: %w", core.ErrTokenInvalid)
	}

	var session string
	//nolint:errcheck // tokens minted before sessions were tracked carry no sid
	_ = token.Get(claimSession, &session)

	jti, _ := token.JwtID()
	expiresAt, _ := token.Expiration()

	return &middleware.AccessTokenClaims{
		UserID:       subject,
		Role:         role,
		TokenVersion: int(version),
		SessionID:    session,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func isExpired(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "exp") && strings.Contains(msg, "not satisfied")
}

// JWKSHandler serves the public half of the signing key.
func (m *JWTManager) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if err := json.NewEncoder(w).Encode(m.publicJWKS); err != nil {
			core.InternalServerError(w, err)
		}
	}
}

func (m *JWTManager) KeyID() string {
	var kid string
	//nolint:errcheck // set in newJWTManagerFromPEM
	_ = m.privateKey.Get(jwk.KeyIDKey, &kid)
	return kid
}

type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

// CreateRefreshToken mints a token in familyID, starting a new family when
// familyID is empty.
func (m *JWTManager) CreateRefreshToken(userID, familyID string) (*RefreshTokenData, error) {
	token, hash, err := core.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token for %s: %w", userID, err)
	}

	if familyID == "" {
		familyID = uuid.New().String()
	}

	return &RefreshTokenData{
		Token:     token,
		Hash:      hash,
		ExpiresAt: m.now().Add(m.config.RefreshTokenExpire),
		FamilyID:  familyID,
	}, nil
}

func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.config.AccessTokenExpire
}
