// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/bookshelf/internal/core"
	"github.com/carterperez-dev/bookshelf/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
)

type UserInfo struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	TokenVersion int
	CreatedAt    time.Time
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		email, passwordHash, name string,
	) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// Denylist remembers revoked access tokens until they would have expired.
type Denylist interface {
	Deny(ctx context.Context, id string, ttl time.Duration) error
	Denied(ctx context.Context, id string) (bool, error)
}

const (
	// expiredTokenGrace keeps expired tokens around long enough for reuse
	// detection to still see them.
	expiredTokenGrace = 24 * time.Hour
)

type Service struct {
	repo         Repository
	jwt          *JWTManager
	userProvider UserProvider
	denylist     Denylist
	events       *EventBus
	now          func() time.Time
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	userProvider UserProvider,
	denylist Denylist,
	events *EventBus,
) *Service {
	return &Service{
		repo:         repo,
		jwt:          jwt,
		userProvider: userProvider,
		denylist:     denylist,
		events:       events,
		now:          time.Now,
	}
}

func (s *Service) publish(t SessionEventType, userID, role string) {
	s.events.Publish(SessionEvent{Type: t, UserID: userID, Role: role})
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.BurnPasswordCheck(req.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	match, err := core.ComparePassword(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !match.OK {
		return nil, ErrInvalidCredentials
	}

	if match.Rehash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.userProvider.UpdatePassword(ctx, user.ID, match.Rehash)
	}

	resp, err := s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
	if err != nil {
		return nil, err
	}

	s.publish(EventSignedIn, user.ID, user.Role)
	return resp, nil
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, req.Email, passwordHash, req.Name)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	resp, err := s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
	if err != nil {
		return nil, err
	}

	s.publish(EventRegistered, user.ID, user.Role)
	return resp, nil
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	tokenHash := core.DigestToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	switch storedToken.StateAt(s.now()) {
	case TokenUsed:
		s.revokeFamily(ctx, storedToken.FamilyID)
		return nil, ErrTokenReuse
	case TokenRevoked:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	case TokenExpired:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.userProvider.GetByID(ctx, storedToken.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	resp, err := s.createAuthResponse(
		ctx,
		user,
		userAgent,
		ipAddress,
		storedToken.FamilyID,
		&storedToken.ID,
	)
	if err != nil {
		return nil, err
	}

	s.publish(EventRefreshed, user.ID, user.Role)
	return resp, nil
}

// Logout revokes the presented refresh token and denies the access
// token carried by the request until it would have expired anyway.
func (s *Service) Logout(
	ctx context.Context,
	refreshToken string,
	claims *middleware.AccessTokenClaims,
) error {
	if claims.JTI != "" {
		if err := s.RevokeAccessToken(ctx, claims.JTI, claims.ExpiresAt); err != nil {
			return err
		}
	}

	if refreshToken != "" {
		tokenHash := core.DigestToken(refreshToken)

		storedToken, err := s.repo.FindByHash(ctx, tokenHash)
		switch {
		case errors.Is(err, core.ErrNotFound):
		case err != nil:
			return fmt.Errorf("find token: %w", err)
		case storedToken.UserID != claims.UserID:
			return fmt.Errorf("logout: %w", core.ErrForbidden)
		default:
			if err := s.repo.RevokeByID(ctx, storedToken.ID); err != nil &&
				!errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("revoke token: %w", err)
			}
		}
	}

	s.publish(EventSignedOut, claims.UserID, claims.Role)
	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.userProvider.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	s.publish(EventSignedOutAll, userID, "")
	return nil
}

// revokeFamily ends every session descended from one sign-in. It runs on
// a detached context so a client hanging up cannot cut it short.
func (s *Service) revokeFamily(ctx context.Context, familyID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	//nolint:errcheck // the caller already fails the refresh
	_ = s.repo.RevokeByFamilyID(ctx, familyID)
}

// PurgeExpiredSessions drops refresh tokens that expired more than a day
// ago.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now().Add(-expiredTokenGrace))
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	if err := s.denylist.Deny(ctx, jti, expiresAt.Sub(s.now())); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *Service) IsAccessTokenRevoked(
	ctx context.Context,
	jti string,
) (bool, error) {
	return s.denylist.Denied(ctx, jti)
}

// GetActiveSessions lists usable refresh tokens. currentSession is the
// family id carried by the caller's access token and may be empty.
func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID, currentSession string,
) ([]SessionInfo, error) {
	tokens, err := s.repo.ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			Current:   currentSession != "" && t.FamilyID == currentSession,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
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
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	match, err := core.ComparePassword(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !match.OK {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userProvider.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.LogoutAll(ctx, userID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	return nil
}

// ValidateTokenVersion rejects tokens minted before the user's last
// sign-out-everywhere, password change or role change, and tokens of
// deleted users.
func (s *Service) ValidateTokenVersion(
	ctx context.Context,
	userID string,
	tokenVersion int,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if tokenVersion < user.TokenVersion {
		return fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := newUserResponse(user)
	return &resp, nil
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID string,
	oldTokenID *string,
) (*AuthResponse, error) {
	refreshData, err := s.jwt.CreateRefreshToken(user.ID, familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	accessToken, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       user.ID,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
		SessionID:    refreshData.FamilyID,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
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
		if err := s.repo.Create(ctx, refreshTokenEntity); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
	} else if err := s.repo.Rotate(ctx, *oldTokenID, refreshTokenEntity); err != nil {
		if errors.Is(err, core.ErrConflict) {
			s.revokeFamily(ctx, familyID)
			return nil, ErrTokenReuse
		}
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &AuthResponse{
		User:   newUserResponse(user),
		Tokens: newTokenResponse(accessToken, refreshData.Token, s.jwt.AccessTokenTTL(), s.now()),
	}, nil
}
