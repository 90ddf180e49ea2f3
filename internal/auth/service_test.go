// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bookshelf/internal/config"
	"github.com/carterperez-dev/bookshelf/internal/core"
)

type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]*RefreshToken)}
}

func (m *memTokenRepo) Create(_ context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.CreatedAt = time.Now()
	cp := *t
	m.tokens[t.ID] = &cp
	return nil
}

func (m *memTokenRepo) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memTokenRepo) FindByID(_ context.Context, id string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTokenRepo) Rotate(_ context.Context, usedID string, next *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	used, ok := m.tokens[usedID]
	if !ok || used.IsUsed || used.RevokedAt != nil {
		return core.ErrConflict
	}
	now := time.Now()
	used.IsUsed = true
	used.UsedAt = &now
	used.ReplacedByID = &next.ID

	next.CreatedAt = now
	cp := *next
	m.tokens[next.ID] = &cp
	return nil
}

func revoke(t *RefreshToken) {
	now := time.Now()
	t.RevokedAt = &now
}

func (m *memTokenRepo) RevokeByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok || t.RevokedAt != nil {
		return core.ErrNotFound
	}
	revoke(t)
	return nil
}

func (m *memTokenRepo) RevokeByFamilyID(_ context.Context, familyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.FamilyID == familyID && t.RevokedAt == nil {
			revoke(t)
		}
	}
	return nil
}

func (m *memTokenRepo) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			revoke(t)
		}
	}
	return nil
}

func (m *memTokenRepo) ListActive(_ context.Context, userID string, now time.Time) ([]RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RefreshToken
	for _, t := range m.tokens {
		if t.UserID == userID && t.StateAt(now) == TokenActive {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if t.ExpiresAt.Before(before) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*UserInfo
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[string]*UserInfo)}
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Create(_ context.Context, email, hash, name string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return nil, core.ErrDuplicateKey
		}
	}
	u := &UserInfo{
		ID:           "user-" + name,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         core.RoleUser,
		CreatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) IncrementTokenVersion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.TokenVersion++
	}
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

func newTestJWTManager(t *testing.T) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     priv,
		PublicKeyPath:      pub,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "bookshelf-test",
		Audience:           "bookshelf-test",
	})
	require.NoError(t, err)
	return m
}

type serviceFixture struct {
	svc   *Service
	repo  *memTokenRepo
	users *memUsers
	bus   *EventBus
	jwt   *JWTManager
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &serviceFixture{
		repo:  newMemTokenRepo(),
		users: newMemUsers(),
		bus:   NewEventBus(16),
		jwt:   newTestJWTManager(t),
	}
	f.svc = NewService(f.repo, f.jwt, f.users, core.WrapRedis(rdb), f.bus)
	return f
}

func (f *serviceFixture) nextEvent(t *testing.T) SessionEvent {
	t.Helper()
	select {
	case ev := <-f.bus.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no session event published")
		return SessionEvent{}
	}
}

func TestRegisterThenLogin(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "ada@example.com",
		Password: "correct-horse",
		Name:     "ada",
	}, "test-agent", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", reg.User.Email)
	assert.Equal(t, core.RoleUser, reg.User.Role)
	assert.Equal(t, 900, reg.Tokens.ExpiresIn)
	assert.Equal(t, EventRegistered, f.nextEvent(t).Type)

	_, err = f.svc.Register(ctx, RegisterRequest{
		Email:    "ada@example.com",
		Password: "correct-horse",
		Name:     "ada2",
	}, "", "")
	assert.ErrorIs(t, err, ErrEmailExists)

	login, err := f.svc.Login(ctx, LoginRequest{
		Email:    "ada@example.com",
		Password: "correct-horse",
	}, "test-agent", "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, login.Tokens.AccessToken)

	ev := f.nextEvent(t)
	assert.Equal(t, EventSignedIn, ev.Type)
	assert.Equal(t, reg.User.ID, ev.UserID)

	_, err = f.svc.Login(ctx, LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong-password",
	}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever1",
	}, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "bob@example.com",
		Password: "correct-horse",
		Name:     "bob",
	}, "", "")
	require.NoError(t, err)
	f.nextEvent(t)

	rotated, err := f.svc.Refresh(ctx, reg.Tokens.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, reg.Tokens.RefreshToken, rotated.Tokens.RefreshToken)
	assert.Equal(t, EventRefreshed, f.nextEvent(t).Type)

	_, err = f.svc.Refresh(ctx, reg.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, ErrTokenReuse)

	_, err = f.svc.Refresh(ctx, rotated.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Refresh(ctx, "not-a-token", "", "")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "cy@example.com",
		Password: "correct-horse",
		Name:     "cy",
	}, "", "")
	require.NoError(t, err)
	f.nextEvent(t)

	claims, err := f.jwt.VerifyAccessToken(ctx, reg.Tokens.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, claims.JTI)

	require.NoError(t, f.svc.Logout(ctx, reg.Tokens.RefreshToken, claims))

	revoked, err := f.svc.IsAccessTokenRevoked(ctx, claims.JTI)
	require.NoError(t, err)
	assert.True(t, revoked)

	ev := f.nextEvent(t)
	assert.Equal(t, EventSignedOut, ev.Type)
	assert.Equal(t, reg.User.ID, ev.UserID)

	_, err = f.svc.Refresh(ctx, reg.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestLogoutRejectsForeignRefreshToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	a, err := f.svc.Register(ctx, RegisterRequest{Email: "a@example.com", Password: "correct-horse", Name: "a"}, "", "")
	require.NoError(t, err)
	b, err := f.svc.Register(ctx, RegisterRequest{Email: "b@example.com", Password: "correct-horse", Name: "b"}, "", "")
	require.NoError(t, err)

	claims, err := f.jwt.VerifyAccessToken(ctx, a.Tokens.AccessToken)
	require.NoError(t, err)

	err = f.svc.Logout(ctx, b.Tokens.RefreshToken, claims)
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestChangePasswordRevokesEverything(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "dee@example.com",
		Password: "correct-horse",
		Name:     "dee",
	}, "", "")
	require.NoError(t, err)
	f.nextEvent(t)

	err = f.svc.ChangePassword(ctx, reg.User.ID, "wrong-password", "new-password-1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.svc.ChangePassword(ctx, reg.User.ID, "correct-horse", "new-password-1"))
	assert.Equal(t, EventSignedOutAll, f.nextEvent(t).Type)

	sessions, err := f.svc.GetActiveSessions(ctx, reg.User.ID, "")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	err = f.svc.ValidateTokenVersion(ctx, reg.User.ID, 0)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestConcurrentRefreshSpendsTokenOnce(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "eve@example.com",
		Password: "correct-horse",
		Name:     "eve",
	}, "", "")
	require.NoError(t, err)

	const callers = 8
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Refresh(ctx, reg.Tokens.RefreshToken, "", "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrTokenReuse)
	}
	assert.Equal(t, 1, succeeded)
}

func TestRefreshAfterExpiry(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, RegisterRequest{
		Email:    "fay@example.com",
		Password: "correct-horse",
		Name:     "fay",
	}, "", "")
	require.NoError(t, err)

	later := time.Now().Add(48 * time.Hour)
	f.svc.now = func() time.Time { return later }

	_, err = f.svc.Refresh(ctx, reg.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenExpired)

	f.svc.now = func() time.Time { return later.Add(48 * time.Hour) }
	purged, err := f.svc.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestTokenStateAt(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	revokedAt := now.Add(-time.Minute)

	tests := []struct {
		name  string
		token RefreshToken
		want  TokenState
	}{
		{"active", RefreshToken{ExpiresAt: now.Add(time.Hour)}, TokenActive},
		{"expires now", RefreshToken{ExpiresAt: now}, TokenExpired},
		{"revoked", RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}, TokenRevoked},
		{"used wins", RefreshToken{ExpiresAt: now.Add(-time.Hour), IsUsed: true, RevokedAt: &revokedAt}, TokenUsed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.token.StateAt(now))
		})
	}
}
