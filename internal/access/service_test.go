// AngelaMos | 2026
// service_test.go

package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bookshelf/internal/core"
)

type memRepo struct {
	mu     sync.Mutex
	grants map[[2]string]*Grant
	getErr error
}

func newMemRepo() *memRepo {
	return &memRepo{grants: make(map[[2]string]*Grant)}
}

func (m *memRepo) Upsert(_ context.Context, g *Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{g.UserID, g.BookID}
	if existing, ok := m.grants[key]; ok {
		g.ID = existing.ID
	} else {
		g.ID = "grant-" + g.UserID + "-" + g.BookID
	}
	cp := *g
	m.grants[key] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, userID, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{userID, bookID}
	if _, ok := m.grants[key]; !ok {
		return core.ErrNotFound
	}
	delete(m.grants, key)
	return nil
}

func (m *memRepo) Get(_ context.Context, userID, bookID string) (*Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	g, ok := m.grants[[2]string{userID, bookID}]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memRepo) ListForUser(_ context.Context, userID string) ([]GrantWithBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []GrantWithBook
	for _, g := range m.grants {
		if g.UserID == userID {
			out = append(out, GrantWithBook{Grant: *g})
		}
	}
	return out, nil
}

func (m *memRepo) ListForBook(_ context.Context, bookID string) ([]GrantWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []GrantWithUser
	for _, g := range m.grants {
		if g.BookID == bookID {
			out = append(out, GrantWithUser{Grant: *g})
		}
	}
	return out, nil
}

func (m *memRepo) ListActiveBooks(_ context.Context, userID string, now time.Time) ([]AccessibleBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AccessibleBook
	for _, g := range m.grants {
		if g.UserID == userID && g.StatusAt(now) == StatusGranted {
			out = append(out, AccessibleBook{BookID: g.BookID, GrantedAt: g.GrantedAt, ExpiresAt: g.ExpiresAt})
		}
	}
	return out, nil
}

func (m *memRepo) Count(_ context.Context, now time.Time) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active, expired int
	for _, g := range m.grants {
		if g.StatusAt(now) == StatusGranted {
			active++
		} else {
			expired++
		}
	}
	return active, expired, nil
}

const (
	adminID     = "0b5c6a8e-1f7d-4c2a-9e3b-5d4f6a7b8c90"
	readerID    = "3f2a1b4c-5d6e-4f70-8a9b-0c1d2e3f4a5b"
	otherUserID = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	bookOne     = "11111111-1111-4111-8111-111111111111"
	bookTwo     = "22222222-2222-4222-8222-222222222222"
	bookThree   = "33333333-3333-4333-8333-333333333333"
	bookFour    = "44444444-4444-4444-8444-444444444444"
	bookFive    = "55555555-5555-4555-8555-555555555555"
)

var (
	clockNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	admin    = core.Viewer{UserID: adminID, Role: core.RoleAdmin}
	reader   = core.Viewer{UserID: readerID, Role: core.RoleUser}
)

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	svc := NewService(repo).WithClock(func() time.Time { return clockNow })
	return svc, repo
}

func ptr[T any](v T) *T { return &v }

func TestCheckExamples(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	repo.grants[[2]string{readerID, bookThree}] = &Grant{
		UserID: readerID, BookID: bookThree, ExpiresAt: ptr(clockNow.Add(-24 * time.Hour)),
	}
	repo.grants[[2]string{readerID, bookFour}] = &Grant{
		UserID: readerID, BookID: bookFour,
	}

	tests := []struct {
		name   string
		bookID string
		want   CheckResponse
	}{
		{"expired yesterday", bookThree, CheckResponse{HasAccess: false, Expired: true, Status: StatusExpired}},
		{"unlimited grant", bookFour, CheckResponse{HasAccess: true, Expired: false, Status: StatusGranted}},
		{"no grant row", bookFive, CheckResponse{HasAccess: false, Expired: false, Status: StatusNone}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, err := svc.Check(ctx, reader, tc.bookID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ToCheckResponse(status))
		})
	}
}

func TestCheckExpiryBoundary(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	repo.grants[[2]string{readerID, bookOne}] = &Grant{UserID: readerID, BookID: bookOne, ExpiresAt: ptr(clockNow)}
	repo.grants[[2]string{readerID, bookTwo}] = &Grant{UserID: readerID, BookID: bookTwo, ExpiresAt: ptr(clockNow.Add(time.Second))}

	status, err := svc.Check(ctx, reader, bookOne)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, status)

	status, err = svc.Check(ctx, reader, bookTwo)
	require.NoError(t, err)
	assert.Equal(t, StatusGranted, status)

	svc.WithClock(func() time.Time { return clockNow.Add(2 * time.Second) })
	status, err = svc.Check(ctx, reader, bookTwo)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, status, "expiry is evaluated at read time")
	assert.Len(t, repo.grants, 2, "lapsed grants are never swept")
}

func TestAdminAlwaysGranted(t *testing.T) {
	svc, repo := newTestService()
	repo.getErr = errors.New("must not be called")

	status, err := svc.Check(context.Background(), admin, "not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, StatusGranted, status)
}

func TestCheckAnonymousAndRepoFailure(t *testing.T) {
	svc, repo := newTestService()

	status, err := svc.Check(context.Background(), core.Viewer{}, bookOne)
	require.NoError(t, err)
	assert.Equal(t, StatusNone, status)

	repo.getErr = errors.New("connection reset")
	_, err = svc.Check(context.Background(), reader, bookOne)
	assert.Error(t, err)
}

func TestGrantUpsertsOneRowPerPair(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	first, err := svc.Grant(ctx, admin, readerID, bookOne, GrantRequest{ExpiresAt: ptr(clockNow.Add(time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, adminID, *first.GrantedBy)
	assert.Equal(t, clockNow, first.GrantedAt)

	second, err := svc.Grant(ctx, admin, readerID, bookOne, GrantRequest{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Nil(t, second.ExpiresAt)
	assert.Len(t, repo.grants, 1)

	_, err = svc.Grant(ctx, admin, readerID, bookTwo, GrantRequest{ExpiresAt: ptr(clockNow.Add(-time.Minute))})
	assert.ErrorIs(t, err, ErrInvalidExpiry)

	_, err = svc.Grant(ctx, reader, readerID, bookTwo, GrantRequest{})
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestRevoke(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Grant(ctx, admin, readerID, bookOne, GrantRequest{})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Revoke(ctx, reader, readerID, bookOne), core.ErrForbidden)
	require.NoError(t, svc.Revoke(ctx, admin, readerID, bookOne))
	assert.ErrorIs(t, svc.Revoke(ctx, admin, readerID, bookOne), core.ErrNotFound)

	status, err := svc.Check(ctx, reader, bookOne)
	require.NoError(t, err)
	assert.Equal(t, StatusNone, status)
}

func TestAccessibleBooksSkipsExpired(t *testing.T) {
	svc, repo := newTestService()

	repo.grants[[2]string{readerID, bookOne}] = &Grant{UserID: readerID, BookID: bookOne}
	repo.grants[[2]string{readerID, bookTwo}] = &Grant{UserID: readerID, BookID: bookTwo, ExpiresAt: ptr(clockNow.Add(-time.Hour))}
	repo.grants[[2]string{otherUserID, bookThree}] = &Grant{UserID: otherUserID, BookID: bookThree}

	books, err := svc.AccessibleBooks(context.Background(), reader)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, bookOne, books[0].BookID)

	counts, err := svc.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{Active: 2, Expired: 1}, counts)

	_, err = svc.AccessibleBooks(context.Background(), core.Viewer{})
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestMalformedIDsNeverReachTheRepository(t *testing.T) {
	svc, repo := newTestService()
	repo.getErr = errors.New("invalid input syntax for type uuid")
	ctx := context.Background()

	status, err := svc.Check(ctx, reader, "not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, StatusNone, status)

	_, err = svc.Grant(ctx, admin, "not-a-uuid", bookOne, GrantRequest{})
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = svc.Grant(ctx, admin, readerID, "not-a-uuid", GrantRequest{})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, svc.Revoke(ctx, admin, readerID, "../etc"), core.ErrNotFound)

	_, err = svc.ListForUser(ctx, admin, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = svc.ListForBook(ctx, admin, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, repo.grants)
}
