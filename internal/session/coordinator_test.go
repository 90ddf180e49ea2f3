// AngelaMos | 2026
// coordinator_test.go

package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/bookshelf/internal/auth"
)

type recorder struct {
	mu      sync.Mutex
	touched []string
	fail    error
}

func (r *recorder) TouchSignIn(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.touched = append(r.touched, userID)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.touched...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCoordinatorStampsSignIns(t *testing.T) {
	bus := auth.NewEventBus(8)
	rec := &recorder{}
	c := NewCoordinator(bus, rec, quietLogger())

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	bus.Publish(auth.SessionEvent{Type: auth.EventRegistered, UserID: "u-1"})
	bus.Publish(auth.SessionEvent{Type: auth.EventRefreshed, UserID: "u-1"})
	bus.Publish(auth.SessionEvent{Type: auth.EventSignedOut, UserID: "u-1"})
	bus.Publish(auth.SessionEvent{Type: auth.EventSignedIn, UserID: "u-2"})
	bus.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not stop after bus closed")
	}

	assert.Equal(t, []string{"u-1", "u-2"}, rec.snapshot())
	assert.Equal(t, Stats{Handled: 4}, c.Stats())
}

func TestCoordinatorCountsFailures(t *testing.T) {
	bus := auth.NewEventBus(2)
	rec := &recorder{fail: errors.New("db down")}
	c := NewCoordinator(bus, rec, quietLogger())

	bus.Publish(auth.SessionEvent{Type: auth.EventSignedIn, UserID: "u-1"})
	bus.Close()
	c.Run(context.Background())

	assert.Equal(t, int64(1), c.Stats().Failed)
}

func TestCoordinatorDrainsOnCancel(t *testing.T) {
	bus := auth.NewEventBus(4)
	rec := &recorder{}
	c := NewCoordinator(bus, rec, quietLogger())

	bus.Publish(auth.SessionEvent{Type: auth.EventSignedIn, UserID: "u-1"})
	bus.Publish(auth.SessionEvent{Type: auth.EventSignedIn, UserID: "u-2"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Run(ctx)

	require.Len(t, rec.snapshot(), 2)
}

type purgeCounter struct {
	mu    sync.Mutex
	calls int
}

func (p *purgeCounter) PurgeExpiredSessions(_ context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return 2, nil
}

func (p *purgeCounter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestCoordinatorPurgesOnInterval(t *testing.T) {
	bus := auth.NewEventBus(1)
	purger := &purgeCounter{}
	c := NewCoordinator(bus, &recorder{}, quietLogger()).
		WithPurge(purger, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return purger.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, int64(2*purger.count()), c.Stats().Purged)
}

func TestCoordinatorWithoutIntervalNeverPurges(t *testing.T) {
	bus := auth.NewEventBus(1)
	purger := &purgeCounter{}
	c := NewCoordinator(bus, &recorder{}, quietLogger()).WithPurge(purger, 0)

	bus.Close()
	c.Run(context.Background())

	assert.Zero(t, purger.count())
}
