// AngelaMos | 2026
// coordinator.go

package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/carterperez-dev/bookshelf/internal/auth"
)

// SignInRecorder stamps a successful sign-in on the user's profile.
type SignInRecorder interface {
	TouchSignIn(ctx context.Context, userID string) error
}

// SessionPurger removes refresh tokens that can no longer be used.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// Coordinator is the only consumer of the auth event bus. Everything that
// reacts to sign-in or sign-out state hangs off Run.
type Coordinator struct {
	events   <-chan auth.SessionEvent
	recorder SignInRecorder
	logger   *slog.Logger
	timeout  time.Duration

	purger        SessionPurger
	purgeInterval time.Duration

	handled atomic.Int64
	failed  atomic.Int64
	purged  atomic.Int64
}

func NewCoordinator(
	bus *auth.EventBus,
	recorder SignInRecorder,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		events:   bus.Events(),
		recorder: recorder,
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

// WithPurge makes Run sweep expired refresh tokens every interval.
func (c *Coordinator) WithPurge(purger SessionPurger, interval time.Duration) *Coordinator {
	if interval > 0 {
		c.purger = purger
		c.purgeInterval = interval
	}
	return c
}

// Run consumes events until the bus is closed or ctx is cancelled. Events
// still buffered when ctx ends are drained without a deadline on the caller.
func (c *Coordinator) Run(ctx context.Context) {
	var sweep <-chan time.Time
	if c.purger != nil {
		ticker := time.NewTicker(c.purgeInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.handle(ctx, ev)
		case <-sweep:
			c.purge(ctx)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Coordinator) purge(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.purger.PurgeExpiredSessions(opCtx)
	if err != nil {
		c.logger.Warn("purge expired sessions failed", "error", err)
		return
	}
	c.purged.Add(n)
	if n > 0 {
		c.logger.Info("purged expired sessions", "count", n)
	}
}

func (c *Coordinator) drain() {
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.handle(context.Background(), ev)
		default:
			return
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, ev auth.SessionEvent) {
	c.handled.Add(1)

	switch ev.Type {
	case auth.EventSignedIn, auth.EventRegistered:
		opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		if err := c.recorder.TouchSignIn(opCtx, ev.UserID); err != nil {
			c.failed.Add(1)
			c.logger.Warn("record sign in failed",
				"user_id", ev.UserID,
				"error", err,
			)
			return
		}
		c.logger.Debug("session started",
			"event", string(ev.Type),
			"user_id", ev.UserID,
		)

	case auth.EventSignedOut, auth.EventSignedOutAll:
		c.logger.Info("session ended",
			"event", string(ev.Type),
			"user_id", ev.UserID,
			"at", ev.At,
		)

	case auth.EventRefreshed:
		c.logger.Debug("session refreshed", "user_id", ev.UserID)

	default:
		c.logger.Warn("unknown session event", "event", string(ev.Type))
	}
}

type Stats struct {
	Handled int64 `json:"handled"`
	Failed  int64 `json:"failed"`
	Purged  int64 `json:"purged"`
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		Handled: c.handled.Load(),
		Failed:  c.failed.Load(),
		Purged:  c.purged.Load(),
	}
}
