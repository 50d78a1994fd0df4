package authclient

import (
	"context"
	"sync"
	"time"
)

// Action is the user's choice when warned about an expiring session.
type Action int

const (
	// ActionDismiss leaves the session alone; no further warning is raised
	// for the current access token.
	ActionDismiss Action = iota
	// ActionExtend refreshes the access token.
	ActionExtend
	// ActionLogout ends the session immediately.
	ActionLogout
)

// MonitorOptions configures a Monitor. Zero values fall back to the
// defaults: a 30 second poll interval and a 2 minute warning threshold.
type MonitorOptions struct {
	Interval   time.Duration
	WarnBefore time.Duration
	// Now overrides the clock. Intended for tests.
	Now func() time.Time
	// OnWarning is invoked at most once per access token when expiry is
	// within WarnBefore. Its return value decides what happens next.
	OnWarning func(remaining time.Duration) Action
	// OnExpired is invoked after the session has been cleared, either
	// because the token lapsed or because a requested extension failed.
	OnExpired func()
}

// Monitor watches the locally held access token's embedded expiry while the
// session is authenticated. Each tick runs to completion before the next
// fires, so ticks never overlap.
type Monitor struct {
	client     *Client
	interval   time.Duration
	warnBefore time.Duration
	now        func() time.Time
	onWarning  func(remaining time.Duration) Action
	onExpired  func()

	mu     sync.Mutex
	stop   context.CancelFunc
	warned bool
}

func NewMonitor(client *Client, opts MonitorOptions) *Monitor {
	m := &Monitor{
		client:     client,
		interval:   opts.Interval,
		warnBefore: opts.WarnBefore,
		now:        opts.Now,
		onWarning:  opts.OnWarning,
		onExpired:  opts.OnExpired,
	}
	if m.interval <= 0 {
		m.interval = 30 * time.Second
	}
	if m.warnBefore <= 0 {
		m.warnBefore = 2 * time.Minute
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Start launches the polling loop and returns the cancellation capability
// owning it. The returned func must be called on every exit path out of the
// authenticated state (logout, teardown) so no timer is orphaned. Starting
// resets the warning state, so a fresh login warns again; a loop from an
// earlier Start is cancelled, so at most one loop runs at a time.
func (m *Monitor) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.stop != nil {
		m.stop()
	}
	m.stop = cancel
	m.warned = false
	m.mu.Unlock()

	go func() {
		m.check(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()

	return cancel
}

// check is one monitor tick.
func (m *Monitor) check(ctx context.Context) {
	if !m.client.Authenticated() {
		return
	}

	expiresAt, err := m.client.accessTokenExpiry()
	if err != nil {
		m.forceLogout()
		return
	}

	now := m.now()
	if !now.Before(expiresAt) {
		m.forceLogout()
		return
	}

	remaining := expiresAt.Sub(now)
	if remaining > m.warnBefore {
		return
	}

	m.mu.Lock()
	alreadyWarned := m.warned
	m.warned = true
	m.mu.Unlock()
	if alreadyWarned || m.onWarning == nil {
		return
	}

	switch m.onWarning(remaining) {
	case ActionExtend:
		if _, err := m.client.Refresh(ctx); err != nil {
			m.forceLogout()
			return
		}
		// A fresh token was issued; arm the warning again for it.
		m.mu.Lock()
		m.warned = false
		m.mu.Unlock()
	case ActionLogout:
		m.client.Logout(ctx)
	}
}

func (m *Monitor) forceLogout() {
	m.client.clearSession()
	if m.onExpired != nil {
		m.onExpired()
	}
}
