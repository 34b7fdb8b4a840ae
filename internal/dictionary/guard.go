package dictionary

import (
	"log/slog"
	"time"
)

// Write guard defaults.
const (
	DefaultWriteFailures = 5
	DefaultWriteCooldown = 30 * time.Second
)

// guardState is the mode of a [writeGuard].
type guardState int

const (
	// guardClosed forwards every append.
	guardClosed guardState = iota

	// guardOpen rejects appends with ErrWritesSuspended until the cooldown
	// has elapsed.
	guardOpen

	// guardProbing lets one append through; its result closes or re-opens
	// the guard.
	guardProbing
)

func (s guardState) String() string {
	switch s {
	case guardClosed:
		return "closed"
	case guardOpen:
		return "open"
	case guardProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// writeGuard stops hammering a failing backing file. After maxFailures
// consecutive append failures it suspends writes for cooldown, then lets a
// single trial append through.
//
// A writeGuard is not synchronised itself; the store calls it with its
// write lock held, and suspended only needs the read lock.
type writeGuard struct {
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	state    guardState
	failures int
	openedAt time.Time
}

func newWriteGuard(maxFailures int, cooldown time.Duration) *writeGuard {
	if maxFailures <= 0 {
		maxFailures = DefaultWriteFailures
	}
	if cooldown <= 0 {
		cooldown = DefaultWriteCooldown
	}
	return &writeGuard{maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

// allow returns ErrWritesSuspended while the guard is open. Once the
// cooldown has elapsed it moves to probing and allows the call.
func (g *writeGuard) allow() error {
	if g.state != guardOpen {
		return nil
	}
	if g.now().Sub(g.openedAt) < g.cooldown {
		return ErrWritesSuspended
	}
	g.state = guardProbing
	slog.Info("dictionary write guard probing")
	return nil
}

// record accounts for the result of an allowed append.
func (g *writeGuard) record(err error) {
	if err == nil {
		if g.state == guardProbing {
			slog.Info("dictionary writes resumed")
		}
		g.state = guardClosed
		g.failures = 0
		return
	}

	g.failures++
	if g.state == guardProbing || g.failures >= g.maxFailures {
		g.state = guardOpen
		g.openedAt = g.now()
		slog.Warn("dictionary writes suspended",
			"consecutive_failures", g.failures,
			"cooldown", g.cooldown,
		)
	}
}

// suspended reports whether an append would be rejected right now.
func (g *writeGuard) suspended() bool {
	return g.state == guardOpen && g.now().Sub(g.openedAt) < g.cooldown
}
