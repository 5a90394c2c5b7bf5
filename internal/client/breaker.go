package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const blockedCooldown = 30 * time.Minute

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	ErrBlocked     = errors.New("request blocked by supplier")
)

// circuitBreaker stops all requests to a supplier for a while once it starts blocking us.
type circuitBreaker struct {
	name  string
	delay time.Duration
	now   func() time.Time

	mu        sync.RWMutex
	openUntil time.Time
}

func newCircuitBreaker(name string, delay time.Duration) *circuitBreaker {
	return &circuitBreaker{name: name, delay: delay, now: time.Now}
}

func (b *circuitBreaker) IsOpen() bool {
	b.mu.RLock()
	now := b.now()
	open := now.Before(b.openUntil)
	triggered := !b.openUntil.IsZero()
	b.mu.RUnlock()

	if !open && triggered {
		b.mu.Lock()
		// double-check under the write lock
		if !b.openUntil.IsZero() && !now.Before(b.openUntil) {
			b.openUntil = time.Time{}
			log.Infof("✅ Circuit breaker for %s re-enabled - requests are now allowed", b.name)
		}
		b.mu.Unlock()
	}

	return open
}

func (b *circuitBreaker) Trigger() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.openUntil = b.now().Add(b.delay)
	log.Warnf("🚫 Circuit breaker for %s activated! All requests disabled until %v (%v)",
		b.name, b.openUntil.Format("15:04:05"), b.delay)
}

func (b *circuitBreaker) Remaining() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	remaining := b.openUntil.Sub(b.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// check returns ErrCircuitOpen while the breaker is open.
func (b *circuitBreaker) check() error {
	if !b.IsOpen() {
		return nil
	}
	remaining := b.Remaining().Round(time.Second)
	log.Debugf("🚫 Request to %s blocked by circuit breaker. Remaining time: %v", b.name, remaining)
	return fmt.Errorf("%w: requests to %s disabled for %v more", ErrCircuitOpen, b.name, remaining)
}
