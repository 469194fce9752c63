package otp

import (
	"context"
	"sync"
	"time"

	"github.com/go-auth-flow/internal/domain"
)

// DefaultCooldown is the number of ticks a user waits between resends.
const DefaultCooldown = 60

// Challenge is what the signup step hands to the OTP step. It is not part of
// the Session.
type Challenge struct {
	Email string
	Type  domain.OTPType
}

// Cooldown gates the resend action. It starts full because a code was just
// sent, counts down one step per Tick, and allows a resend only at zero.
type Cooldown struct {
	mu        sync.Mutex
	full      int
	remaining int
}

// NewCooldown returns a cooldown of n ticks (DefaultCooldown when n <= 0).
func NewCooldown(n int) *Cooldown {
	if n <= 0 {
		n = DefaultCooldown
	}
	return &Cooldown{full: n, remaining: n}
}

// Remaining returns the ticks left before a resend is allowed.
func (c *Cooldown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// CanResend reports whether the countdown reached zero.
func (c *Cooldown) CanResend() bool { return c.Remaining() == 0 }

// Tick decrements the countdown, never below zero, and returns what remains.
func (c *Cooldown) Tick() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining
}

// Reset restarts the countdown after a successful resend.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining = c.full
}

// Run ticks every interval until the countdown reaches zero or ctx is done.
// onTick, when non-nil, receives the remaining count after each tick.
func (c *Cooldown) Run(ctx context.Context, interval time.Duration, onTick func(remaining int)) {
	if c.CanResend() {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rem := c.Tick()
			if onTick != nil {
				onTick(rem)
			}
			if rem == 0 {
				return
			}
		}
	}
}
