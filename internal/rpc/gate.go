package rpc

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// GateConfig bounds admission to one procedure.
type GateConfig struct {
	// Concurrency caps in-flight invocations; 0 disables the cap.
	Concurrency int
	// QueueTimeout is how long Acquire waits for a free slot.
	QueueTimeout time.Duration
	// Rate and Burst configure a token bucket; Rate 0 disables it.
	Rate  float64
	Burst int
}

// Gate is a scoped admission ticket: Acquire hands out a release func that
// must run on every exit path. Release is idempotent.
type Gate struct {
	slots        chan struct{}
	queueTimeout time.Duration
	limiter      *rate.Limiter
}

func NewGate(cfg GateConfig) *Gate {
	g := &Gate{queueTimeout: cfg.QueueTimeout}
	if cfg.Concurrency > 0 {
		g.slots = make(chan struct{}, cfg.Concurrency)
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return g
}

func noRelease() {}

// Acquire admits one invocation or fails with ErrCapacity.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if g == nil {
		return noRelease, nil
	}
	if g.limiter != nil && !g.limiter.Allow() {
		return nil, ErrCapacity
	}
	if g.slots == nil {
		return noRelease, nil
	}

	select {
	case g.slots <- struct{}{}:
		return g.releaser(), nil
	default:
	}
	if g.queueTimeout <= 0 {
		return nil, ErrCapacity
	}

	timer := time.NewTimer(g.queueTimeout)
	defer timer.Stop()
	select {
	case g.slots <- struct{}{}:
		return g.releaser(), nil
	case <-timer.C:
		return nil, ErrCapacity
	case <-ctx.Done():
		return nil, ErrCapacity
	}
}

// InFlight returns the number of held slots.
func (g *Gate) InFlight() int {
	if g == nil || g.slots == nil {
		return 0
	}
	return len(g.slots)
}

func (g *Gate) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-g.slots })
	}
}
