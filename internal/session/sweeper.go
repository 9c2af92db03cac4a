package session

import (
	"context"
	"log"
	"time"
)

// Sweeper runs SweepExpired on a fixed interval, for deployments with long
// idle gaps between calls.
type Sweeper struct {
	registry *Registry
	interval time.Duration
}

// NewSweeper creates a sweeper. A non-positive interval disables it.
func NewSweeper(registry *Registry, interval time.Duration) *Sweeper {
	return &Sweeper{registry: registry, interval: interval}
}

// Run sweeps until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("✓ Expiration sweeper running every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.registry.SweepExpired(ctx, s.registry.Now())
		}
	}
}
