/*
scheduler.go - Background pass-expiry sweeper

PURPOSE:
  Periodically archives active passes whose expiry day has passed, so
  balances and allocations reflect expiry without anyone clicking a
  button. The sweep is idempotent; running it twice archives nothing
  new. The /api/admin/expire-passes endpoint triggers the same sweep on
  demand.

LIFECYCLE:
  Start launches a goroutine that sweeps immediately and then on every
  tick. Stop signals it and blocks until it exits.

SEE ALSO:
  - roster/service.go: ExpirePasses, the operation being scheduled
  - cmd/server/main.go: Wires the scheduler into server startup
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/atelier/studio-engine/billing"
	"github.com/atelier/studio-engine/roster"
)

// DefaultSweepInterval is how often the sweeper runs. Expiry has day
// granularity, so hourly is already generous.
const DefaultSweepInterval = 1 * time.Hour

// ExpiryScheduler drives periodic pass-expiry sweeps.
type ExpiryScheduler struct {
	service  *roster.Service
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewExpiryScheduler creates a scheduler. A non-positive interval
// falls back to the default.
func NewExpiryScheduler(service *roster.Service, interval time.Duration) *ExpiryScheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &ExpiryScheduler{service: service, interval: interval}
}

// Start launches the background loop. Calling Start on a running
// scheduler is a no-op.
func (s *ExpiryScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.stop)
	log.Printf("[Scheduler] Started, sweeping every %s", s.interval)
}

// Stop signals the loop and waits for it to exit. Safe to call on a
// stopped scheduler.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	log.Printf("[Scheduler] Stopped")
}

func (s *ExpiryScheduler) run(stop chan struct{}) {
	defer s.wg.Done()

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-stop:
			return
		}
	}
}

// RunNow triggers one sweep synchronously, outside the schedule.
func (s *ExpiryScheduler) RunNow() (int, error) {
	return s.service.ExpirePasses(context.Background(), billing.Today())
}

func (s *ExpiryScheduler) sweep() {
	archived, err := s.service.ExpirePasses(context.Background(), billing.Today())
	if err != nil {
		log.Printf("[Scheduler] Expiry sweep failed: %v", err)
		return
	}
	if archived > 0 {
		log.Printf("[Scheduler] Archived %d expired pass(es)", archived)
	}
}
