package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GoodnightSam/JGL-Assistant/internal/services"
)

// MemoryCounter is an in-memory Counter for tests and callers that disable
// shared persistence.
type MemoryCounter struct {
	mu    sync.Mutex
	limit int
	used  int
	day   string
	now   func() time.Time
}

// NewMemoryCounter returns a counter with the given daily limit.
func NewMemoryCounter(limit int) *MemoryCounter {
	return &MemoryCounter{limit: limit, now: time.Now}
}

func (c *MemoryCounter) rollover() {
	day := c.now().UTC().Format("2006-01-02")
	if day != c.day {
		c.day = day
		c.used = 0
	}
}

func (c *MemoryCounter) Reserve(_ context.Context, n int) error {
	if n <= 0 {
		return services.Wrap(services.ErrValidation, "quota", "reserve", "reservation must be positive", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	if c.used+n > c.limit {
		return services.Wrap(services.ErrQuotaExceeded, "quota", "reserve",
			fmt.Sprintf("daily search budget exhausted (requested %d, used %d of %d)", n, c.used, c.limit), nil)
	}
	c.used += n
	return nil
}

func (c *MemoryCounter) Usage(_ context.Context) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollover()
	return c.used, c.limit, nil
}

// MemoryDomainScores is an in-memory DomainScores.
type MemoryDomainScores struct {
	mu       sync.Mutex
	failures map[string]int
}

// NewMemoryDomainScores returns an empty score tracker.
func NewMemoryDomainScores() *MemoryDomainScores {
	return &MemoryDomainScores{failures: make(map[string]int)}
}

func (d *MemoryDomainScores) RecordFailure(_ context.Context, domain string) error {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[domain]++
	return nil
}

func (d *MemoryDomainScores) Score(_ context.Context, domain string) (int, error) {
	normalized := NormalizeDomain(domain)
	d.mu.Lock()
	defer d.mu.Unlock()
	return ScoreFor(normalized, d.failures[normalized]), nil
}

func (d *MemoryDomainScores) Failures(_ context.Context) (map[string]int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int, len(d.failures))
	for domain, count := range d.failures {
		out[domain] = count
	}
	return out, nil
}
