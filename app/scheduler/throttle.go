package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle paces outbound sends of one tenant. Wait blocks until the next send may go out.
type Throttle interface {
	Wait(ctx context.Context, tenantID uint, interval time.Duration) error
}

// SendInterval is the spacing between two sends for a tenant allowed perMinute messages
func SendInterval(perMinute int) time.Duration {
	if perMinute <= 0 {
		return 0
	}
	return time.Duration(60000/perMinute) * time.Millisecond
}

// RateThrottle keeps one token bucket (burst 1) per tenant
type RateThrottle struct {
	mu       sync.Mutex
	limiters map[uint]*rate.Limiter
}

func NewRateThrottle() *RateThrottle {
	return &RateThrottle{limiters: make(map[uint]*rate.Limiter)}
}

func (t *RateThrottle) Wait(ctx context.Context, tenantID uint, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	limit := rate.Every(interval)

	t.mu.Lock()
	l, ok := t.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(limit, 1)
		t.limiters[tenantID] = l
	} else if l.Limit() != limit {
		l.SetLimit(limit)
	}
	t.mu.Unlock()

	return l.Wait(ctx)
}
