package resilience

import (
	"context"
	"sync"
	"time"
)

const unhealthyThreshold = 3

// ServiceHealth is a point-in-time view of one monitored external service.
type ServiceHealth struct {
	ServiceName         string     `json:"service_name"`
	Healthy             bool       `json:"is_healthy"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastCheck           *time.Time `json:"last_check,omitempty"`
}

// HealthTracker keeps per-service health state for the process lifetime.
// A service is marked unhealthy after three consecutive failures and
// recovers on the first success.
type HealthTracker struct {
	now func() time.Time

	mu       sync.Mutex
	services map[string]*ServiceHealth
}

// NewHealthTracker creates a tracker seeded with the named services, all
// initially healthy.
func NewHealthTracker(services ...string) *HealthTracker {
	t := &HealthTracker{now: time.Now, services: make(map[string]*ServiceHealth, len(services))}
	for _, name := range services {
		t.services[name] = &ServiceHealth{ServiceName: name, Healthy: true}
	}
	return t
}

func (t *HealthTracker) get(name string) *ServiceHealth {
	h, ok := t.services[name]
	if !ok {
		h = &ServiceHealth{ServiceName: name, Healthy: true}
		t.services[name] = h
	}
	return h
}

// RecordSuccess resets the failure streak and marks the service healthy.
func (t *HealthTracker) RecordSuccess(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.get(name)
	h.Healthy = true
	h.ConsecutiveFailures = 0
}

// RecordFailure increments the failure streak, flipping the service to
// unhealthy at the threshold.
func (t *HealthTracker) RecordFailure(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.get(name)
	h.ConsecutiveFailures++
	if h.ConsecutiveFailures >= unhealthyThreshold {
		h.Healthy = false
	}
}

// Check runs probe and folds the outcome into the service state, stamping
// the check time. The probe runs outside the tracker lock.
func (t *HealthTracker) Check(ctx context.Context, name string, probe func(context.Context) error) bool {
	err := probe(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.get(name)
	checked := t.now()
	h.LastCheck = &checked
	if err != nil {
		h.ConsecutiveFailures++
		if h.ConsecutiveFailures >= unhealthyThreshold {
			h.Healthy = false
		}
		return false
	}
	h.Healthy = true
	h.ConsecutiveFailures = 0
	return true
}

// Snapshot copies the current state of every tracked service.
func (t *HealthTracker) Snapshot() map[string]ServiceHealth {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]ServiceHealth, len(t.services))
	for name, h := range t.services {
		copied := *h
		if h.LastCheck != nil {
			ts := *h.LastCheck
			copied.LastCheck = &ts
		}
		out[name] = copied
	}
	return out
}
