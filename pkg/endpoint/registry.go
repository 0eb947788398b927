// Package endpoint tracks the order-service replicas the assistant may call,
// their health, and how one is picked for the next attempt.
package endpoint

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const logPrefix = "endpoint:registry"

// Health is the last known reachability of an endpoint.
type Health string

const (
	HealthUnknown     Health = "unknown"
	HealthHealthy     Health = "healthy"
	HealthUnreachable Health = "unreachable"
)

// Status is a point-in-time view of one endpoint.
type Status struct {
	URL       string    `json:"url"`
	Health    Health    `json:"health"`
	Version   string    `json:"version,omitempty"`
	CheckedAt time.Time `json:"checkedAt,omitempty"`
}

// Registry is the ordered set of endpoint base URLs plus their health.
// Endpoints are fixed at construction; only health changes afterwards.
type Registry struct {
	mu     sync.RWMutex
	urls   []string
	status map[string]*Status
}

// NewRegistry builds a registry from base URLs. Blank and duplicate entries are
// dropped and trailing slashes trimmed; order is preserved.
func NewRegistry(urls []string) *Registry {
	r := &Registry{status: make(map[string]*Status, len(urls))}
	for _, u := range urls {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u == "" {
			continue
		}
		if _, dup := r.status[u]; dup {
			continue
		}
		r.urls = append(r.urls, u)
		r.status[u] = &Status{URL: u, Health: HealthUnknown}
	}
	return r
}

// URLs returns the endpoint base URLs in registration order.
func (r *Registry) URLs() []string {
	out := make([]string, len(r.urls))
	copy(out, r.urls)
	return out
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	return len(r.urls)
}

// Health returns the recorded health of url (HealthUnknown for unregistered URLs).
func (r *Registry) Health(url string) Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.status[url]; ok {
		return s.Health
	}
	return HealthUnknown
}

// MarkHealthy records a successful contact with url.
func (r *Registry) MarkHealthy(url, version string) {
	r.set(url, HealthHealthy, version)
}

// MarkUnreachable records a failed contact with url.
func (r *Registry) MarkUnreachable(url string) {
	r.set(url, HealthUnreachable, "")
}

func (r *Registry) set(url string, h Health, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.status[url]
	if !ok {
		return
	}
	if s.Health != h {
		slog.Debug(fmt.Sprintf("%s - %s: %s -> %s", logPrefix, url, s.Health, h))
	}
	s.Health = h
	if version != "" {
		s.Version = version
	}
	s.CheckedAt = time.Now().UTC()
}

// Healthy returns the URLs currently marked healthy, in registration order.
func (r *Registry) Healthy() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, u := range r.urls {
		if r.status[u].Health == HealthHealthy {
			out = append(out, u)
		}
	}
	return out
}

// Snapshot returns a copy of every endpoint's status in registration order.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.urls))
	for _, u := range r.urls {
		out = append(out, *r.status[u])
	}
	return out
}

// Candidates returns every endpoint not present in exclude, with its health.
func (r *Registry) Candidates(exclude map[string]bool) []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Candidate, 0, len(r.urls))
	for _, u := range r.urls {
		if exclude[u] {
			continue
		}
		out = append(out, Candidate{URL: u, Health: r.status[u].Health})
	}
	return out
}
