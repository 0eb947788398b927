package endpoint

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

// Candidate is an endpoint eligible for the next attempt.
type Candidate struct {
	URL    string
	Health Health
}

// Policy picks the endpoint for the next attempt. candidates is never empty.
type Policy interface {
	Pick(candidates []Candidate) Candidate
}

// UniformRandom picks every candidate with equal probability and ignores health.
type UniformRandom struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformRandom returns a uniform policy. A nil src uses the global generator.
func NewUniformRandom(src rand.Source) *UniformRandom {
	p := &UniformRandom{}
	if src != nil {
		p.rng = rand.New(src)
	}
	return p
}

// Pick implements Policy.
func (p *UniformRandom) Pick(candidates []Candidate) Candidate {
	return candidates[p.intN(len(candidates))]
}

func (p *UniformRandom) intN(n int) int {
	if p.rng == nil {
		return rand.IntN(n)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

// RoundRobin walks the candidate list with a shared counter.
type RoundRobin struct {
	next atomic.Uint64
}

// NewRoundRobin returns a round-robin policy.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Pick implements Policy.
func (p *RoundRobin) Pick(candidates []Candidate) Candidate {
	n := p.next.Add(1) - 1
	return candidates[n%uint64(len(candidates))]
}

// Weights used by HealthWeighted.
const (
	weightHealthy     = 4
	weightUnknown     = 2
	weightUnreachable = 1
)

// HealthWeighted prefers endpoints that answered recently but still gives
// unreachable ones a small chance so they can recover.
type HealthWeighted struct {
	uniform *UniformRandom
}

// NewHealthWeighted returns a health-weighted policy. A nil src uses the global generator.
func NewHealthWeighted(src rand.Source) *HealthWeighted {
	return &HealthWeighted{uniform: NewUniformRandom(src)}
}

// Pick implements Policy.
func (p *HealthWeighted) Pick(candidates []Candidate) Candidate {
	total := 0
	for _, c := range candidates {
		total += weightOf(c.Health)
	}
	n := p.uniform.intN(total)
	for _, c := range candidates {
		n -= weightOf(c.Health)
		if n < 0 {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

func weightOf(h Health) int {
	switch h {
	case HealthHealthy:
		return weightHealthy
	case HealthUnreachable:
		return weightUnreachable
	default:
		return weightUnknown
	}
}

// NewPolicy returns the policy registered under name.
func NewPolicy(name string) (Policy, error) {
	switch name {
	case "", "random":
		return NewUniformRandom(nil), nil
	case "round_robin":
		return NewRoundRobin(), nil
	case "health_weighted":
		return NewHealthWeighted(nil), nil
	default:
		return nil, fmt.Errorf("endpoint:policy - unknown selection policy %q", name)
	}
}
