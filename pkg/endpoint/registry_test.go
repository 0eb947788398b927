package endpoint

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_NormalizesAndDedupes(t *testing.T) {
	reg := NewRegistry([]string{"http://a:1/", " ", "http://b:2", "http://a:1"})

	assert.Equal(t, []string{"http://a:1", "http://b:2"}, reg.URLs())
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, HealthUnknown, reg.Health("http://a:1"))
	assert.Equal(t, HealthUnknown, reg.Health("http://nope"))
}

func TestRegistry_MarkAndCandidates(t *testing.T) {
	reg := NewRegistry([]string{"http://a", "http://b", "http://c"})
	reg.MarkHealthy("http://a", "0.3.0")
	reg.MarkUnreachable("http://b")
	reg.MarkHealthy("http://unregistered", "")

	assert.Equal(t, []string{"http://a"}, reg.Healthy())

	cands := reg.Candidates(map[string]bool{"http://a": true})
	require.Len(t, cands, 2)
	assert.Equal(t, Candidate{URL: "http://b", Health: HealthUnreachable}, cands[0])
	assert.Equal(t, Candidate{URL: "http://c", Health: HealthUnknown}, cands[1])

	snap := reg.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "0.3.0", snap[0].Version)
	assert.False(t, snap[0].CheckedAt.IsZero())
	assert.True(t, snap[2].CheckedAt.IsZero())
}

func TestUniformRandom_CoversAllCandidates(t *testing.T) {
	p := NewUniformRandom(rand.NewPCG(1, 2))
	cands := []Candidate{{URL: "a"}, {URL: "b"}, {URL: "c"}}

	seen := map[string]int{}
	for i := 0; i < 300; i++ {
		seen[p.Pick(cands).URL]++
	}
	assert.Len(t, seen, 3)
	for url, n := range seen {
		assert.Greater(t, n, 50, "endpoint %s picked too rarely", url)
	}
}

func TestUniformRandom_GlobalSource(t *testing.T) {
	p := NewUniformRandom(nil)
	got := p.Pick([]Candidate{{URL: "only"}})
	assert.Equal(t, "only", got.URL)
}

func TestRoundRobin_Cycles(t *testing.T) {
	p := NewRoundRobin()
	cands := []Candidate{{URL: "a"}, {URL: "b"}, {URL: "c"}}

	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, p.Pick(cands).URL)
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, got)
}

func TestHealthWeighted_PrefersHealthy(t *testing.T) {
	p := NewHealthWeighted(rand.NewPCG(7, 11))
	cands := []Candidate{
		{URL: "down", Health: HealthUnreachable},
		{URL: "up", Health: HealthHealthy},
	}

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		counts[p.Pick(cands).URL]++
	}
	assert.Greater(t, counts["up"], counts["down"])
	assert.Greater(t, counts["down"], 0)
}

func TestNewPolicy(t *testing.T) {
	for _, name := range []string{"", "random", "round_robin", "health_weighted"} {
		p, err := NewPolicy(name)
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}
	_, err := NewPolicy("sticky")
	assert.Error(t, err)
}
