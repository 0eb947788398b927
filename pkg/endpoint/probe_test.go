package endpoint

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/order-assistant/pkg/semver"
)

func healthServer(t *testing.T, code int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != HealthPath {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe_MixedEndpoints(t *testing.T) {
	ok := healthServer(t, http.StatusOK, `{"status":"ok","version":"0.3.0"}`)
	degraded := healthServer(t, http.StatusOK, `{"status":"degraded","database":"not_configured"}`)
	broken := healthServer(t, http.StatusOK, `not json`)
	failing := healthServer(t, http.StatusInternalServerError, `{"status":"ok"}`)
	down := healthServer(t, http.StatusOK, `{"status":"down"}`)

	reg := NewRegistry([]string{ok.URL, degraded.URL, broken.URL, failing.URL, down.URL})
	prober := NewProber(NewProberParams{Timeout: time.Second})

	report, err := prober.Probe(context.Background(), reg)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Usable)
	assert.Equal(t, 5, report.Total)

	assert.Equal(t, HealthHealthy, reg.Health(ok.URL))
	assert.Equal(t, HealthHealthy, reg.Health(degraded.URL))
	assert.Equal(t, HealthUnreachable, reg.Health(broken.URL))
	assert.Equal(t, HealthUnreachable, reg.Health(failing.URL))
	assert.Equal(t, HealthUnreachable, reg.Health(down.URL))
	assert.Equal(t, "0.3.0", report.Results[0].Version)
}

func TestProbe_NoneUsable(t *testing.T) {
	srv := healthServer(t, http.StatusServiceUnavailable, ``)
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	reg := NewRegistry([]string{srv.URL, closedURL})
	prober := NewProber(NewProberParams{Timeout: time.Second})

	report, err := prober.Probe(context.Background(), reg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoUsableEndpoints))
	assert.Contains(t, err.Error(), srv.URL)
	assert.Contains(t, err.Error(), closedURL)
	assert.Equal(t, 0, report.Usable)
}

func TestProbe_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	reg := NewRegistry([]string{slow.URL})
	prober := NewProber(NewProberParams{Timeout: 50 * time.Millisecond})

	_, err := prober.Probe(context.Background(), reg)
	require.ErrorIs(t, err, ErrNoUsableEndpoints)
}

func TestProbe_VersionGate(t *testing.T) {
	current := healthServer(t, http.StatusOK, `{"status":"ok","version":"0.3.2"}`)
	old := healthServer(t, http.StatusOK, `{"status":"ok","version":"0.2.0"}`)
	gate, err := semver.NewGate(">= 0.3.0")
	require.NoError(t, err)

	reg := NewRegistry([]string{current.URL, old.URL})
	prober := NewProber(NewProberParams{Timeout: time.Second, Gate: gate})

	report, err := prober.Probe(context.Background(), reg)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Usable)
	assert.Equal(t, HealthUnreachable, reg.Health(old.URL))
	assert.Contains(t, report.Results[1].Error, "does not satisfy")
}
