package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/morezero/order-assistant/pkg/semver"
)

const probeLogPrefix = "endpoint:probe"

// HealthPath is the health route every order-service replica exposes.
const HealthPath = "/mcp/health"

// ErrNoUsableEndpoints is returned by Probe when no endpoint answered usably.
var ErrNoUsableEndpoints = errors.New("no order service endpoints are available")

// ProbeResult is the outcome of checking one endpoint.
type ProbeResult struct {
	URL     string `json:"url"`
	Usable  bool   `json:"usable"`
	Status  string `json:"status,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProbeReport summarizes a probe across every registered endpoint.
type ProbeReport struct {
	Results []ProbeResult `json:"results"`
	Usable  int           `json:"usable"`
	Total   int           `json:"total"`
}

// healthBody is the subset of /mcp/health the probe reads.
type healthBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Prober checks endpoint health at startup.
type Prober struct {
	client  *http.Client
	timeout time.Duration
	gate    *semver.Gate
}

// NewProberParams holds parameters for NewProber.
type NewProberParams struct {
	Client  *http.Client
	Timeout time.Duration
	// Gate rejects endpoints whose reported version does not satisfy it (nil = no gate).
	Gate *semver.Gate
}

// NewProber creates a Prober. A nil client uses http.DefaultClient.
func NewProber(params NewProberParams) *Prober {
	client := params.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{client: client, timeout: timeout, gate: params.Gate}
}

// Probe checks every endpoint in parallel and records the outcome in reg.
// It returns ErrNoUsableEndpoints (wrapped with the attempted URLs) when none is usable.
func (p *Prober) Probe(ctx context.Context, reg *Registry) (*ProbeReport, error) {
	urls := reg.URLs()
	results := make([]ProbeResult, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = p.check(gctx, u)
			return nil
		})
	}
	_ = g.Wait()

	report := &ProbeReport{Results: results, Total: len(urls)}
	for _, r := range results {
		if r.Usable {
			report.Usable++
			reg.MarkHealthy(r.URL, r.Version)
			continue
		}
		reg.MarkUnreachable(r.URL)
		slog.Warn(fmt.Sprintf("%s - %s unusable: %s", probeLogPrefix, r.URL, r.Error))
	}

	slog.Info(fmt.Sprintf("%s - %d/%d endpoints usable", probeLogPrefix, report.Usable, report.Total))
	if report.Usable == 0 {
		return report, fmt.Errorf("%w (tried: %s)", ErrNoUsableEndpoints, strings.Join(urls, ", "))
	}
	return report, nil
}

// check performs one health request. Only a 200 whose body reports ok or
// degraded (and passes the version gate) is usable.
func (p *Prober) check(ctx context.Context, url string) ProbeResult {
	res := ProbeResult{URL: url}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url+HealthPath, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	resp, err := p.client.Do(req)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if resp.StatusCode != http.StatusOK {
		res.Error = fmt.Sprintf("status %d", resp.StatusCode)
		return res
	}

	var body healthBody
	if err := json.Unmarshal(data, &body); err != nil {
		res.Error = "invalid JSON health body"
		return res
	}
	res.Status = body.Status
	res.Version = body.Version

	if body.Status != "ok" && body.Status != "degraded" {
		res.Error = fmt.Sprintf("reported status %q", body.Status)
		return res
	}
	if err := p.gate.Check(body.Version); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Usable = true
	return res
}
