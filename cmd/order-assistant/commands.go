package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/morezero/order-assistant/internal/assistant"
	"github.com/morezero/order-assistant/pkg/endpoint"
)

// Standard streams, swapped in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin
)

// ChatCmd runs the interactive session.
type ChatCmd struct{}

func (c *ChatCmd) Execute(_ []string) error {
	a, err := start()
	if err != nil {
		return err
	}
	defer a.Close()
	return a.newSession().Run(runCtx, stdin, stdout)
}

// AskCmd answers one question.
type AskCmd struct {
	Question string `short:"q" long:"question" description:"question to answer (defaults to the remaining arguments)"`
}

func (c *AskCmd) Execute(args []string) error {
	q := strings.TrimSpace(c.Question)
	if q == "" {
		q = strings.TrimSpace(strings.Join(args, " "))
	}
	if q == "" {
		return errors.New("ask: a question is required (-q or trailing arguments)")
	}
	a, err := start()
	if err != nil {
		return err
	}
	defer a.Close()
	fmt.Fprintln(stdout, a.newSession().Handle(runCtx, q))
	return nil
}

// ProbeCmd prints the health of every endpoint.
type ProbeCmd struct {
	JSON bool `long:"json" description:"print the report as JSON"`
}

func (c *ProbeCmd) Execute(_ []string) error {
	cfg, err := loadConfig(options)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, probeErr := a.prober.Probe(runCtx, a.registry)
	if c.JSON {
		if err := writeJSON(report); err != nil {
			return err
		}
	} else {
		for _, r := range report.Results {
			state := "usable"
			if !r.Usable {
				state = "unusable: " + r.Error
			}
			fmt.Fprintf(stdout, "%s\t%s\t%s\n", r.URL, versionOr(r.Version), state)
		}
		fmt.Fprintf(stdout, "%d/%d endpoints available.\n", report.Usable, report.Total)
	}
	return probeErr
}

// ToolsCmd prints the service's tool descriptors.
type ToolsCmd struct{}

func (c *ToolsCmd) Execute(_ []string) error {
	cfg, err := loadConfig(options)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.dispatcher.ListTools(runCtx)
	if res.Err != nil {
		return fmt.Errorf("tools: %w", res.Err)
	}
	return writeJSON(res.Payload)
}

// VersionCmd prints the client version.
type VersionCmd struct{}

func (c *VersionCmd) Execute(_ []string) error {
	fmt.Fprintln(stdout, version)
	return nil
}

// start wires the app and probes every endpoint, printing the banner or the
// refusal. The assistant does not start when no endpoint is usable.
func start() (*app, error) {
	cfg, err := loadConfig(options)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, err
	}
	banner, err := assistant.Startup(runCtx, a.prober, a.registry)
	if err != nil {
		a.Close()
		if errors.Is(err, endpoint.ErrNoUsableEndpoints) {
			fmt.Fprintln(stderr, assistant.StartupError(a.registry))
		}
		return nil, err
	}
	fmt.Fprintln(stdout, banner)
	return a, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func versionOr(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
