package assistant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/morezero/order-assistant/pkg/endpoint"
)

// Prompt is printed before each line is read.
const Prompt = "> "

// Banner renders the startup line for a successful probe.
func Banner(report *endpoint.ProbeReport) string {
	return fmt.Sprintf("Assistant ready. %d/%d endpoints available.", report.Usable, report.Total)
}

// StartupError renders the refusal shown when no endpoint is usable.
func StartupError(reg *endpoint.Registry) string {
	var b strings.Builder
	b.WriteString("ERROR: No order service endpoints are available. Please ensure the order service is running.\n")
	b.WriteString("Endpoints tried:")
	for _, u := range reg.URLs() {
		b.WriteString("\n  - ")
		b.WriteString(u)
	}
	return b.String()
}

// Startup probes every endpoint and returns the banner. When none is usable
// the error wraps endpoint.ErrNoUsableEndpoints; callers print StartupError.
func Startup(ctx context.Context, prober *endpoint.Prober, reg *endpoint.Registry) (string, error) {
	report, err := prober.Probe(ctx, reg)
	if err != nil {
		return "", err
	}
	return Banner(report), nil
}

// maxLineBytes bounds one utterance; the rest of a longer line is discarded.
const maxLineBytes = 1 << 20

// Run reads utterances from in until EOF, exit or quit, writing one reply per line.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	r := bufio.NewReader(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, Prompt)
		raw, long, err := readLine(r)
		if err != nil {
			fmt.Fprintln(out, "\nExiting assistant.")
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if long {
			fmt.Fprintf(out, "That message is too long (over %s). Please send a shorter one.\n", humanize.IBytes(maxLineBytes))
			continue
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit":
			return nil
		}
		fmt.Fprintln(out, s.Handle(ctx, line))
	}
}

// readLine returns the next line without its terminator. long reports that the
// line exceeded maxLineBytes and was dropped.
func readLine(r *bufio.Reader) (line string, long bool, err error) {
	var b strings.Builder
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return b.String(), long, err
		}
		if long || b.Len()+len(chunk) > maxLineBytes {
			long = true
			b.Reset()
		} else {
			b.Write(chunk)
		}
		if !isPrefix {
			return b.String(), long, nil
		}
	}
}
