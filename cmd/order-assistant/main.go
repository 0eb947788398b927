// Package main is the entrypoint for order-assistant, the interactive order
// question client.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
)

// version is set via -ldflags at build time.
var version = "dev"

// Options is the root command. Global flags override the matching environment
// variables for every sub-command.
type Options struct {
	Endpoints []string `short:"e" long:"endpoint" description:"order service endpoint (repeatable, overrides MCP_ENDPOINTS)"`
	Policy    string   `short:"p" long:"policy" description:"endpoint selection policy (random, round_robin, health_weighted)"`
	Provider  string   `long:"provider" description:"generation backend (ollama, openai, anthropic)"`
	Model     string   `short:"m" long:"model" description:"generation model name"`
	Verbose   bool     `short:"v" long:"verbose" description:"debug logging"`

	Chat    *ChatCmd    `command:"chat" description:"Interactive session (default)"`
	Ask     *AskCmd     `command:"ask" description:"Answer a single question and exit"`
	Probe   *ProbeCmd   `command:"probe" description:"Check every endpoint and print the report"`
	Tools   *ToolsCmd   `command:"tools" description:"List the tools the order service advertises"`
	Version *VersionCmd `command:"version" description:"Print the version"`
}

// options and runCtx are shared with sub-command Execute methods.
var (
	options = &Options{}
	runCtx  = context.Background()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Println(ferr.Message)
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args and executes the selected command, falling back to chat
// when none is named.
func run(ctx context.Context, args []string) error {
	*options = Options{}
	runCtx = ctx
	parser := flags.NewParser(options, flags.HelpFlag|flags.PassDoubleDash)
	parser.SubcommandsOptional = true
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return (&ChatCmd{}).Execute(args)
		}
		return cmd.Execute(args)
	}
	_, err := parser.ParseArgs(args)
	return err
}
