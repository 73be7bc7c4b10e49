// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

// Command fluxcheck validates Flux jobspecs and batch scripts, counts the
// resources they request and serves both operations as MCP tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/jllopis/fluxcheck/pkg/config"
	"github.com/jllopis/fluxcheck/pkg/jobspec"
	"github.com/jllopis/fluxcheck/pkg/telemetry"
	"github.com/jllopis/fluxcheck/pkg/validate"
)

var version = "dev"

type globalOptions struct {
	Config  string        `short:"c" long:"config" description:"Path to a YAML config file"`
	Profile string        `long:"profile" description:"Overlay config.<profile>.yaml next to --config"`
	Set     []string      `long:"set" description:"Override a config key (key=value), repeatable"`
	JSON    bool          `long:"json" description:"Print machine readable JSON"`
	Timeout time.Duration `long:"timeout" default:"30s" description:"Timeout for remote calls"`
}

// app carries what every command needs once global options are parsed.
type app struct {
	ctx    context.Context
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	opts     globalOptions
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *telemetry.ValidationMetrics
	shutdown telemetry.ShutdownFunc
}

// exitError ends the process with code without printing anything more.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{ctx: ctx, stdin: stdin, stdout: stdout, stderr: stderr}
	parser := newParser(a)

	_, err := parser.ParseArgs(args)
	if err == nil {
		return 0
	}

	var (
		flagsErr *flags.Error
		exitErr  *exitError
		cliErr   *CLIError
	)
	switch {
	case errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp:
		fmt.Fprintln(stdout, flagsErr.Message)
		return 0
	case errors.As(err, &flagsErr):
		fmt.Fprintln(stderr, flagsErr.Message)
		return 2
	case errors.As(err, &exitErr):
		return exitErr.code
	case errors.As(err, &cliErr):
		cliErr.PrintError(stderr, a.opts.JSON)
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
}

func newParser(a *app) *flags.Parser {
	parser := flags.NewNamedParser("fluxcheck", flags.HelpFlag|flags.PassDoubleDash)
	parser.ShortDescription = "Flux jobspec and batch script validator"
	if _, err := parser.AddGroup("Global Options", "", &a.opts); err != nil {
		panic(err)
	}

	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"validate", "Validate jobspecs or batch scripts", "Validate each FILE (or stdin with -) and report every error found", &validateCommand{app: a}},
		{"count", "Count requested resources", "Validate a jobspec and print the count of every resource vertex in pre-order", &countCommand{app: a}},
		{"serve", "Serve the MCP tools", "Expose flux_validate_jobspec and flux_count_jobspec_resources over MCP", &serveCommand{app: a}},
		{"audit", "Inspect recorded tool calls", "Read the audit log written by serve when audit.enabled is set", &auditCommand{List: auditListCommand{app: a}}},
		{"version", "Print the version", "Print the fluxcheck version", &versionCommand{app: a}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(err)
		}
	}

	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		if err := a.setup(); err != nil {
			return err
		}
		defer a.close()
		return cmd.Execute(args)
	}
	return parser
}

// configArgs rebuilds the config CLI arguments from the global options.
func (a *app) configArgs() []string {
	var args []string
	if a.opts.Config != "" {
		args = append(args, "--config", a.opts.Config)
	}
	if a.opts.Profile != "" {
		args = append(args, "--profile", a.opts.Profile)
	}
	for _, s := range a.opts.Set {
		args = append(args, "--set", s)
	}
	return args
}

func (a *app) setup() error {
	cfg, err := config.LoadWithCLI(a.configArgs())
	if err != nil {
		return NewConfigError(err, a.opts.Config)
	}
	a.cfg = cfg
	a.logger = telemetry.ConfigureSlog(a.stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.Init("fluxcheck", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		Output:       a.stderr,
	})
	if err != nil {
		return NewConfigError(err, a.opts.Config)
	}
	a.shutdown = shutdown

	metrics, err := telemetry.NewValidationMetrics(nil)
	if err != nil {
		a.logger.Warn("metrics disabled", "error", err)
	}
	a.metrics = metrics
	return nil
}

func (a *app) close() {
	if a.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// newValidator builds a validator from cfg. A non-empty mode or positive
// depth overrides the configured value.
func (a *app) newValidator(cfg *config.Config, mode string, maxDepth int) (*validate.Validator, error) {
	if mode == "" {
		mode = cfg.Validation.Mode
	}
	m, err := jobspec.ParseMode(mode)
	if err != nil {
		return nil, NewInvalidArgumentError("mode", err.Error())
	}
	if maxDepth <= 0 {
		maxDepth = cfg.Validation.MaxDepth
	}
	return validate.New(
		validate.WithMode(m),
		validate.WithMaxDepth(maxDepth),
		validate.WithLogger(a.logger),
		validate.WithMetrics(a.metrics),
	), nil
}

type versionCommand struct {
	app *app
}

func (c *versionCommand) Execute([]string) error {
	fmt.Fprintf(c.app.stdout, "fluxcheck %s\n", version)
	return nil
}

func (a *app) timeoutContext() (context.Context, context.CancelFunc) {
	if a.opts.Timeout <= 0 {
		return context.WithCancel(a.ctx)
	}
	return context.WithTimeout(a.ctx, a.opts.Timeout)
}
