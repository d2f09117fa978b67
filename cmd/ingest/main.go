// Command ingest runs one ingestion, link-health or translation backfill pass
// and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/granhackaria/eventharvest/internal/app"
	"github.com/granhackaria/eventharvest/internal/config"
	"github.com/granhackaria/eventharvest/internal/linkhealth"
	"github.com/granhackaria/eventharvest/internal/logging"
)

const (
	modeIngest   = "ingest"
	modeMarkGone = "mark-gone"
	modeBackfill = "backfill"

	defaultBackfillLimit = 50
)

type options struct {
	mode    string
	timeout time.Duration
	limit   int
	sources []string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}

	// Logs go to stderr so stdout carries only the JSON result.
	logger, err := logging.NewWithWriter(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "failed to init logger: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, app.Options{Sources: opts.sources, RequireStorage: true})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer a.Close()

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	result, err := execute(ctx, a, opts, logger)
	if err != nil {
		logger.Error("run failed", "mode", opts.mode, "error", err)
	}
	if usage := a.CallLog.Snapshot(); len(usage) > 0 {
		logger.Info("model usage", "calls", usage)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(result); encErr != nil {
		logger.Error("failed to write result", "error", encErr)
		return 1
	}
	if err != nil {
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	var sources string
	fs.StringVar(&opts.mode, "mode", modeIngest, "ingest, mark-gone or backfill")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall deadline, 0 for none")
	fs.IntVar(&opts.limit, "limit", 0, "batch size for mark-gone and backfill")
	fs.StringVar(&sources, "sources", "", "comma separated sources to run (instagram,slack,meetup)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch opts.mode {
	case modeIngest, modeMarkGone, modeBackfill:
	default:
		err := fmt.Errorf("unknown mode %q", opts.mode)
		fmt.Fprintln(stderr, err)
		return opts, err
	}
	if opts.limit < 0 {
		err := fmt.Errorf("limit must not be negative")
		fmt.Fprintln(stderr, err)
		return opts, err
	}

	for _, s := range strings.Split(sources, ",") {
		if s = strings.TrimSpace(s); s != "" {
			opts.sources = append(opts.sources, s)
		}
	}
	return opts, nil
}

func execute(ctx context.Context, a *app.App, opts options, logger *slog.Logger) (any, error) {
	switch opts.mode {
	case modeMarkGone:
		limit := opts.limit
		if limit == 0 {
			limit = a.Config.LinkHealth.BatchSize
		}
		if limit == 0 {
			limit = linkhealth.DefaultBatchSize
		}
		return a.LinkMonitor.CheckBatch(ctx, limit)

	case modeBackfill:
		limit := opts.limit
		if limit == 0 {
			limit = defaultBackfillLimit
		}
		return a.Normalizer.Backfill(ctx, a.Events, limit)

	default:
		logger.Info("running ingestion", "sources", a.Orchestrator.Sources())
		return a.Orchestrator.Run(ctx), nil
	}
}
