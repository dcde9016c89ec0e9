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
	"syscall"

	"github.com/apotek-pos/apotek/cmd/apotek/cli"
	"github.com/apotek-pos/apotek/internal/app"
	"github.com/apotek-pos/apotek/internal/fifo"
	"github.com/apotek-pos/apotek/internal/platform/cache"
	"github.com/apotek-pos/apotek/internal/platform/db"
	"github.com/apotek-pos/apotek/jobs"
)

const usage = `usage: apotek <command> [flags]

commands:
  product --id ID          FIFO cost and profit of one product
  sale --id ID             FIFO lines of one sale
  shipping-order --id ID   FIFO lines of one shipping order
  all                      storewide report
  simulate --file PATH     run the engine over a JSON ledger (- for stdin)
  enqueue-recalc           queue a pending profit recalculation
  queue-stats              show the job queue
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := app.NewLogger(cfg, stderr)

	command, rest := args[0], args[1:]
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	id := fs.String("id", "", "product, sale or shipping order id")
	jsonOut := fs.Bool("json", false, "print JSON instead of a table")
	lang := fs.String("lang", "id", "language tag for number formatting")
	file := fs.String("file", "", "ledger JSON file for simulate")
	if err := fs.Parse(rest); err != nil {
		return 2
	}

	switch command {
	case "simulate":
		reports, err := cli.NewReportCLI(fifo.NewService(nil, nil, nil, logger, fifo.ServiceConfig{}))
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "simulate: %v\n", err)
			return 1
		}
		return reports.SimulateCommand(cli.SimulateOptions{
			Path:       *file,
			JSONOutput: *jsonOut,
			Language:   *lang,
			Stdout:     stdout,
			Stderr:     stderr,
		})
	case "enqueue-recalc", "queue-stats":
		return runJobs(ctx, cfg, command, stdout, stderr)
	case string(cli.ReportProduct), string(cli.ReportSale), string(cli.ReportShippingOrder), string(cli.ReportStorewide):
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		logger.Error("init fifo service", slog.Any("error", err))
		return 1
	}
	defer cleanup()

	reports, err := cli.NewReportCLI(svc)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", command, err)
		return 1
	}
	return reports.ReportCommand(ctx, cli.ReportOptions{
		Kind:       cli.ReportKind(command),
		ID:         *id,
		JSONOutput: *jsonOut,
		Language:   *lang,
		Stdout:     stdout,
		Stderr:     stderr,
	})
}

func buildService(ctx context.Context, cfg *app.Config, logger *slog.Logger) (*fifo.Service, func(), error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	cleanup := pool.Close

	var reportCache *fifo.Cache
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, reports are not cached", slog.Any("error", err))
	} else {
		reportCache = fifo.NewCache(redisClient, cfg.FIFOCacheTTL)
		cleanup = func() {
			_ = redisClient.Close()
			pool.Close()
		}
	}

	svc := fifo.NewService(fifo.NewRepository(pool), reportCache, nil, logger, fifo.ServiceConfig{
		ReportConcurrency: cfg.FIFOReportConcurrency,
	})
	return svc, cleanup, nil
}

func runJobs(ctx context.Context, cfg *app.Config, command string, stdout, stderr io.Writer) int {
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer jobsCLI.Close()

	switch command {
	case "enqueue-recalc":
		info, err := jobsCLI.Trigger(ctx, jobs.TaskFIFORecalculatePending)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "enqueue-recalc: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	default:
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "queue-stats: %v\n", err)
			return 1
		}
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(stderr, "queue-stats: %v\n", err)
			return 1
		}
	}
	return 0
}
