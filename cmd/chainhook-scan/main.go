// Command chainhook-scan runs every chain's pending historical predicate
// scans once against the durable block index and exits, rather than running
// forever like cmd/chainhook-service. It is meant to be invoked out-of-band
// (cron, a Kubernetes Job) to drain a chain's Scanning-status predicates
// without paying for a full adapter/pool/stream stack, mirroring
// cmd/utxo/backfill-ingester's one-shot-process-and-exit shape.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/blockindex/clickhouse"
	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/dispatch"
	"github.com/hirosystems/chainhook/internal/lifecycle"
	"github.com/hirosystems/chainhook/internal/predicate/store"
	"github.com/hirosystems/chainhook/internal/scan"
	"github.com/hirosystems/chainhook/internal/telemetry"
)

type config struct {
	ClickhouseDSN string `long:"clickhouse-dsn" env:"CHAINHOOK_CLICKHOUSE_DSN" description:"ClickHouse DSN for the durable block index" required:"true"`
	Network       string `long:"network" env:"CHAINHOOK_NETWORK" description:"network label stored alongside indexed blocks" default:"mainnet"`
	PredicateDB   string `long:"predicate-db" env:"CHAINHOOK_PREDICATE_DB" description:"path to the bbolt predicate store" default:"chainhook-predicates.db"`

	ScanWorkersBitcoin int `long:"scan-workers-bitcoin" env:"CHAINHOOK_SCAN_WORKERS_BITCOIN" description:"max concurrent in-flight Bitcoin predicate scans" default:"4"`
	ScanWorkersStacks  int `long:"scan-workers-stacks" env:"CHAINHOOK_SCAN_WORKERS_STACKS" description:"max concurrent in-flight Stacks predicate scans" default:"4"`

	MetricsAddr string `long:"metrics-addr" env:"CHAINHOOK_METRICS_ADDR" description:"address for the Prometheus /metrics surface" default:":20467"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	var cfg config
	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("chainhook-scan failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	predicateStore, err := store.Open(cfg.PredicateDB)
	if err != nil {
		return fmt.Errorf("open predicate store: %w", err)
	}
	defer predicateStore.Close()

	index, err := clickhouse.NewRepository(cfg.ClickhouseDSN, cfg.Network, telemetry.NewBlockIndex())
	if err != nil {
		return fmt.Errorf("init block index: %w", err)
	}
	defer index.Close()

	lifecycleController := lifecycle.NewController(predicateStore, telemetry.NewLifecycle(), logger)
	defer lifecycleController.Shutdown()
	predicates := lifecycle.NewStoreSource(predicateStore)

	dispatcher := dispatch.NewDispatcher(logger, telemetry.NewDispatcher())
	defer dispatcher.Shutdown()

	chains := []struct {
		chain   chainmodel.Chain
		workers int
	}{
		{chainmodel.Bitcoin, cfg.ScanWorkersBitcoin},
		{chainmodel.Stacks, cfg.ScanWorkersStacks},
	}

	var failed bool
	for _, c := range chains {
		chainLogger := logger.Named("chain").With(zap.String("chain", string(c.chain)))

		targets, err := buildTargets(ctx, c.chain, index, predicates)
		if err != nil {
			chainLogger.Error("build scan targets failed", zap.Error(err))
			failed = true
			continue
		}
		if len(targets) == 0 {
			chainLogger.Info("no predicates pending a scan")
			continue
		}

		coord := scan.NewCoordinator(c.chain, index, lifecycleController, dispatcher, c.workers, chainLogger)
		chainLogger.Info("running scans", zap.Int("predicate_count", len(targets)))
		if err := coord.RunAll(ctx, targets); err != nil {
			chainLogger.Error("scan run failed", zap.Error(err))
			failed = true
		}
	}

	if failed {
		return errors.New("one or more chains failed to complete their scans")
	}
	return nil
}

// buildTargets turns every Scanning-status predicate on chain into a
// scan.Target, resuming from Scanning.LastEvaluatedBlock when a prior run
// made partial progress rather than rescanning from the predicate's
// original StartBlock, and bounding ToHeight at the index's current max
// height (a predicate's EndBlock further narrows it when lower).
func buildTargets(ctx context.Context, chain chainmodel.Chain, index *clickhouse.Repository, predicates *lifecycle.StoreSource) ([]scan.Target, error) {
	pending, statuses, err := predicates.ScanningPredicates(chain)
	if err != nil {
		return nil, fmt.Errorf("list scanning predicates: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	maxHeight, err := index.MaxHeight(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("max indexed height: %w", err)
	}

	targets := make([]scan.Target, 0, len(pending))
	for i, p := range pending {
		from := uint64(0)
		if p.StartBlock != nil {
			from = *p.StartBlock
		}
		if status := statuses[i]; status.Scanning != nil && status.Scanning.LastEvaluatedBlock > from {
			from = status.Scanning.LastEvaluatedBlock + 1
		}

		to := maxHeight
		if p.EndBlock != nil && *p.EndBlock < to {
			to = *p.EndBlock
		}
		if from > to {
			continue
		}

		targets = append(targets, scan.Target{Predicate: p, FromHeight: from, ToHeight: to})
	}
	return targets, nil
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}
