// Command chainhook-service is the long-running daemon: one adapter
// goroutine per chain, a pool actor per chain, a stream coordinator per
// chain, a scan coordinator per chain, and the predicate management
// surface, all sharing one process lifetime cancelled by SIGINT/SIGTERM
// (SPEC_FULL.md "Concurrency & resource model").
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/adapter"
	"github.com/hirosystems/chainhook/internal/adapter/bitcoin"
	"github.com/hirosystems/chainhook/internal/adapter/stacks"
	"github.com/hirosystems/chainhook/internal/api"
	"github.com/hirosystems/chainhook/internal/blockindex/clickhouse"
	"github.com/hirosystems/chainhook/internal/chainmodel"
	"github.com/hirosystems/chainhook/internal/dispatch"
	"github.com/hirosystems/chainhook/internal/lifecycle"
	"github.com/hirosystems/chainhook/internal/predicate/store"
	"github.com/hirosystems/chainhook/internal/telemetry"
	"github.com/hirosystems/chainhook/internal/transport"
)

type config struct {
	ClickhouseDSN string `long:"clickhouse-dsn" env:"CHAINHOOK_CLICKHOUSE_DSN" description:"ClickHouse DSN for the durable block index" required:"true"`
	Network       string `long:"network" env:"CHAINHOOK_NETWORK" description:"network label stored alongside indexed blocks" default:"mainnet"`
	PredicateDB   string `long:"predicate-db" env:"CHAINHOOK_PREDICATE_DB" description:"path to the bbolt predicate store" default:"chainhook-predicates.db"`

	BitcoinRPCURL      string `long:"bitcoin-rpc-url" env:"CHAINHOOK_BITCOIN_RPC_URL" description:"Bitcoin Core RPC URL" default:"http://127.0.0.1:8332"`
	BitcoinRPCUser     string `long:"bitcoin-rpc-user" env:"CHAINHOOK_BITCOIN_RPC_USER" description:"Bitcoin Core RPC username"`
	BitcoinRPCPassword string `long:"bitcoin-rpc-password" env:"CHAINHOOK_BITCOIN_RPC_PASSWORD" description:"Bitcoin Core RPC password"`
	BitcoinNetwork     string `long:"bitcoin-network" env:"CHAINHOOK_BITCOIN_NETWORK" description:"mainnet, testnet3, signet or regtest" default:"mainnet"`
	BitcoinZMQAddr     string `long:"bitcoin-zmq-addr" env:"CHAINHOOK_BITCOIN_ZMQ_ADDR" description:"hashblock ZMQ publisher address; empty falls back to polling"`

	StacksEventObserverAddr string `long:"stacks-event-observer-addr" env:"CHAINHOOK_STACKS_EVENT_OBSERVER_ADDR" description:"address the Stacks node's event observer pushes to" default:":20445"`

	ScanWorkersBitcoin int `long:"scan-workers-bitcoin" env:"CHAINHOOK_SCAN_WORKERS_BITCOIN" description:"max concurrent in-flight Bitcoin predicate scans" default:"4"`
	ScanWorkersStacks  int `long:"scan-workers-stacks" env:"CHAINHOOK_SCAN_WORKERS_STACKS" description:"max concurrent in-flight Stacks predicate scans" default:"4"`

	ManagementAddr string `long:"management-addr" env:"CHAINHOOK_MANAGEMENT_ADDR" description:"address for the predicate management HTTP surface" default:":20456"`
	MetricsAddr    string `long:"metrics-addr" env:"CHAINHOOK_METRICS_ADDR" description:"address for the Prometheus /metrics surface" default:":20457"`
	HealthAddr     string `long:"health-addr" env:"CHAINHOOK_HEALTH_ADDR" description:"address for the gRPC health server" default:":20458"`
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
		logger.Fatal("chainhook-service exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	health := transport.NewHealthServer(logger)
	healthSocket, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		return fmt.Errorf("listen health addr: %w", err)
	}
	go func() {
		if err := health.Serve(healthSocket); err != nil {
			logger.Error("health server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		health.GracefulStop()
	}()

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
	predicateSource := lifecycle.NewStoreSource(predicateStore)

	dispatcher := dispatch.NewDispatcher(logger, telemetry.NewDispatcher())
	defer dispatcher.Shutdown()

	bitcoinAdapter, err := newBitcoinAdapter(cfg, logger)
	if err != nil {
		return fmt.Errorf("init bitcoin adapter: %w", err)
	}
	stacksAdapter := stacks.New(telemetry.NewPushAdapter(chainmodel.Stacks), logger)

	chains, err := startChains(ctx, cfg, logger, index, lifecycleController, predicateSource, dispatcher, bitcoinAdapter, stacksAdapter)
	if err != nil {
		return fmt.Errorf("start chains: %w", err)
	}
	defer chains.stop()

	tips := newAdapterTipProvider(bitcoinAdapter, stacksAdapter)
	scanners := map[chainmodel.Chain]api.ScanRunner{
		chainmodel.Bitcoin: chains.bitcoin.scan,
		chainmodel.Stacks:  chains.stacks.scan,
	}
	svc := api.NewService(ctx, predicateStore, lifecycleController, dispatcher, tips, scanners, logger)

	startManagementServer(ctx, cfg.ManagementAddr, svc, stacksAdapter, logger)
	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	health.SetServing(true)
	logger.Info("chainhook-service started")

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// newAdapterTipProvider adapts the two chain adapters' raw Tip(ctx) calls
// into api.TipProvider. The pool's canonical tip would be the more precise
// answer once a predicate is mid-stream, but internal/pool.Actor exposes no
// read passthrough (Pool is deliberately single-owner, see internal/pool's
// package doc) — the adapter's view of the upstream source's tip is what a
// freshly registered predicate's initial Scanning/Streaming decision should
// use anyway, since that decision is about catching up to the live network,
// not to this process's pool state.
type adapterTipProvider struct {
	bitcoin adapter.Adapter
	stacks  adapter.Adapter
}

func newAdapterTipProvider(bitcoinAdapter, stacksAdapter adapter.Adapter) *adapterTipProvider {
	return &adapterTipProvider{bitcoin: bitcoinAdapter, stacks: stacksAdapter}
}

func (t *adapterTipProvider) Tip(ctx context.Context, chain chainmodel.Chain) (uint64, error) {
	switch chain {
	case chainmodel.Bitcoin:
		return t.bitcoin.Tip(ctx)
	case chainmodel.Stacks:
		return t.stacks.Tip(ctx)
	default:
		return 0, fmt.Errorf("no adapter for chain %q", chain)
	}
}

func newBitcoinAdapter(cfg config, logger *zap.Logger) (*bitcoin.Adapter, error) {
	client, err := newBitcoinRPCClient(cfg.BitcoinRPCURL, cfg.BitcoinRPCUser, cfg.BitcoinRPCPassword)
	if err != nil {
		return nil, fmt.Errorf("init bitcoin rpc client: %w", err)
	}
	return bitcoin.New(client, bitcoin.Config{Network: cfg.BitcoinNetwork, ZMQAddr: cfg.BitcoinZMQAddr}, telemetry.NewAdapter(chainmodel.Bitcoin), logger)
}

func newBitcoinRPCClient(rawURL, user, password string) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}
	return rpcclient.New(&rpcclient.ConnConfig{
		Host:         parsed.Host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
}

func startManagementServer(ctx context.Context, addr string, svc *api.Service, stacksAdapter *stacks.Adapter, logger *zap.Logger) {
	mux := http.NewServeMux()
	transport.NewHandler(svc, logger).Register(mux)
	mux.Handle("/stacks/", http.StripPrefix("/stacks", stacksAdapter))

	srv := &http.Server{
		Addr:              addr,
		Handler:           cors.Default().Handler(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("starting management server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("management server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown management server", zap.Error(err))
		}
	}()
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
