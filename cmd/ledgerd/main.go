// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/confidential/api"
	"github.com/luxfi/confidential/config"
	"github.com/luxfi/confidential/crypto/elgamal"
	"github.com/luxfi/confidential/crypto/fhe"
	"github.com/luxfi/confidential/crypto/fhe/mock"
	"github.com/luxfi/confidential/db"
	"github.com/luxfi/confidential/db/leveldb"
	"github.com/luxfi/confidential/db/memorydb"
	"github.com/luxfi/confidential/entropy"
	"github.com/luxfi/confidential/healthcheck"
	"github.com/luxfi/confidential/ledger"
	"github.com/luxfi/confidential/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "v0.0.0-dev"

const (
	leveldbCacheMB = 16
	leveldbHandles = 64
	healthPath     = "/health"
)

func main() {
	cfg := buildConfig()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("error building logger: %s", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Initializing ledgerd", zap.String("version", version))

	kv, err := openStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer kv.Close()

	engine, engineInfo, err := newEngine(cfg, kv, logger)
	if err != nil {
		logger.Fatal("Failed to create engine", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	oracle, err := entropy.NewLocalOracle(entropy.LocalConfig{
		Address:      cfg.GetOracleAddress(),
		Fee:          uint256.NewInt(cfg.OracleFee),
		EntropyBound: cfg.EntropyBound,
		UniqueTags:   cfg.OracleUniqueTags,
		OnFulfilled:  ledgerMetrics.AddFulfilled,
	}, kv, engine, logger.Named("oracle"))
	if err != nil {
		logger.Fatal("Failed to create oracle", zap.Error(err))
	}

	l, err := ledger.New(ledger.Config{
		Name:        cfg.Name,
		Symbol:      cfg.Symbol,
		Address:     cfg.GetLedgerAddress(),
		Oracle:      oracle,
		Policy:      cfg.GetPolicy(),
		RequestTTL:  cfg.RequestTTL,
		FeeCacheTTL: cfg.FeeCacheTTL,
	}, kv, engine, logger.Named("ledger"))
	if err != nil {
		logger.Fatal("Failed to create ledger", zap.Error(err))
	}
	defer l.Close()

	mux := api.NewHandler(logger.Named("api"), ledgerMetrics, l, engineInfo)
	mux.Handle(healthPath, healthcheck.NewHandler(kv, oracle))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errGroup, ctx := errgroup.WithContext(ctx)

	errGroup.Go(func() error {
		return metrics.StartMetricsServer(ctx, logger, cfg.MetricsPort, registry)
	})
	errGroup.Go(func() error {
		return api.Serve(ctx, logger, cfg.APIPort, mux)
	})
	errGroup.Go(func() error {
		return oracle.Run(ctx, cfg.OracleFulfillDelay)
	})
	if cfg.PruneInterval > 0 {
		errGroup.Go(func() error {
			return maintain(ctx, logger, l, ledgerMetrics, cfg.PruneInterval)
		})
	}

	logger.Info("Initialization complete",
		zap.Stringer("ledger", cfg.GetLedgerAddress()),
		zap.Stringer("oracle", cfg.GetOracleAddress()),
		zap.String("engine", engineInfo.Name),
		zap.Stringer("policy", cfg.GetPolicy()),
	)
	if err := errGroup.Wait(); err != nil {
		logger.Fatal("Exited with error", zap.Error(err))
	}
	logger.Info("Shut down")
}

// maintain prunes expired requests and publishes the pending count every
// interval.
func maintain(ctx context.Context, logger *zap.Logger, l *ledger.Ledger, m *metrics.LedgerMetrics, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		start := time.Now()
		n, err := l.PruneExpiredRequests(ctx)
		m.Observe("prune", start, err)
		if err != nil {
			logger.Warn("Failed to prune expired requests", zap.Error(err))
			continue
		}
		if n > 0 {
			logger.Info("Pruned expired requests", zap.Int("count", n))
		}
		pending, err := l.PendingRequests()
		if err != nil {
			logger.Warn("Failed to list pending requests", zap.Error(err))
			continue
		}
		m.SetPendingRequests(len(pending))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.GetLogLevel())
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("ledgerd"), nil
}

func openStore(cfg config.Config) (db.KeyValueStore, error) {
	if cfg.DBPath == "" {
		return memorydb.New(), nil
	}
	return leveldb.New(cfg.DBPath, leveldbCacheMB, leveldbHandles)
}

func newEngine(cfg config.Config, kv db.KeyValueStore, logger *zap.Logger) (fhe.Engine, api.EngineInfo, error) {
	verifier := fhe.NewSignerSet(cfg.GetInputSigners()...)
	switch cfg.Engine {
	case config.EngineMock:
		logger.Warn("The mock engine keeps values in the clear and in memory only")
		return mock.New(verifier), api.EngineInfo{Name: mock.Name}, nil
	default:
		var (
			key *elgamal.PrivateKey
			err error
		)
		if cfg.EngineKeyFile == "" {
			logger.Warn("No engine key file configured, using an ephemeral key")
			key, err = elgamal.GenerateKey(rand.Reader)
		} else {
			key, err = elgamal.LoadOrGenerateKey(cfg.EngineKeyFile)
		}
		if err != nil {
			return nil, api.EngineInfo{}, err
		}
		engine, err := elgamal.NewEngine(key, kv, verifier, elgamal.Config{
			MaxDecryptable:      cfg.MaxDecryptable,
			MaxInput:            cfg.MaxInput,
			CiphertextCacheSize: cfg.CiphertextCacheSize,
			DecryptCacheSize:    cfg.DecryptCacheSize,
		})
		if err != nil {
			return nil, api.EngineInfo{}, err
		}
		return engine, api.EngineInfo{
			Name:      elgamal.Name,
			PublicKey: engine.PublicKey().Bytes(),
		}, nil
	}
}

// buildConfig parses the flags and builds the config
// Errors here should call log.Fatalf to exit the program
// since these errors are prior to building the logger struct
func buildConfig() config.Config {
	fs := config.BuildFlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		config.DisplayUsageText()
		log.Fatalf("Failed to parse flags: %s", err)
	}

	displayVersion, err := fs.GetBool(config.VersionKey)
	if err != nil {
		log.Fatalf("error reading %s flag: %s", config.VersionKey, err)
	}
	if displayVersion {
		fmt.Printf("%s\n", version)
		os.Exit(0)
	}

	help, err := fs.GetBool(config.HelpKey)
	if err != nil {
		log.Fatalf("error reading %s flag value: %s", config.HelpKey, err)
	}
	if help {
		config.DisplayUsageText()
		os.Exit(0)
	}
	v, err := config.BuildViper(fs)
	if err != nil {
		log.Fatalf("couldn't configure flags: %s", err)
	}

	cfg, err := config.NewConfig(v)
	if err != nil {
		log.Fatalf("couldn't build config: %s", err)
	}
	return cfg
}
