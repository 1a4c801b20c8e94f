// Command server is the entry point for the automated trading
// intelligence platform. It wires every store, engine, and ambient
// service the spec names, starts the cron scheduler and the optional
// perpetual-venue streaming ingester, and serves the read-only
// inspection API until it receives a shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/analysisfn"
	"github.com/aristath/sentinel/internal/backup"
	"github.com/aristath/sentinel/internal/braid"
	"github.com/aristath/sentinel/internal/collector"
	"github.com/aristath/sentinel/internal/config"
	"github.com/aristath/sentinel/internal/database"
	"github.com/aristath/sentinel/internal/doctrine"
	"github.com/aristath/sentinel/internal/health"
	"github.com/aristath/sentinel/internal/normalizer"
	"github.com/aristath/sentinel/internal/orchestrator"
	"github.com/aristath/sentinel/internal/position"
	"github.com/aristath/sentinel/internal/priceingest"
	"github.com/aristath/sentinel/internal/ratelimit"
	"github.com/aristath/sentinel/internal/reconcile"
	"github.com/aristath/sentinel/internal/scheduler"
	"github.com/aristath/sentinel/internal/server"
	"github.com/aristath/sentinel/internal/strand"
	"github.com/aristath/sentinel/internal/streamvenue"
	"github.com/aristath/sentinel/internal/synthesis"
	"github.com/aristath/sentinel/internal/wallet"
	"github.com/aristath/sentinel/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "info", Pretty: true}).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Msg("starting sentinel")

	strands, err := strand.New(dbPath(cfg.DataDir, "strands.db"))
	must(log, err, "open strand store")
	defer strands.Close()

	prices, err := priceingest.New(dbPath(cfg.DataDir, "prices.db"))
	must(log, err, "open price store")
	defer prices.Close()

	positions, err := position.New(dbPath(cfg.DataDir, "positions.db"))
	must(log, err, "open position store")
	defer positions.Close()

	wallets, err := wallet.New(dbPath(cfg.DataDir, "wallet.db"))
	must(log, err, "open wallet store")
	defer wallets.Close()

	doctrineStore, err := doctrine.New(dbPath(cfg.DataDir, "doctrine.db"))
	must(log, err, "open doctrine store")
	defer doctrineStore.Close()

	monitor := health.NewMonitor(health.Config{
		LowcapFreshWindow: cfg.HeartbeatInterval,
		StreamStaleWindow: 2 * time.Minute,
		StreamDeadWindow:  cfg.HeartbeatInterval * 2,
	})

	streamChains := map[string]bool{}
	if cfg.PerpVenueEnabled {
		streamChains["perp"] = true
	}

	reconciler := reconcile.New(positions, prices, strands, cfg.StreamVenueTable, streamChains, log)
	refresher := wallet.NewRefresher(wallet.Config{
		HomeChain:         cfg.HomeChain,
		HomeChainUSDCMint: cfg.HomeChainUSDCMint,
		WalletAddress:     cfg.WalletAddress,
		PerpVenueEnabled:  cfg.PerpVenueEnabled,
	}, wallet.FakeChainRPC{}, marginClientFor(cfg), wallets, log)

	bucket := ratelimit.New(cfg.UpstreamCallBudget)
	coll := collector.New(collector.Config{
		Budget:            cfg.UpstreamCallBudget,
		ConcurrencyCap:    cfg.ConcurrencyCap,
		PriorityTimeframe: cfg.PriorityTimeframe,
		RequestTimeout:    cfg.RequestTimeout,
		StreamingChains:   streamChains,
	}, positions, prices, bucket, collector.FakePriceAPI{}, log, reconciler, refresher)

	norm := normalizer.New(normalizer.Config{
		ConfluenceThreshold: cfg.ConfluenceThreshold,
		LeadLagMin:          time.Duration(cfg.LeadLagMinSeconds) * time.Second,
		LeadLagMax:          time.Duration(cfg.LeadLagMaxSeconds) * time.Second,
	}, strands)
	synthesizer := synthesis.New(strands, norm, log)

	analysisFn := analysisfn.Fake{}

	braidManager := braid.New(braid.Config{
		ClusterThreshold: cfg.ClusterThreshold,
	}, strands, analysisFn, log)

	capabilities := orchestrator.DefaultCapabilityMap()
	orchestratorCfg := orchestrator.DefaultConfig()
	orchestratorCfg.MaxConcurrentExperiments = cfg.MaxConcurrentExperiments
	orchestratorCfg.MaxExperimentsPerSource = cfg.MaxExperimentsPerSource
	orchestratorCfg.ResonanceFamilyCap = cfg.ResonanceFamilyCap
	orch := orchestrator.New(strands, doctrineStore, capabilities, orchestratorCfg, log)

	doctrineThresholds := doctrine.Thresholds{
		MinEvidenceForAffirmation:  cfg.DoctrineMinEvidence,
		AffirmSuccessRate:          cfg.DoctrineSuccessRate,
		AffirmMaxFailureRate:       cfg.DoctrineFailureRate,
		RetireFailureRate:          cfg.DoctrineRetireFailure,
		ContraindicatedFailureRate: cfg.DoctrineContraindicated,
	}
	curationJob := doctrine.NewCurationJob(strands, doctrineStore, doctrineThresholds, log)

	databases := map[string]*database.DB{
		"strands":   strands.DB(),
		"prices":    prices.DB(),
		"positions": positions.DB(),
		"wallet":    wallets.DB(),
		"doctrine":  doctrineStore.DB(),
	}
	integrityJob := health.NewIntegrityJob(databases, log)

	backupSvc := newBackupService(cfg, databases, log)

	sched := scheduler.New(log)
	must(log, sched.AddJob("* * * * *", coll), "register collector job")
	must(log, sched.AddJob("*/5 * * * *", synthesizer), "register synthesizer job")
	must(log, sched.AddJob("*/5 * * * *", orch), "register orchestrator job")
	must(log, sched.AddJob("*/10 * * * *", braidManager), "register braid manager job")
	must(log, sched.AddJob("0 * * * *", curationJob), "register doctrine curation job")
	must(log, sched.AddJob("*/15 * * * *", integrityJob), "register integrity check job")
	if backupSvc != nil {
		must(log, sched.AddJob("0 3 * * *", backupSvc), "register backup job")
	}
	sched.Start()
	defer sched.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.StreamVenueURL != "" {
		ingester := streamvenue.New(streamvenue.Config{
			URL:   cfg.StreamVenueURL,
			Table: cfg.StreamVenueTable,
		}, prices, log)
		go func() {
			if err := ingester.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("streaming ingester stopped")
			}
		}()
	}

	srv := server.New(server.Config{
		Log:      log,
		Strands:  strands,
		Doctrine: doctrineStore,
		Monitor:  monitor,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("inspection server stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("inspection server shutdown error")
	}

	log.Info().Msg("sentinel stopped")
}

func dbPath(dataDir, name string) string {
	return fmt.Sprintf("%s/%s", dataDir, name)
}

func must(log zerolog.Logger, err error, action string) {
	if err != nil {
		log.Fatal().Err(err).Str("action", action).Msg("startup failed")
	}
}

// marginClientFor wires a margin balance source only when the perpetual
// venue is enabled; the fake keeps the refresher's margin branch
// exercised without reaching out to a real venue (out of scope).
func marginClientFor(cfg *config.Config) wallet.MarginClient {
	if !cfg.PerpVenueEnabled {
		return nil
	}
	return wallet.FakeMarginClient{}
}

// newBackupService wires the S3-compatible backup pipeline only when a
// bucket is configured. Static credentials from BACKUP_S3_ACCESS_KEY_ID /
// BACKUP_S3_SECRET_ACCESS_KEY are used when set; otherwise credential
// resolution is left to the AWS SDK's default provider chain.
func newBackupService(cfg *config.Config, databases map[string]*database.DB, log zerolog.Logger) *backup.Service {
	if cfg.BackupBucket == "" {
		return nil
	}
	client, err := backup.NewObjectClient(context.Background(), backup.ObjectClientConfig{
		Bucket:          cfg.BackupBucket,
		Region:          cfg.BackupRegion,
		Endpoint:        os.Getenv("BACKUP_S3_ENDPOINT"),
		AccessKeyID:     os.Getenv("BACKUP_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("BACKUP_S3_SECRET_ACCESS_KEY"),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize backup object client, backups disabled")
		return nil
	}
	return backup.New(databases, client, backup.Config{DataDir: cfg.DataDir}, log)
}
