package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skillsync/harvester/internal/api"
	"github.com/skillsync/harvester/internal/browser"
	"github.com/skillsync/harvester/internal/config"
	"github.com/skillsync/harvester/internal/harvest"
	"github.com/skillsync/harvester/internal/logging"
	"github.com/skillsync/harvester/internal/metrics"
	"github.com/skillsync/harvester/internal/reconcile"
	"github.com/skillsync/harvester/internal/schema"
	"github.com/skillsync/harvester/internal/snapshot"
	"github.com/skillsync/harvester/internal/store/postgres"
)

// newHarvestCmd creates the 'harvest' subcommand, which runs one complete
// scrape-and-reconcile pass.
func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Runs one harvest-and-reconcile pass",
		Long: `Drives a headless browser through the paginated results table, extracts
and validates every opportunity row, writes an audit snapshot, and
reconciles the candidates against the database in a single transaction.`,
		RunE: runHarvest,
	}
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	metrics.Init()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	if cfg.Metrics.Addr != "" {
		srv := api.NewServer(cfg.Metrics.Addr, logger)
		go func() {
			if serveErr := srv.Start(); serveErr != nil {
				logger.Warn("Metrics server stopped", zap.Error(serveErr))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutErr := srv.Shutdown(shutdownCtx); shutErr != nil {
				logger.Warn("Metrics server shutdown failed", zap.Error(shutErr))
			}
		}()
	}

	registry := schema.NewRegistry()

	session, err := browser.New(browser.Config{
		UserAgent: cfg.Browser.UserAgent,
		Headless:  cfg.Browser.Headless,
		OpTimeout: cfg.Browser.OpTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer session.Close()

	walker := harvest.NewWalker(harvest.WalkerConfig{
		URL:         cfg.Source.URL,
		SearchTerm:  cfg.Source.SearchTerm,
		Selectors:   cfg.Source.Selectors,
		SettleDelay: cfg.Source.SettleDelay,
	}, session, harvest.NewExtractor(registry), logger)

	start := time.Now()
	records, err := walker.Run(ctx)
	if err != nil {
		return fmt.Errorf("harvest: %w", err)
	}
	metrics.ObserveRunDuration(time.Since(start).Seconds())
	logger.Info("Harvest finished", zap.Int("candidates", len(records)))

	// The audit snapshot is independent of reconciliation; a failed write
	// is reported but does not abort the sync.
	writeSnapshot(ctx, cfg.Snapshot.Destination, records, logger)

	store, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		Table:           cfg.DB.Table,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	}, registry, logger)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer store.Close()

	result, err := reconcile.NewEngine(registry, store, logger).Run(ctx, records)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	logger.Info("Harvest run complete",
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged))
	return nil
}

func writeSnapshot(ctx context.Context, destination string, records []schema.Record, logger *zap.Logger) {
	sink, name, err := snapshot.SinkFor(ctx, destination)
	if err != nil {
		logger.Error("Snapshot destination unusable", zap.String("destination", destination), zap.Error(err))
		return
	}
	if err := snapshot.NewWriter(sink, name, logger).Write(ctx, records); err != nil {
		logger.Error("Snapshot write failed", zap.Error(err))
	}
}
