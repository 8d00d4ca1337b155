package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/organregistry/etl/internal/config"
	"github.com/organregistry/etl/internal/db"
	"github.com/organregistry/etl/internal/domain"
	"github.com/organregistry/etl/internal/ingest"
	"github.com/organregistry/etl/internal/logging"
	"github.com/organregistry/etl/internal/pipeline"
	"github.com/organregistry/etl/internal/report"
	"github.com/organregistry/etl/internal/repository"
	"github.com/organregistry/etl/internal/repository/memory"

	"github.com/sirupsen/logrus"
)

// entityFiles maps each entity type to the file expected under the data
// directory. Missing files are skipped, not errors: a nightly drop may carry
// any subset.
var entityFiles = map[domain.EntityType][]string{
	domain.EntityCenter:    {"centers.csv", "centers.xlsx"},
	domain.EntityDonor:     {"donors.csv", "donors.xlsx"},
	domain.EntityRecipient: {"recipients.csv", "recipients.xlsx"},
}

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	migrationsPath := flag.String("migrations", "./migrations", "directory containing SQL migrations")
	dataDir := flag.String("data", "", "directory containing input files (overrides config)")
	dryRun := flag.Bool("dry-run", false, "run against in-memory stores, nothing is persisted")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	cfg.DryRun = cfg.DryRun || *dryRun

	log := logging.New(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stores, cleanup, err := buildStores(ctx, cfg, *migrationsPath, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize stores")
	}
	defer cleanup()

	batches, err := readBatches(cfg.DataDir, log)
	if err != nil {
		log.WithError(err).Fatal("failed to read input files")
	}
	if len(batches) == 0 {
		log.WithField("data_dir", cfg.DataDir).Warn("no input files found, nothing to do")
		return
	}

	p := pipeline.New(stores, log, pipeline.WithWarnRate(cfg.ErrorRateWarn))
	summaries, runErr := pipeline.NewOrchestrator(p).RunAll(ctx, batches)

	reporter := report.NewService(stores.Production, stores.Errors, stores.Audit)
	for _, summary := range summaries {
		if summary.RunID == 0 {
			continue
		}
		recon, err := reporter.Reconcile(ctx, summary.RunID)
		if err != nil {
			log.WithError(err).WithField("run_id", summary.RunID).Error("failed to reconcile run")
			continue
		}
		log.WithFields(logrus.Fields{
			"run_id":     recon.RunID,
			"package":    recon.PackageName,
			"status":     recon.Status,
			"staged":     recon.StagedRows,
			"inserted":   recon.InsertedRows,
			"updated":    recon.UpdatedRows,
			"errors":     recon.ErrorRows,
			"error_rate": fmt.Sprintf("%.3f", recon.ErrorRate),
			"balanced":   recon.Balanced,
		}).Info("run reconciled")
	}

	if runErr != nil {
		log.WithError(runErr).Fatal("pipeline failed")
	}
}

func buildStores(ctx context.Context, cfg config.Config, migrationsPath string, log *logrus.Logger) (repository.Stores, func(), error) {
	if cfg.DryRun {
		log.Info("dry run: using in-memory stores")
		return memory.NewStores(memory.DefaultReferenceData()), func() {}, nil
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return repository.Stores{}, nil, fmt.Errorf("connect: %w", err)
	}

	if err := db.RunMigrations(migrationsPath, cfg.Database); err != nil {
		conn.Close()
		return repository.Stores{}, nil, fmt.Errorf("migrate: %w", err)
	}

	stores := repository.Stores{
		Staging:    repository.NewStagingRepository(conn.Pool),
		Errors:     repository.NewErrorRepository(conn.Pool),
		Reference:  repository.NewReferenceRepository(conn.Pool),
		Production: repository.NewProductionRepository(conn.Pool),
		Audit:      repository.NewAuditRepository(conn.Pool),
	}
	return stores, conn.Close, nil
}

func readBatches(dataDir string, log *logrus.Logger) ([]pipeline.Batch, error) {
	var batches []pipeline.Batch
	for _, entity := range domain.EntityTypes() {
		for _, name := range entityFiles[entity] {
			path := filepath.Join(dataDir, name)
			f, err := os.Open(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, fmt.Errorf("open %s: %w", path, err)
			}

			records, err := ingest.ReadFile(entity, name, f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}

			log.WithFields(logrus.Fields{"entity": entity, "file": name, "rows": len(records)}).Info("input file read")
			batches = append(batches, pipeline.Batch{
				Entity:         entity,
				PackageName:    string(entity) + "_load",
				SourceFileName: name,
				Records:        records,
			})
			break
		}
	}
	return batches, nil
}
