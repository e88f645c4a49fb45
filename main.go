package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"png-rentals/config"
	"png-rentals/models"
	"png-rentals/pipeline"
	"png-rentals/scraper/agency"
	"png-rentals/scraper/facebook"
	"png-rentals/scraper/hausples"
	"png-rentals/scraper/professionals"
	"png-rentals/server"
	"png-rentals/services"
	"png-rentals/storage"
	"png-rentals/utils"
)

func main() {
	serve := flag.Bool("serve", false, "run the REST API instead of a one-shot scrape")
	flag.Parse()

	cfg := config.Load()
	logger, closeLogger := utils.NewLogger(cfg.LogFile, cfg.Debug)
	defer closeLogger()

	logger.Info("=== PNG Rental Aggregator starting ===")
	logger.Infof("Config — pages: %d | agency concurrency: %d | facebook: %v | output: %s",
		cfg.MaxPages, cfg.AgencyConcurrency, cfg.IncludeFacebook, cfg.OutputDir)

	store := services.NewBenchmarkStore(services.DefaultBenchmarkSource())
	scorer := services.NewScorer(store, cfg.DealThresholdPct, cfg.OverpricedThresholdPct)
	dedup := services.NewDeduplicator(logger)
	reports := services.NewReportService(logger)

	if *serve {
		runServer(cfg, logger, store, scorer, dedup)
		return
	}

	listings, manifest := runPipeline(context.Background(), cfg, logger, scorer, dedup, nil)
	if len(listings) == 0 {
		logger.Error("No listings were collected. Exiting.")
		os.Exit(1)
	}

	persist(cfg, logger, listings)
	reports.Print(reports.Generate(listings), manifest)
}

// runPipeline builds the collector set allowed by the config and drives one
// full orchestrator run. overrides, when non-nil, narrows the source
// whitelist for API-triggered jobs.
func runPipeline(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger,
	scorer *services.Scorer, dedup *services.Deduplicator,
	overrides *pipeline.Job) ([]*models.Listing, *models.RunManifest) {

	maxPages := cfg.MaxPages
	wants := cfg.WantsSource
	if overrides != nil {
		if overrides.MaxPages > 0 {
			maxPages = overrides.MaxPages
		}
		if len(overrides.Sources) > 0 {
			jobCfg := *cfg
			jobCfg.Sources = overrides.Sources
			wants = jobCfg.WantsSource
		}
	}

	var portals, agencies, socials []pipeline.Collector

	if wants("Hausples") {
		portals = append(portals, hausples.New(maxPages, cfg.Headless, cfg.ChromeBin, logger))
	}
	if wants("The Professionals") {
		portals = append(portals, professionals.New(maxPages, logger))
	}

	sites := config.DefaultAgencySources()
	if cfg.AgencySourcesFile != "" {
		loaded, err := config.LoadAgencySources(cfg.AgencySourcesFile)
		if err != nil {
			logger.Warnf("Agency registry %s unusable, using built-in list: %v",
				cfg.AgencySourcesFile, err)
		} else {
			sites = loaded
		}
	}
	for _, site := range sites {
		if wants(site.Name) {
			agencies = append(agencies, agency.New(site, logger))
		}
	}

	if cfg.IncludeFacebook && wants("Facebook Marketplace") {
		socials = append(socials, facebook.New(0, cfg.Headless, cfg.ChromeBin, logger))
	}

	orch := pipeline.NewOrchestrator(scorer, dedup, logger, pipeline.Options{
		Portals:           portals,
		Agencies:          agencies,
		Socials:           socials,
		AgencyConcurrency: cfg.AgencyConcurrency,
		GlobalTimeout:     cfg.GlobalTimeout(),
	})
	return orch.Run(ctx)
}

// persist exports the dataset to the output directory and, when enabled,
// mirrors it into PostgreSQL.
func persist(cfg *config.Config, logger *zap.SugaredLogger, listings []*models.Listing) {
	result, err := storage.Export(cfg.OutputDir, listings)
	if err != nil {
		logger.Errorf("Export failed: %v", err)
	} else {
		logger.Infof("Exported %d listings → %s, %s", len(listings), result.JSONPath, result.CSVPath)
	}

	if !cfg.PostgresEnabled {
		return
	}
	pg, err := storage.NewPostgresWriter(cfg.DSN())
	if err != nil {
		logger.Errorf("PostgreSQL unavailable, skipping DB sink: %v", err)
		return
	}
	defer pg.Close()

	if err := pg.Write(listings); err != nil {
		logger.Errorf("PostgreSQL write failed: %v", err)
	} else {
		logger.Infof("Stored %d listings in PostgreSQL (table: listings)", len(listings))
	}
}

// runServer serves the API, seeding it from the latest export if one
// exists. Scrape jobs triggered over HTTP run the same pipeline and swap
// the served dataset on success.
func runServer(cfg *config.Config, logger *zap.SugaredLogger,
	store *services.BenchmarkStore, scorer *services.Scorer, dedup *services.Deduplicator) {

	jobs := pipeline.NewJobStore()

	var srv *server.Server
	runner := func(job pipeline.Job) {
		jobs.MarkRunning(job.ID)
		listings, manifest := runPipeline(context.Background(), cfg, logger, scorer, dedup, &job)
		if len(listings) == 0 {
			jobs.MarkFailed(job.ID, errNoListings(manifest))
			return
		}
		persist(cfg, logger, listings)
		srv.SetListings(listings)
		jobs.MarkComplete(job.ID, len(listings))
	}

	srv = server.New(cfg.APIAddr, store, jobs, runner, logger)

	if listings, err := storage.ReadListings(storage.LatestJSONPath(cfg.OutputDir)); err == nil {
		srv.SetListings(listings)
	} else {
		logger.Warnf("No previous export found, starting with an empty dataset: %v", err)
	}

	if err := srv.Start(); err != nil {
		logger.Fatalf("API server stopped: %v", err)
	}
}

func errNoListings(manifest *models.RunManifest) error {
	failed := manifest.Failed()
	if len(failed) == 0 {
		return fmt.Errorf("no listings collected")
	}
	return fmt.Errorf("no listings collected; failed sources: %s", strings.Join(failed, ", "))
}
