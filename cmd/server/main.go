package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"propure/server/config"
	"propure/server/internal/api"
	"propure/server/internal/database"
	"propure/server/internal/enrichment"
	"propure/server/internal/fetcher"
	"propure/server/internal/geocoding"
	"propure/server/internal/geometry"
	"propure/server/internal/models"
	"propure/server/internal/processor"
	"propure/server/internal/queue"
	"propure/server/internal/scheduler"
	"propure/server/internal/scraping"
	"propure/server/internal/telegram"
	"propure/server/internal/workflow"
)

func main() {
	exportPath := flag.String("export-geojson", "", "write stored suburb metrics as GeoJSON to this path and exit")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}

	db, err := database.Open(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.Migrate(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	if *exportPath != "" {
		exportGeoJSON(db, *exportPath, logger)
		return
	}

	seedLocations(db, cfg.LocationsFile, logger)

	geocoder := geocoding.New(cfg.GoogleMaps.APIKey, logger,
		geocoding.WithCacheDir(cfg.GoogleMaps.CacheDir),
		geocoding.WithTimeout(cfg.MapsTimeout()),
	)
	var enricher workflow.Enricher
	if cfg.GoogleMaps.APIKey != "" {
		enricher = enrichment.NewEnricher(geocoder, geocoder, cfg.GoogleMaps.InfrastructureRadius, logger)
	} else {
		logger.Warn("GOOGLE_MAPS_API_KEY is not set, geospatial scores are disabled")
	}

	steps := processor.NewStepRunner(cfg, logger)
	notifier := telegram.NewServiceFromConfig(cfg, logger)

	metricsWorkflow := workflow.NewSuburbMetricsWorkflow(workflow.SuburbDeps{
		Listings:     fetcher.NewPagedFetcher(db, cfg.Workflow.PageSize, logger),
		Demographics: db,
		Geocoder:     geocoder,
		Enricher:     enricher,
		Store:        db,
	}, steps, cfg.Workflow.SuburbConcurrency, logger)

	listingTypes := make([]models.ListingType, 0, len(cfg.Workflow.ListingTypes))
	for _, t := range cfg.Workflow.ListingTypes {
		listingTypes = append(listingTypes, models.ListingType(t))
	}
	spider := scraping.NewSpiderManagerFromConfig(cfg, logger)
	syncWorkflow := workflow.NewListingSyncWorkflow(workflow.SyncDeps{
		Locations: db,
		Scraper:   spider,
		Listings:  db,
	}, steps, listingTypes, logger)
	demographicsWorkflow := workflow.NewDemographicsSyncWorkflow(workflow.DemographicsDeps{
		Locations: db,
		Scraper:   spider,
		Store:     db,
	}, steps, cfg.Workflow.CensusYears, logger)

	locationQueue := queue.NewLocationQueue(cfg.Queue.BufferSize, logger)
	batchProcessor := processor.NewBatchProcessor(locationQueue, metricsWorkflow, notifier, logger)
	batchProcessor.Start()

	sched := scheduler.NewScheduler(scheduler.Deps{
		Sync:         syncWorkflow,
		Metrics:      metricsWorkflow,
		Demographics: demographicsWorkflow,
		Locations:    db,
		Queue:        locationQueue,
		Notifier:     notifier,
	}, scheduler.Options{
		SyncCron:         cfg.Scheduler.SyncCron,
		MetricsCron:      cfg.Scheduler.MetricsCron,
		DemographicsCron: cfg.Scheduler.DemographicsCron,
		RunOnStartup:     cfg.Scheduler.RunOnStartup,
	}, logger)
	if err := sched.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	if cfg.API.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set, protected routes are disabled")
	}
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	jobs := api.NewJobRegistry(logger)
	handler := api.NewHandler(db, sched, jobs, notifier, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		JWTSecret:   cfg.API.JWTSecret,
		CORSOrigins: cfg.API.CORSOrigins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.API.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("Starting server on port %s", cfg.API.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	jobs.Shutdown()
	sched.Stop()
	batchProcessor.Stop()
	logger.Info("Shutdown complete")
}

func seedLocations(db *database.Database, path string, logger *logrus.Logger) {
	if path == "" {
		return
	}
	locations, err := config.LoadLocations(path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Warn("Failed to load seed locations")
		return
	}
	added, err := db.SeedLocations(context.Background(), locations)
	if err != nil {
		logger.WithError(err).Error("Failed to seed locations")
		return
	}
	logger.WithFields(logrus.Fields{
		"configured": len(locations),
		"added":      added,
	}).Info("Seeded scrape locations")
}

func exportGeoJSON(db *database.Database, path string, logger *logrus.Logger) {
	metrics, err := db.ListSuburbMetrics(context.Background())
	if err != nil {
		logger.WithError(err).Fatal("Failed to load suburb metrics")
	}
	if err := geometry.SaveFeatureCollection(path, geometry.FeatureCollection(metrics)); err != nil {
		logger.WithError(err).Fatal("Failed to write GeoJSON")
	}
	logger.WithFields(logrus.Fields{
		"path":    path,
		"suburbs": len(metrics),
	}).Info("Exported suburb metrics")
}
