// cmd/etl/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/offer-enricher/internal/config"
	"github.com/javajoker/offer-enricher/internal/database"
	"github.com/javajoker/offer-enricher/internal/metrics"
	"github.com/javajoker/offer-enricher/internal/pipeline"
	"github.com/javajoker/offer-enricher/internal/router"
	"github.com/javajoker/offer-enricher/internal/search"
	"github.com/javajoker/offer-enricher/internal/services"
)

func main() {
	feedFlag := flag.String("feed", "", "feed location: local path or s3://bucket/key (overrides FEED_LOCATION)")
	stageFlag := flag.String("stage", "all", "what to run: load, enrich or all")
	flag.Parse()

	if err := run(*feedFlag, *stageFlag); err != nil {
		var stageErr *services.StageError
		if errors.As(err, &stageErr) {
			fmt.Fprintf(os.Stderr, "etl: %s stage failed: %v\n", stageErr.Stage, stageErr.Err)
		} else {
			fmt.Fprintf(os.Stderr, "etl: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(feedLocation, stageName string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return &services.StageError{Stage: services.StageConfig, Err: err}
	}
	if feedLocation != "" {
		cfg.Feed.Location = feedLocation
	}
	stage, err := pipeline.ParseStage(stageName)
	if err != nil {
		return &services.StageError{Stage: services.StageConfig, Err: err}
	}
	if stage != pipeline.StageEnrich && cfg.Feed.Location == "" {
		return &services.StageError{Stage: services.StageConfig, Err: errors.New("feed location is required for the load stage")}
	}

	if err := setupLogging(cfg.Log); err != nil {
		return &services.StageError{Stage: services.StageConfig, Err: err}
	}
	log := logrus.WithFields(logrus.Fields{
		"schema": cfg.Database.Schema,
		"table":  cfg.Database.Table,
		"index":  cfg.Search.Index,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return &services.StageError{Stage: services.StageDatabaseWrite, Err: err}
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db, cfg.Database.Schema, cfg.Database.Table); err != nil {
		return &services.StageError{Stage: services.StageDatabaseWrite, Err: err}
	}
	store, err := database.NewOfferStore(db, cfg.Database.Schema, cfg.Database.Table)
	if err != nil {
		return &services.StageError{Stage: services.StageConfig, Err: err}
	}

	index, err := newSearchIndex(cfg.Search)
	if err != nil {
		return &services.StageError{Stage: services.StageConfig, Err: err}
	}

	var source services.FeedSource
	if cfg.Feed.Location != "" {
		source, err = services.NewFeedSource(cfg.Feed.Location, cfg.AWS)
		if err != nil {
			return &services.StageError{Stage: services.StageConfig, Err: err}
		}
		log = log.WithField("feed", source.String())
	}

	reg := metrics.NewRegistry()
	p := pipeline.New(source, store, index, reg, pipeline.Options{
		Ingest: services.IngestOptions{
			BatchSize:        cfg.Feed.BatchSize,
			NormalizeWorkers: cfg.Feed.NormalizeWorkers,
		},
		Enrich: services.EnrichOptions{
			PageSize:     cfg.Enrich.PageSize,
			Workers:      cfg.Enrich.Workers,
			SimilarCount: cfg.Search.SimilarCount,
			RPS:          cfg.Enrich.RPS,
		},
	}, log)

	if cfg.Ops.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.Ops.MetricsAddr,
			Handler:           router.Initialize(p, reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logrus.WithField("addr", cfg.Ops.MetricsAddr).Info("Starting ops server")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.WithError(err).Error("Ops server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	report, err := p.Run(ctx, stage)
	if err != nil {
		return err
	}

	fields := logrus.Fields{"categories": report.Categories}
	if report.Ingest != nil {
		fields["persisted"] = report.Ingest.Persisted
		fields["excluded"] = report.Ingest.Excluded
	}
	if report.Enrichment != nil {
		fields["enriched"] = report.Enrichment.Updated
	}
	log.WithFields(fields).Info("ETL finished")
	return nil
}

func newSearchIndex(cfg config.SearchConfig) (services.SearchIndex, error) {
	var index search.Index
	switch cfg.Backend {
	case "memory":
		index = search.NewMemoryIndex()
	default:
		es, err := search.NewElasticIndex(search.ElasticConfig{
			Addresses:   cfg.Addresses,
			Username:    cfg.Username,
			Password:    cfg.Password,
			Index:       cfg.Index,
			BulkWorkers: cfg.BulkWorkers,
		})
		if err != nil {
			return nil, err
		}
		index = es
	}

	return search.NewBreakerIndex(index, search.BreakerConfig{
		Name:                "search-" + cfg.Index,
		ConsecutiveFailures: cfg.BreakerFailures,
		OpenTimeout:         cfg.BreakerOpenTimeout(),
	}), nil
}

func setupLogging(cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
