// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/offer-enricher/internal/feed"
	"github.com/javajoker/offer-enricher/internal/metrics"
	"github.com/javajoker/offer-enricher/internal/services"
)

// Stage selects which part of the run executes.
type Stage string

const (
	StageLoad   Stage = "load"
	StageEnrich Stage = "enrich"
	StageAll    Stage = "all"
)

func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageLoad, StageEnrich, StageAll:
		return Stage(s), nil
	case "":
		return StageAll, nil
	}
	return "", fmt.Errorf("unknown stage %q (want load, enrich or all)", s)
}

type Options struct {
	Ingest services.IngestOptions
	Enrich services.EnrichOptions
}

// Report collects what each executed step did. Nil parts did not run.
type Report struct {
	Categories int
	Ingest     *services.IngestReport
	Enrichment *services.EnrichmentReport
	Duration   time.Duration
}

// Status is the snapshot served by the ops health endpoint.
type Status struct {
	Running   bool      `json:"running"`
	Step      string    `json:"step,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Pipeline wires the feed, the offer table and the search index for one run.
// All clients are passed in and never replaced.
type Pipeline struct {
	source  services.FeedSource
	store   services.OfferStore
	index   services.SearchIndex
	metrics *metrics.Registry
	opts    Options
	log     *logrus.Entry

	mu     sync.RWMutex
	status Status
}

func New(source services.FeedSource, store services.OfferStore, index services.SearchIndex, reg *metrics.Registry, opts Options, log *logrus.Entry) *Pipeline {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pipeline{
		source:  source,
		store:   store,
		index:   index,
		metrics: reg,
		opts:    opts,
		log:     log,
	}
}

func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Run executes the selected stage. Errors carry the failing step as a
// *services.StageError unless the run was cancelled.
func (p *Pipeline) Run(ctx context.Context, stage Stage) (*Report, error) {
	start := time.Now()
	report := &Report{}
	p.setStatus(func(s *Status) {
		s.Running = true
		s.StartedAt = start
		s.LastError = ""
	})

	err := p.run(ctx, stage, report)
	report.Duration = time.Since(start)

	p.setStatus(func(s *Status) {
		s.Running = false
		s.Step = ""
		if err != nil {
			s.LastError = err.Error()
		}
	})

	log := p.log.WithFields(logrus.Fields{
		"stage":    string(stage),
		"duration": report.Duration.Round(time.Millisecond).String(),
	})
	if err != nil {
		log.WithError(err).Error("Pipeline run failed")
		return report, err
	}
	log.Info("Pipeline run completed")
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, stage Stage, report *Report) error {
	switch stage {
	case StageLoad, StageEnrich, StageAll:
	default:
		return &services.StageError{Stage: services.StageConfig, Err: fmt.Errorf("unknown stage %q", stage)}
	}

	if err := p.step("ensure index", func() error {
		if err := p.index.EnsureIndex(ctx); err != nil {
			return &services.StageError{Stage: services.StageIndexWrite, Err: err}
		}
		return nil
	}); err != nil {
		return err
	}

	if stage == StageLoad || stage == StageAll {
		if err := p.load(ctx, report); err != nil {
			return err
		}
	}

	if stage == StageEnrich || stage == StageAll {
		if err := p.enrich(ctx, report); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) load(ctx context.Context, report *Report) error {
	var tree *services.CategoryTree
	err := p.step("categories", func() error {
		decls, err := p.readCategories(ctx)
		if err != nil {
			return &services.StageError{Stage: services.StageParse, Err: err}
		}
		tree = services.BuildCategoryTree(decls)
		report.Categories = tree.Len()
		p.logCategoryLevels(tree)
		return nil
	})
	if err != nil {
		return err
	}

	return p.step("offers", func() error {
		body, err := p.source.Open(ctx)
		if err != nil {
			return &services.StageError{Stage: services.StageParse, Err: err}
		}
		defer body.Close()

		ingest := services.NewIngestService(p.store, p.index, p.metrics, p.opts.Ingest,
			p.log.WithField("step", "offers"))
		report.Ingest, err = ingest.Run(ctx, feed.NewOfferReader(body), tree)
		return err
	})
}

func (p *Pipeline) readCategories(ctx context.Context) ([]feed.CategoryDecl, error) {
	body, err := p.source.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return feed.ReadCategories(body)
}

func (p *Pipeline) logCategoryLevels(tree *services.CategoryTree) {
	byLevel := tree.GroupByLevel()
	levels := make([]int, 0, len(byLevel))
	for level := range byLevel {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	for _, level := range levels {
		p.log.WithFields(logrus.Fields{
			"level":      level,
			"categories": len(byLevel[level]),
		}).Debug("Category level")
	}
	p.log.WithFields(logrus.Fields{
		"categories": tree.Len(),
		"levels":     len(levels),
	}).Info("Category tree built")
}

func (p *Pipeline) enrich(ctx context.Context, report *Report) error {
	return p.step("enrichment", func() error {
		if err := p.index.Refresh(ctx); err != nil {
			return &services.StageError{Stage: services.StageIndexWrite, Err: err}
		}

		enricher := services.NewEnrichmentService(p.store, p.index, p.metrics, p.opts.Enrich,
			p.log.WithField("step", "enrichment"))
		res, err := enricher.Run(ctx)
		report.Enrichment = res
		if err != nil {
			return err
		}
		if recErr := res.Err(); recErr != nil {
			return &services.StageError{Stage: services.StageEnrichment, Err: recErr}
		}
		return nil
	})
}

func (p *Pipeline) step(name string, fn func() error) error {
	p.setStatus(func(s *Status) { s.Step = name })
	gauge := p.metrics.StageRunning.WithLabelValues(name)
	gauge.Set(1)
	defer gauge.Set(0)

	err := fn()
	var stageErr *services.StageError
	if err != nil && !errors.As(err, &stageErr) && !errors.Is(err, context.Canceled) {
		p.log.WithError(err).WithField("step", name).Warn("Step failed without a stage")
	}
	return err
}

func (p *Pipeline) setStatus(fn func(*Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.status)
}
