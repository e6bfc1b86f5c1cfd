// internal/services/enrichment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/javajoker/offer-enricher/internal/metrics"
)

// maxReportedFailures caps how many per-record errors a report keeps.
const maxReportedFailures = 100

type EnrichOptions struct {
	PageSize     int
	Workers      int
	SimilarCount int
	// RPS paces similarity queries; 0 means unlimited.
	RPS float64
}

type RecordFailure struct {
	UUID uuid.UUID
	Err  error
}

type EnrichmentReport struct {
	Pages    int
	Visited  int
	Updated  int
	Skipped  int
	Failed   int
	Failures []RecordFailure
}

// Err joins the retained record failures, or returns nil when none failed.
func (r *EnrichmentReport) Err() error {
	if r.Failed == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.UUID, f.Err))
	}
	return fmt.Errorf("%d of %d records failed: %w", r.Failed, r.Visited, errors.Join(errs...))
}

// EnrichmentService re-reads persisted offers page by page, asks the search
// index for similar offers and writes the ids back to similar_sku.
type EnrichmentService struct {
	store   OfferStore
	index   SearchIndex
	metrics *metrics.Registry
	opts    EnrichOptions
	limiter *rate.Limiter
	log     *logrus.Entry
}

func NewEnrichmentService(store OfferStore, index SearchIndex, reg *metrics.Registry, opts EnrichOptions, log *logrus.Entry) *EnrichmentService {
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.SimilarCount <= 0 {
		opts.SimilarCount = 5
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), int(math.Max(1, opts.RPS)))
	}

	return &EnrichmentService{
		store:   store,
		index:   index,
		metrics: reg,
		opts:    opts,
		limiter: limiter,
		log:     log,
	}
}

// Run sweeps every persisted offer once. Failures of single records are
// counted in the report and do not stop the sweep; only a failure to read a
// page aborts it. Cancellation is observed between pages.
func (s *EnrichmentService) Run(ctx context.Context) (*EnrichmentReport, error) {
	report := &EnrichmentReport{}

	total, err := s.store.Count(ctx)
	if err != nil {
		return report, stageError(StageEnrichment, fmt.Errorf("count offers: %w", err))
	}
	s.log.WithField("total", total).Info("Similarity enrichment started")

	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		ids, err := s.store.ListUUIDs(ctx, after, s.opts.PageSize)
		if err != nil {
			return report, stageError(StageEnrichment, fmt.Errorf("list offers after %s: %w", after, err))
		}
		if len(ids) == 0 {
			break
		}

		if err := s.processPage(context.WithoutCancel(ctx), ids, report); err != nil {
			return report, stageError(StageEnrichment, fmt.Errorf("enrich page after %s: %w", after, err))
		}
		report.Pages++
		after = ids[len(ids)-1]

		s.log.WithFields(logrus.Fields{
			"page":    report.Pages,
			"visited": report.Visited,
			"updated": report.Updated,
			"failed":  report.Failed,
		}).Debug("Enrichment page done")

		if len(ids) < s.opts.PageSize {
			break
		}
	}

	s.log.WithFields(logrus.Fields{
		"visited": report.Visited,
		"updated": report.Updated,
		"skipped": report.Skipped,
		"failed":  report.Failed,
		"pages":   report.Pages,
	}).Info("Similarity enrichment completed")

	return report, nil
}

type recordOutcome int

const (
	outcomeUpdated recordOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// processPage enriches one page with bounded concurrency. Record failures go
// into the report, so the returned error is reserved for the page itself.
func (s *EnrichmentService) processPage(ctx context.Context, ids []uuid.UUID, report *EnrichmentReport) error {
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	for _, id := range ids {
		g.Go(func() error {
			start := time.Now()
			outcome, err := s.enrichRecord(ctx, id)
			s.metrics.EnrichLatency.Observe(time.Since(start).Seconds())

			mu.Lock()
			defer mu.Unlock()
			report.Visited++
			switch outcome {
			case outcomeUpdated:
				report.Updated++
				s.metrics.EnrichUpdated.Inc()
			case outcomeSkipped:
				report.Skipped++
				s.metrics.EnrichSkipped.Inc()
			case outcomeFailed:
				report.Failed++
				s.metrics.EnrichFailed.Inc()
				if len(report.Failures) < maxReportedFailures {
					report.Failures = append(report.Failures, RecordFailure{UUID: id, Err: err})
				}
				s.log.WithError(err).WithField("uuid", id.String()).Error("Failed to enrich offer")
			}
			return nil
		})
	}
	return g.Wait()
}

// enrichRecord runs one query and at most one update. An offer without any
// similar hit is left untouched.
func (s *EnrichmentService) enrichRecord(ctx context.Context, id uuid.UUID) (recordOutcome, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return outcomeFailed, err
	}

	similar, err := s.index.FindSimilar(ctx, id.String(), s.opts.SimilarCount)
	if err != nil {
		return outcomeFailed, fmt.Errorf("find similar: %w", err)
	}
	if len(similar) == 0 {
		return outcomeSkipped, nil
	}

	if err := s.store.UpdateSimilarSKU(ctx, id, similar); err != nil {
		return outcomeFailed, fmt.Errorf("update similar_sku: %w", err)
	}
	return outcomeUpdated, nil
}
