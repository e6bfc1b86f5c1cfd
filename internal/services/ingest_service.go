// internal/services/ingest_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/javajoker/offer-enricher/internal/feed"
	"github.com/javajoker/offer-enricher/internal/metrics"
	"github.com/javajoker/offer-enricher/internal/models"
	"github.com/javajoker/offer-enricher/internal/search"
)

type IngestOptions struct {
	BatchSize        int
	NormalizeWorkers int
}

type IngestReport struct {
	Read          int
	Excluded      int
	Persisted     int
	Indexed       int
	IndexFailures int
	Batches       int
}

// IngestService drives one pass over the feed's offers and flushes fixed-size
// batches to the offer table and the search index.
type IngestService struct {
	store   OfferStore
	index   SearchIndex
	metrics *metrics.Registry
	opts    IngestOptions
	log     *logrus.Entry
}

func NewIngestService(store OfferStore, index SearchIndex, reg *metrics.Registry, opts IngestOptions, log *logrus.Entry) *IngestService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.NormalizeWorkers <= 0 {
		opts.NormalizeWorkers = 1
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &IngestService{
		store:   store,
		index:   index,
		metrics: reg,
		opts:    opts,
		log:     log,
	}
}

// Run consumes source to exhaustion. Batches are flushed in feed order and a
// batch counts as flushed only once both sinks accepted it. Cancellation is
// honoured between batches; a batch that started flushing runs to completion.
func (s *IngestService) Run(ctx context.Context, source OfferSource, tree *CategoryTree) (*IngestReport, error) {
	normalizer := NewNormalizer(tree)
	report := &IngestReport{}
	batch := make([]*feed.RawOffer, 0, s.opts.BatchSize)

	for {
		raw, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, stageError(StageParse, err)
		}
		report.Read++
		s.metrics.OffersParsed.Inc()

		batch = append(batch, raw)
		if len(batch) < s.opts.BatchSize {
			continue
		}

		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.flush(context.WithoutCancel(ctx), normalizer, batch, report); err != nil {
			return report, err
		}
		clear(batch)
		batch = batch[:0]
	}

	if len(batch) > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.flush(context.WithoutCancel(ctx), normalizer, batch, report); err != nil {
			return report, err
		}
	}

	s.log.WithFields(logrus.Fields{
		"read":      report.Read,
		"persisted": report.Persisted,
		"indexed":   report.Indexed,
		"excluded":  report.Excluded,
		"batches":   report.Batches,
	}).Info("Feed ingestion completed")

	return report, nil
}

func (s *IngestService) flush(ctx context.Context, normalizer *Normalizer, raws []*feed.RawOffer, report *IngestReport) error {
	start := time.Now()
	batchNo := report.Batches + 1
	log := s.log.WithField("batch", batchNo)

	offers, err := s.normalizeBatch(normalizer, raws)
	if err != nil {
		return stageError(StageNormalize, err)
	}

	kept, excluded := FilterInBounds(offers)
	if excluded > 0 {
		report.Excluded += excluded
		s.metrics.OffersExcluded.Add(float64(excluded))
		log.WithField("excluded", excluded).Warn("Offers with out-of-range product_id or barcode dropped")
	}
	report.Batches++
	if len(kept) == 0 {
		return nil
	}

	docs := make([]models.SearchDocument, len(kept))
	for i := range kept {
		docs[i] = kept[i].SearchDocument()
	}

	var indexResult search.BulkResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.store.UpsertBatch(gctx, kept); err != nil {
			return stageError(StageDatabaseWrite, err)
		}
		return nil
	})
	g.Go(func() error {
		res, err := s.index.BulkUpsert(gctx, docs)
		if err != nil {
			return stageError(StageIndexWrite, err)
		}
		indexResult = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, f := range indexResult.Failed {
		log.WithFields(logrus.Fields{
			"uuid":   f.ID,
			"reason": f.Reason,
		}).Error("Document rejected by search index")
	}

	report.Persisted += len(kept)
	report.Indexed += indexResult.Indexed
	report.IndexFailures += len(indexResult.Failed)

	s.metrics.BatchesFlushed.WithLabelValues(metrics.SinkDatabase).Inc()
	s.metrics.BatchesFlushed.WithLabelValues(metrics.SinkIndex).Inc()
	s.metrics.RecordsWritten.WithLabelValues(metrics.SinkDatabase).Add(float64(len(kept)))
	s.metrics.RecordsWritten.WithLabelValues(metrics.SinkIndex).Add(float64(indexResult.Indexed))
	s.metrics.IndexFailures.Add(float64(len(indexResult.Failed)))
	s.metrics.FlushLatency.Observe(time.Since(start).Seconds())

	log.WithFields(logrus.Fields{
		"records":  len(kept),
		"duration": time.Since(start).Milliseconds(),
	}).Info("Batch flushed")

	return nil
}

// normalizeBatch fans the batch out over the configured workers. Results keep
// feed order.
func (s *IngestService) normalizeBatch(normalizer *Normalizer, raws []*feed.RawOffer) ([]models.Offer, error) {
	offers := make([]models.Offer, len(raws))

	var g errgroup.Group
	g.SetLimit(s.opts.NormalizeWorkers)
	for i, raw := range raws {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("offer %q: %v", raw.ID, r)
				}
			}()
			offers[i] = normalizer.Normalize(raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return offers, nil
}
