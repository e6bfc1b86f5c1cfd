// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink label values for BatchesFlushed.
const (
	SinkDatabase = "database"
	SinkIndex    = "index"
)

type Registry struct {
	reg            *prometheus.Registry
	OffersParsed   prometheus.Counter
	OffersExcluded prometheus.Counter
	BatchesFlushed *prometheus.CounterVec
	RecordsWritten *prometheus.CounterVec
	IndexFailures  prometheus.Counter
	FlushLatency   prometheus.Histogram

	EnrichUpdated prometheus.Counter
	EnrichSkipped prometheus.Counter
	EnrichFailed  prometheus.Counter
	EnrichLatency prometheus.Histogram

	StageRunning *prometheus.GaugeVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	parsed := prometheus.NewCounter(prometheus.CounterOpts{Name: "etl_offers_parsed_total"})
	excluded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "etl_offers_excluded_total",
		Help: "Offers dropped because product_id or barcode overflow bigint.",
	})
	flushed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "etl_batches_flushed_total"}, []string{"sink"})
	written := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "etl_records_written_total"}, []string{"sink"})
	indexFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "etl_index_document_failures_total"})
	flushLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "etl_batch_flush_seconds",
		Buckets: prometheus.DefBuckets,
	})

	updated := prometheus.NewCounter(prometheus.CounterOpts{Name: "etl_enrich_updated_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "etl_enrich_skipped_total"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "etl_enrich_failed_total"})
	enrichLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "etl_enrich_record_seconds",
		Buckets: prometheus.DefBuckets,
	})

	stage := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "etl_stage_running"}, []string{"stage"})

	r.MustRegister(parsed, excluded, flushed, written, indexFailures, flushLatency,
		updated, skipped, failed, enrichLatency, stage)
	return &Registry{
		reg:            r,
		OffersParsed:   parsed,
		OffersExcluded: excluded,
		BatchesFlushed: flushed,
		RecordsWritten: written,
		IndexFailures:  indexFailures,
		FlushLatency:   flushLatency,
		EnrichUpdated:  updated,
		EnrichSkipped:  skipped,
		EnrichFailed:   failed,
		EnrichLatency:  enrichLatency,
		StageRunning:   stage,
	}
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
