// internal/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/offer-enricher/internal/metrics"
	"github.com/javajoker/offer-enricher/internal/models"
	"github.com/javajoker/offer-enricher/internal/search"
	"github.com/javajoker/offer-enricher/internal/services"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<yml_catalog>
  <shop>
    <offers>
      <offer id="42">
        <name>Phone X</name>
        <description>Good phone</description>
        <price>80</price>
        <oldprice>100</oldprice>
        <categoryId>2</categoryId>
      </offer>
      <offer id="43">
        <name>Phone Y</name>
        <description>Good phone too</description>
        <price>50</price>
        <categoryId>2</categoryId>
      </offer>
      <offer id="44">
        <name>Garden hose</name>
        <categoryId>9</categoryId>
      </offer>
      <offer id="9223372036854775808">
        <name>Broken phone</name>
      </offer>
    </offers>
    <categories>
      <category id="1">Electronics</category>
      <category id="2" parentId="1">Phones</category>
    </categories>
  </shop>
</yml_catalog>`

type stringSource struct {
	body    string
	openErr error
	opens   int
}

func (s *stringSource) Open(ctx context.Context) (io.ReadCloser, error) {
	s.opens++
	if s.openErr != nil {
		return nil, s.openErr
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func (s *stringSource) String() string { return "test feed" }

type memoryStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]models.Offer
	updateErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[uuid.UUID]models.Offer)}
}

func (s *memoryStore) UpsertBatch(ctx context.Context, offers []models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range offers {
		s.rows[o.UUID] = o
	}
	return nil
}

func (s *memoryStore) ListUUIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id := range s.rows {
		if id.String() > after.String() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *memoryStore) UpdateSimilarSKU(ctx context.Context, id uuid.UUID, similar []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	row := s.rows[id]
	row.SimilarSKU = similar
	s.rows[id] = row
	return nil
}

func (s *memoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

func (s *memoryStore) byProductID(id string) (models.Offer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ProductID.String() == id {
			return row, true
		}
	}
	return models.Offer{}, false
}

type PipelineTestSuite struct {
	suite.Suite
	source  *stringSource
	store   *memoryStore
	index   *search.MemoryIndex
	metrics *metrics.Registry
	log     *logrus.Entry
}

func (suite *PipelineTestSuite) SetupTest() {
	suite.source = &stringSource{body: testFeed}
	suite.store = newMemoryStore()
	suite.index = search.NewMemoryIndex()
	suite.metrics = metrics.NewRegistry()
	logger, _ := test.NewNullLogger()
	suite.log = logrus.NewEntry(logger)
}

func (suite *PipelineTestSuite) pipeline() *Pipeline {
	return New(suite.source, suite.store, suite.index, suite.metrics, Options{
		Ingest: services.IngestOptions{BatchSize: 2, NormalizeWorkers: 2},
		Enrich: services.EnrichOptions{PageSize: 2, Workers: 2, SimilarCount: 5},
	}, suite.log)
}

func (suite *PipelineTestSuite) TestFullRun() {
	p := suite.pipeline()
	report, err := p.Run(context.Background(), StageAll)
	suite.Require().NoError(err)

	suite.Equal(2, suite.source.opens)
	suite.Equal(2, report.Categories)
	suite.Require().NotNil(report.Ingest)
	suite.Equal(4, report.Ingest.Read)
	suite.Equal(1, report.Ingest.Excluded)
	suite.Equal(3, report.Ingest.Persisted)
	suite.Equal(2, report.Ingest.Batches)
	suite.Require().NotNil(report.Enrichment)
	suite.Equal(3, report.Enrichment.Visited)
	suite.Equal(2, report.Enrichment.Updated)
	suite.Equal(1, report.Enrichment.Skipped)

	phoneX, ok := suite.store.byProductID("42")
	suite.Require().True(ok)
	suite.Equal(20.0, phoneX.Discount)
	suite.Require().NotNil(phoneX.Lvl1)
	suite.Equal("Phones", *phoneX.Lvl1)
	suite.Require().NotNil(phoneX.Lvl2)
	suite.Equal("Electronics", *phoneX.Lvl2)
	suite.Nil(phoneX.Lvl3)

	phoneY, ok := suite.store.byProductID("43")
	suite.Require().True(ok)
	suite.Equal([]string{phoneY.UUID.String()}, []string(phoneX.SimilarSKU))
	suite.Equal([]string{phoneX.UUID.String()}, []string(phoneY.SimilarSKU))

	hose, ok := suite.store.byProductID("44")
	suite.Require().True(ok)
	suite.Empty(hose.SimilarSKU)
	suite.Nil(hose.Lvl1)

	_, ok = suite.store.byProductID("9223372036854775808")
	suite.False(ok)
	suite.Equal(3, suite.index.Len())

	status := p.Status()
	suite.False(status.Running)
	suite.Empty(status.LastError)
	suite.Equal(0.0, testutil.ToFloat64(suite.metrics.StageRunning.WithLabelValues("offers")))
}

func (suite *PipelineTestSuite) TestLoadOnly() {
	report, err := suite.pipeline().Run(context.Background(), StageLoad)
	suite.Require().NoError(err)
	suite.NotNil(report.Ingest)
	suite.Nil(report.Enrichment)

	phoneX, _ := suite.store.byProductID("42")
	suite.Empty(phoneX.SimilarSKU)
}

func (suite *PipelineTestSuite) TestEnrichOnlyDoesNotReadFeed() {
	_, err := suite.pipeline().Run(context.Background(), StageLoad)
	suite.Require().NoError(err)
	suite.source.opens = 0

	report, err := suite.pipeline().Run(context.Background(), StageEnrich)
	suite.Require().NoError(err)
	suite.Equal(0, suite.source.opens)
	suite.Nil(report.Ingest)
	suite.Equal(2, report.Enrichment.Updated)
}

func (suite *PipelineTestSuite) TestFeedOpenFailure() {
	suite.source.openErr = errors.New("no such bucket")

	p := suite.pipeline()
	_, err := p.Run(context.Background(), StageAll)
	suite.Require().Error(err)

	var stageErr *services.StageError
	suite.Require().True(errors.As(err, &stageErr))
	suite.Equal(services.StageParse, stageErr.Stage)
	suite.Contains(p.Status().LastError, "no such bucket")
	suite.False(p.Status().Running)
}

func (suite *PipelineTestSuite) TestMalformedFeed() {
	suite.source.body = `<yml_catalog><categories><category id="1">A</categories>`

	_, err := suite.pipeline().Run(context.Background(), StageLoad)
	var stageErr *services.StageError
	suite.Require().True(errors.As(err, &stageErr))
	suite.Equal(services.StageParse, stageErr.Stage)
}

func (suite *PipelineTestSuite) TestEnrichmentFailuresFailTheRun() {
	suite.store.updateErr = errors.New("deadlock detected")

	report, err := suite.pipeline().Run(context.Background(), StageAll)
	suite.Require().Error(err)

	var stageErr *services.StageError
	suite.Require().True(errors.As(err, &stageErr))
	suite.Equal(services.StageEnrichment, stageErr.Stage)
	suite.Equal(2, report.Enrichment.Failed)
	suite.Equal(3, report.Ingest.Persisted)
}

func (suite *PipelineTestSuite) TestUnknownStage() {
	_, err := suite.pipeline().Run(context.Background(), Stage("reindex"))
	var stageErr *services.StageError
	suite.Require().True(errors.As(err, &stageErr))
	suite.Equal(services.StageConfig, stageErr.Stage)
}

func (suite *PipelineTestSuite) TestCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := suite.pipeline().Run(ctx, StageAll)
	suite.ErrorIs(err, context.Canceled)
	count, _ := suite.store.Count(context.Background())
	suite.Equal(int64(0), count)
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

func TestParseStage(t *testing.T) {
	for _, s := range []string{"load", "enrich", "all"} {
		stage, err := ParseStage(s)
		require.NoError(t, err)
		assert.Equal(t, Stage(s), stage)
	}

	stage, err := ParseStage("")
	require.NoError(t, err)
	assert.Equal(t, StageAll, stage)

	_, err = ParseStage("everything")
	assert.Error(t, err)
}
