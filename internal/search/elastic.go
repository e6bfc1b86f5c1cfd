// internal/search/elastic.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/offer-enricher/internal/models"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "uuid":        {"type": "keyword"},
      "title":       {"type": "text"},
      "description": {"type": "text"}
    }
  }
}`

type ElasticConfig struct {
	Addresses   []string
	Username    string
	Password    string
	Index       string
	BulkWorkers int
}

type ElasticIndex struct {
	client  *elasticsearch.Client
	index   string
	workers int
	log     *logrus.Entry
}

func NewElasticIndex(cfg ElasticConfig) (*ElasticIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	workers := cfg.BulkWorkers
	if workers <= 0 {
		workers = 1
	}

	return &ElasticIndex{
		client:  client,
		index:   cfg.Index,
		workers: workers,
		log:     logrus.WithField("index", cfg.Index),
	}, nil
}

func (e *ElasticIndex) EnsureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", e.index, err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		e.log.Info("Search index already exists")
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("unexpected status checking index %s: %s", e.index, res.Status())
	}

	res, err = e.client.Indices.Create(
		e.index,
		e.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", e.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body := res.String()
		// Another run created it between the check and the create.
		if strings.Contains(body, "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("failed to create index %s: %s", e.index, body)
	}

	e.log.Info("Search index created")
	return nil
}

func (e *ElasticIndex) Refresh(ctx context.Context) error {
	res, err := e.client.Indices.Refresh(
		e.client.Indices.Refresh.WithIndex(e.index),
		e.client.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to refresh index %s: %w", e.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to refresh index %s: %s", e.index, res.String())
	}
	return nil
}

// BulkUpsert indexes docs keyed by uuid. Documents rejected one by one are
// reported in the result; a failed bulk request fails the whole call.
func (e *ElasticIndex) BulkUpsert(ctx context.Context, docs []models.SearchDocument) (BulkResult, error) {
	var (
		mu       sync.Mutex
		failed   []DocumentFailure
		flushErr error
	)

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     e.client,
		Index:      e.index,
		NumWorkers: e.workers,
		OnError: func(ctx context.Context, err error) {
			mu.Lock()
			defer mu.Unlock()
			if flushErr == nil {
				flushErr = err
			}
		},
	})
	if err != nil {
		return BulkResult{}, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	for _, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			bi.Close(ctx)
			return BulkResult{}, fmt.Errorf("failed to encode document %s: %w", doc.UUID, err)
		}

		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.UUID,
			Body:       bytes.NewReader(body),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				reason := res.Error.Type + ": " + res.Error.Reason
				if err != nil {
					reason = err.Error()
				}
				mu.Lock()
				failed = append(failed, DocumentFailure{ID: item.DocumentID, Reason: reason})
				mu.Unlock()
			},
		})
		if err != nil {
			bi.Close(ctx)
			return BulkResult{}, fmt.Errorf("failed to queue document %s: %w", doc.UUID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return BulkResult{}, fmt.Errorf("bulk upsert to %s failed: %w", e.index, err)
	}
	if flushErr != nil {
		return BulkResult{}, fmt.Errorf("bulk upsert to %s failed: %w", e.index, flushErr)
	}

	stats := bi.Stats()
	return BulkResult{Indexed: int(stats.NumIndexed), Failed: failed}, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string `json:"_id"`
			Source struct {
				UUID string `json:"uuid"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticIndex) FindSimilar(ctx context.Context, seed string, limit int) ([]string, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"more_like_this": map[string]interface{}{
				"fields": SimilarityFields,
				"like": []map[string]interface{}{
					{"_index": e.index, "_id": seed},
				},
				"min_term_freq":   1,
				"max_query_terms": 12,
			},
		},
		"size":    limit,
		"_source": []string{"uuid"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode similarity query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("similarity query for %s failed: %w", seed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return []string{}, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("similarity query for %s failed: %s", seed, res.String())
	}

	var body searchResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode similarity response: %w", err)
	}

	ids := make([]string, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		id := hit.Source.UUID
		if id == "" {
			id = hit.ID
		}
		if id == seed {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
