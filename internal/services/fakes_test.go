// internal/services/fakes_test.go
package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/javajoker/offer-enricher/internal/feed"
	"github.com/javajoker/offer-enricher/internal/models"
	"github.com/javajoker/offer-enricher/internal/search"
)

var errBoom = errors.New("boom")

type fakeStore struct {
	mu        sync.Mutex
	batches   [][]models.Offer
	rows      map[uuid.UUID]models.Offer
	updates   map[uuid.UUID]int
	upsertErr error
	listErr   error
	failIDs   map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:    make(map[uuid.UUID]models.Offer),
		updates: make(map[uuid.UUID]int),
		failIDs: make(map[uuid.UUID]bool),
	}
}

func (s *fakeStore) UpsertBatch(ctx context.Context, offers []models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.batches = append(s.batches, append([]models.Offer(nil), offers...))
	for _, o := range offers {
		s.rows[o.UUID] = o
	}
	return nil
}

func (s *fakeStore) ListUUIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	ids := make([]uuid.UUID, 0, len(s.rows))
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

func (s *fakeStore) UpdateSimilarSKU(ctx context.Context, id uuid.UUID, similar []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[id] {
		return errBoom
	}
	row, ok := s.rows[id]
	if !ok {
		return errors.New("not found")
	}
	row.SimilarSKU = append([]string(nil), similar...)
	s.rows[id] = row
	s.updates[id]++
	return nil
}

func (s *fakeStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

func (s *fakeStore) row(id uuid.UUID) models.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

func (s *fakeStore) updateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.updates {
		total += n
	}
	return total
}

// recordingIndex wraps a MemoryIndex and records every bulk call.
type recordingIndex struct {
	*search.MemoryIndex
	mu      sync.Mutex
	batches [][]models.SearchDocument
	bulkErr error
	findErr error
	// documents with this title are rejected one by one
	rejectTitle string
}

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{MemoryIndex: search.NewMemoryIndex()}
}

func (r *recordingIndex) BulkUpsert(ctx context.Context, docs []models.SearchDocument) (search.BulkResult, error) {
	r.mu.Lock()
	r.batches = append(r.batches, append([]models.SearchDocument(nil), docs...))
	bulkErr, rejectTitle := r.bulkErr, r.rejectTitle
	r.mu.Unlock()
	if bulkErr != nil {
		return search.BulkResult{}, bulkErr
	}

	accepted := make([]models.SearchDocument, 0, len(docs))
	var failed []search.DocumentFailure
	for _, d := range docs {
		if rejectTitle != "" && d.Title == rejectTitle {
			failed = append(failed, search.DocumentFailure{ID: d.UUID, Reason: "mapper_parsing_exception"})
			continue
		}
		accepted = append(accepted, d)
	}
	res, err := r.MemoryIndex.BulkUpsert(ctx, accepted)
	res.Failed = append(res.Failed, failed...)
	return res, err
}

func (r *recordingIndex) FindSimilar(ctx context.Context, seed string, limit int) ([]string, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.MemoryIndex.FindSimilar(ctx, seed, limit)
}

type sliceSource struct {
	offers []*feed.RawOffer
	pos    int
	errAt  int
}

func (s *sliceSource) Next() (*feed.RawOffer, error) {
	if s.errAt > 0 && s.pos == s.errAt {
		return nil, errBoom
	}
	if s.pos >= len(s.offers) {
		return nil, io.EOF
	}
	o := s.offers[s.pos]
	s.pos++
	return o, nil
}

func rawOffers(n int, title func(i int) string) []*feed.RawOffer {
	offers := make([]*feed.RawOffer, n)
	for i := range offers {
		name := title(i)
		offers[i] = &feed.RawOffer{
			ID:   strconv.Itoa(i + 1),
			Name: &name,
		}
	}
	return offers
}
