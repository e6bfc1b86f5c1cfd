// internal/search/memory.go
package search

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/javajoker/offer-enricher/internal/models"
)

// MemoryIndex is an in-process TF-IDF index with cosine similarity. It backs
// offline runs and tests; results are deterministic (score desc, id asc).
type MemoryIndex struct {
	mu           sync.RWMutex
	docs         map[string]*memoryDoc
	df           map[string]int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

type memoryDoc struct {
	tf    map[string]int
	total int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		docs:         make(map[string]*memoryDoc),
		df:           make(map[string]int),
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+`),
		stopwords:    defaultStopwords(),
	}
}

func (m *MemoryIndex) EnsureIndex(ctx context.Context) error { return nil }

func (m *MemoryIndex) Refresh(ctx context.Context) error { return nil }

func (m *MemoryIndex) BulkUpsert(ctx context.Context, docs []models.SearchDocument) (BulkResult, error) {
	if err := ctx.Err(); err != nil {
		return BulkResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var result BulkResult
	for _, d := range docs {
		if d.UUID == "" {
			result.Failed = append(result.Failed, DocumentFailure{Reason: "empty document id"})
			continue
		}
		if old, ok := m.docs[d.UUID]; ok {
			for term := range old.tf {
				m.df[term]--
				if m.df[term] == 0 {
					delete(m.df, term)
				}
			}
		}
		doc := m.analyze(d.Title + " " + d.Description)
		for term := range doc.tf {
			m.df[term]++
		}
		m.docs[d.UUID] = doc
		result.Indexed++
	}
	return result, nil
}

func (m *MemoryIndex) FindSimilar(ctx context.Context, seed string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	seedDoc, ok := m.docs[seed]
	if !ok || seedDoc.total == 0 || limit <= 0 {
		return []string{}, nil
	}

	seedVec := m.weights(seedDoc)
	seedNorm := norm(seedVec)

	type scored struct {
		id    string
		score float64
	}
	var candidates []scored
	for id, doc := range m.docs {
		if id == seed || doc.total == 0 {
			continue
		}
		vec := m.weights(doc)
		dot := 0.0
		for term, w := range seedVec {
			dot += w * vec[term]
		}
		if dot <= 0 {
			continue
		}
		candidates = append(candidates, scored{id: id, score: dot / (seedNorm * norm(vec))})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids, nil
}

// Len is the number of indexed documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) analyze(text string) *memoryDoc {
	doc := &memoryDoc{tf: make(map[string]int)}
	for _, tok := range m.tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, isStop := m.stopwords[tok]; isStop {
			continue
		}
		doc.tf[tok]++
		doc.total++
	}
	return doc
}

// weights computes tf-idf with smoothed idf over the current corpus.
func (m *MemoryIndex) weights(doc *memoryDoc) map[string]float64 {
	n := float64(len(m.docs))
	vec := make(map[string]float64, len(doc.tf))
	for term, count := range doc.tf {
		idf := math.Log((1+n)/(1+float64(m.df[term]))) + 1.0
		vec[term] = float64(count) / float64(doc.total) * idf
	}
	return vec
}

func norm(vec map[string]float64) float64 {
	sum := 0.0
	for _, v := range vec {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are",
		"it", "this", "that", "from",
		"и", "в", "во", "на", "с", "со", "для", "по", "из", "от", "до", "не", "а", "или", "к", "у", "о",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
