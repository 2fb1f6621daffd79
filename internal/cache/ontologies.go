// ABOUTME: Ontology forest cache keyed by code.
// ABOUTME: Entries never expire; Reset clears them.
package cache

import (
	"context"
	"sync"

	"github.com/harperreed/tracker/internal/metrics"
	"github.com/harperreed/tracker/internal/models"
)

// Ontologies caches fetched ontology forests.
type Ontologies struct {
	mu      sync.RWMutex
	entries map[string][]models.CodedRelationship
}

// NewOntologies creates an empty ontology cache.
func NewOntologies() *Ontologies {
	return &Ontologies{entries: map[string][]models.CodedRelationship{}}
}

// Get returns the cached forest for code.
func (o *Ontologies) Get(code string) ([]models.CodedRelationship, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	forest, ok := o.entries[code]
	return forest, ok
}

// Put stores the forest for code.
func (o *Ontologies) Put(code string, forest []models.CodedRelationship) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries[code] = forest
}

// Fetch returns the cached forest for code, loading it on a miss.
func (o *Ontologies) Fetch(ctx context.Context, code string, load func(context.Context, string) ([]models.CodedRelationship, error)) ([]models.CodedRelationship, error) {
	if forest, ok := o.Get(code); ok {
		metrics.CacheHits.WithLabelValues("ontology").Inc()
		return forest, nil
	}
	metrics.CacheMisses.WithLabelValues("ontology").Inc()

	forest, err := load(ctx, code)
	if err != nil {
		return nil, err
	}
	o.Put(code, forest)
	return forest, nil
}

// Reset clears all entries.
func (o *Ontologies) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = map[string][]models.CodedRelationship{}
}
