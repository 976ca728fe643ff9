// Package memory is the volatile read cache over the local store.
package memory

import (
	"sort"
	"sync"

	"github.com/iudanet/entitysync/internal/models"
)

// Provider keeps the current entity lists per type in memory.
// Values are cloned on the way in and out so callers never share maps.
type Provider struct {
	data map[string]map[int64]models.Entity
	mu   sync.RWMutex
}

// NewProvider creates an empty cache.
func NewProvider() *Provider {
	return &Provider{
		data: make(map[string]map[int64]models.Entity),
	}
}

// GetEntities returns the cached entities of a type ordered by ID.
func (p *Provider) GetEntities(typ string) []models.Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()

	byID := p.data[typ]
	out := make([]models.Entity, 0, len(byID))
	for _, e := range byID {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// GetEntity returns a cached entity.
func (p *Provider) GetEntity(typ string, id int64) (models.Entity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.data[typ][id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// SaveEntity inserts or replaces an entity.
func (p *Provider) SaveEntity(typ string, e models.Entity) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.put(typ, e)
}

// SaveEntities inserts or replaces every entity of the batch.
func (p *Provider) SaveEntities(batch models.Batch) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for typ, entities := range batch {
		for _, e := range entities {
			p.put(typ, e)
		}
	}
}

// DeleteEntity removes an entity, missing IDs are ignored.
func (p *Provider) DeleteEntity(typ string, id int64) {
	p.DeleteEntities(typ, []int64{id})
}

// DeleteEntities removes several entities.
func (p *Provider) DeleteEntities(typ string, ids []int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range ids {
		delete(p.data[typ], id)
	}
}

// ReplaceAll swaps the whole cache for the given lists.
func (p *Provider) ReplaceAll(lists map[string][]models.Entity) {
	data := make(map[string]map[int64]models.Entity, len(lists))
	for typ, entities := range lists {
		byID := make(map[int64]models.Entity, len(entities))
		for _, e := range entities {
			byID[e.ID()] = e.Clone()
		}
		data[typ] = byID
	}

	p.mu.Lock()
	p.data = data
	p.mu.Unlock()
}

// PurgeNegative drops every local-only entity from the cache.
func (p *Provider) PurgeNegative() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	purged := 0
	for _, byID := range p.data {
		for id := range byID {
			if id < 0 {
				delete(byID, id)
				purged++
			}
		}
	}
	return purged
}

// Len returns the number of cached entities of a type.
func (p *Provider) Len(typ string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.data[typ])
}

func (p *Provider) put(typ string, e models.Entity) {
	byID, ok := p.data[typ]
	if !ok {
		byID = make(map[int64]models.Entity)
		p.data[typ] = byID
	}
	byID[e.ID()] = e.Clone()
}
