// README: In-memory catalog seeded from a YAML file (local runs and tests).
package vehicle

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"rental/internal/modules/pricing"
	"rental/internal/types"
)

type catalogFile struct {
	Vehicles []Entry `yaml:"vehicles"`
}

type MemoryCatalog struct {
	mu      sync.RWMutex
	entries map[types.ID]Entry
}

func NewMemoryCatalog(entries ...Entry) *MemoryCatalog {
	c := &MemoryCatalog{entries: make(map[types.ID]Entry, len(entries))}
	for _, e := range entries {
		c.entries[e.ID] = normalize(e)
	}
	return c
}

// LoadCatalogFile reads a catalog seed such as configs/catalog.yaml.
// Environment variables in the file are expanded before parsing.
func LoadCatalogFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f catalogFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, e := range f.Vehicles {
		if e.ID == "" {
			return nil, fmt.Errorf("%s: vehicle #%d has no id", path, i+1)
		}
		f.Vehicles[i] = normalize(e)
	}
	return f.Vehicles, nil
}

// normalize fills neutral multipliers left out of a seed file.
func normalize(e Entry) Entry {
	if e.Plan.RateCard.LowSeasonMultiplier == 0 {
		e.Plan.RateCard.LowSeasonMultiplier = 1
	}
	if e.Plan.RateCard.HighSeasonMultiplier == 0 {
		e.Plan.RateCard.HighSeasonMultiplier = 1
	}
	return e
}

func (c *MemoryCatalog) Get(_ context.Context, id types.ID) (Vehicle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return Vehicle{}, ErrNotFound
	}
	return e.Vehicle, nil
}

func (c *MemoryCatalog) Plan(_ context.Context, id types.ID) (pricing.Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return pricing.Plan{}, pricing.ErrNoRateCard
	}
	return e.Plan, nil
}

func (c *MemoryCatalog) List(_ context.Context, q Query) ([]Vehicle, error) {
	c.mu.RLock()
	out := make([]Vehicle, 0, len(c.entries))
	for _, e := range c.entries {
		if q.matchesLocation(e.Vehicle) {
			out = append(out, e.Vehicle)
		}
	}
	c.mu.RUnlock()

	if q.Near != nil && q.RadiusKm > 0 {
		return withinRadius(out, *q.Near, q.RadiusKm), nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) Save(_ context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.ID] = normalize(e)
	return nil
}
