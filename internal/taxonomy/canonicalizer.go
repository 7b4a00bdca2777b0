package taxonomy

import (
	"context"
	"strings"
	"sync"

	"github.com/oemforge/oemforge/internal/model"
	"github.com/oemforge/oemforge/internal/obslog"
)

// DefaultThreshold is the fuzzy-match acceptance floor spec.md §4.D sets:
// a ratio of exactly 0.80 is accepted, anything lower is not.
const DefaultThreshold = 0.80

// ItemStore is the persistence seam the Canonicalizer uses to create a row
// for an item that has no exact, alias, or fuzzy match.
type ItemStore interface {
	CreateMaintenanceItem(ctx context.Context, name, category string) (int64, error)
}

// keywordCategory pairs a lowercase substring with the category assigned
// when it is found in a new item's name. Checked in order; first match wins.
type keywordCategory struct {
	keyword  string
	category string
}

// categoryKeywords is deliberately ordered so multi-word and more specific
// phrases are checked before the generic terms they'd otherwise be shadowed
// by (e.g. "seat belt" before the bare "belt" that covers serpentine/timing
// belts into the engine category).
var categoryKeywords = []keywordCategory{
	{"seat belt", "safety"},
	{"airbag", "safety"},
	{"wiper", "safety"},
	{"filter", "filters"},
	{"brake", "brakes"},
	{"coolant", "cooling"},
	{"radiator", "cooling"},
	{"tire", "tires_wheels"},
	{"wheel", "tires_wheels"},
	{"steering", "steering_suspension"},
	{"suspension", "steering_suspension"},
	{"shock", "steering_suspension"},
	{"strut", "steering_suspension"},
	{"differential", "drivetrain"},
	{"transfer case", "drivetrain"},
	{"transmission", "drivetrain"},
	{"driveshaft", "drivetrain"},
	{"exhaust", "exhaust"},
	{"fuel", "fuel_system"},
	{"spark plug", "ignition"},
	{"ignition", "ignition"},
	{"battery", "electrical"},
	{"alternator", "electrical"},
	{"electrical", "electrical"},
	{"hvac", "hvac"},
	{"air condition", "hvac"},
	{"cabin air", "hvac"},
	{"belt", "engine"},
}

const defaultCategory = "engine"

// categoryForName returns the category a brand-new item is filed under,
// based on the first keyword its normalized name contains.
func categoryForName(normalizedName string) string {
	for _, kc := range categoryKeywords {
		if strings.Contains(normalizedName, kc.keyword) {
			return kc.category
		}
	}
	return defaultCategory
}

// normalize lowercases and trims surrounding whitespace; all cache keys and
// comparisons run through this so "Engine Oil " and "engine oil" collide.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Canonicalizer maps free-text item names from LLM output onto stable
// MaintenanceItem IDs. It loads the full catalog once at process start and
// keeps the name/alias caches in memory for the life of the run; every item
// it creates is also added to the cache so a later occurrence in the same
// run resolves without hitting the store again.
type Canonicalizer struct {
	mu        sync.Mutex
	threshold float64
	byName    map[string]int64
	byAlias   map[string]int64
	// names backs the fuzzy scan: normalized name/alias -> canonical id,
	// kept separate from byName/byAlias only for clarity of intent.
	names map[string]int64
}

// New builds a Canonicalizer from the full catalog snapshot, seeding the
// exact-name and alias caches. threshold <= 0 uses DefaultThreshold.
func New(items []model.MaintenanceItem, threshold float64) *Canonicalizer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	c := &Canonicalizer{
		threshold: threshold,
		byName:    make(map[string]int64, len(items)),
		byAlias:   make(map[string]int64),
		names:     make(map[string]int64, len(items)),
	}
	for _, item := range items {
		c.index(item)
	}
	return c
}

func (c *Canonicalizer) index(item model.MaintenanceItem) {
	n := normalize(item.Name)
	c.byName[n] = item.ID
	c.names[n] = item.ID
	for _, alias := range item.Aliases {
		a := normalize(alias)
		if a == "" {
			continue
		}
		c.byAlias[a] = item.ID
		c.names[a] = item.ID
	}
}

// Canonicalize resolves rawName to a MaintenanceItem ID: exact name match,
// then exact alias match, then the best fuzzy match at or above the
// configured threshold, and only then a newly created row via store.
// created reports whether a new catalog row was inserted for this call.
func (c *Canonicalizer) Canonicalize(ctx context.Context, store ItemStore, rawName string) (id int64, created bool, err error) {
	log := obslog.Get(obslog.CategoryTaxonomy)
	n := normalize(rawName)

	c.mu.Lock()
	if id, ok := c.byName[n]; ok {
		c.mu.Unlock()
		log.Debug("exact name match for %q -> %d", rawName, id)
		return id, false, nil
	}
	if id, ok := c.byAlias[n]; ok {
		c.mu.Unlock()
		log.Debug("alias match for %q -> %d", rawName, id)
		return id, false, nil
	}

	bestID, bestRatio := c.bestFuzzyMatchLocked(n)

	if bestRatio >= c.threshold {
		c.byName[n] = bestID
		c.names[n] = bestID
		c.mu.Unlock()
		log.Debug("fuzzy match for %q at ratio %.4f -> %d", rawName, bestRatio, bestID)
		return bestID, false, nil
	}
	c.mu.Unlock()

	category := categoryForName(n)
	newID, err := store.CreateMaintenanceItem(ctx, rawName, category)
	if err != nil {
		return 0, false, err
	}
	log.Info("created new maintenance item %q in category %q (best prior ratio %.4f)", rawName, category, bestRatio)

	c.mu.Lock()
	c.byName[n] = newID
	c.names[n] = newID
	c.mu.Unlock()

	return newID, true, nil
}

// bestFuzzyMatchLocked must be called with c.mu held. It returns the id and
// ratio of the catalog entry (by name or alias) closest to n.
func (c *Canonicalizer) bestFuzzyMatchLocked(n string) (id int64, ratio float64) {
	for candidate, candidateID := range c.names {
		r := Ratio(n, candidate)
		if r > ratio {
			ratio = r
			id = candidateID
		}
	}
	return id, ratio
}
