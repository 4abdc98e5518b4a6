package pricing

import (
	"sort"
	"time"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/cache"
)

// Catalog is an immutable snapshot of the pricing reference data. The engine
// swaps whole snapshots on refresh; readers never see a partially loaded
// catalog.
type Catalog struct {
	codes       map[string]CSICode
	prices      map[string]map[string]BaseUnitPrice // csi code -> location key
	factors     map[string]LocationFactor           // location key
	escalations map[string]EscalationIndex          // quarter id
	locations   []string
	loadedAt    time.Time
	skipped     int
}

// BuildCatalog assembles a snapshot from loaded source data. Rows that fail
// validation are skipped and counted rather than failing the whole load.
// Later rows replace earlier ones for the same key.
func BuildCatalog(
	codes []CSICode,
	pricing []LocationPricing,
	escalations []EscalationIndex,
	loadedAt time.Time,
) *Catalog {
	c := &Catalog{
		codes:       make(map[string]CSICode, len(codes)),
		prices:      make(map[string]map[string]BaseUnitPrice),
		factors:     make(map[string]LocationFactor, len(pricing)),
		escalations: make(map[string]EscalationIndex, len(escalations)),
		loadedAt:    loadedAt,
	}

	for _, code := range codes {
		if !validCSICode(code) {
			c.skipped++
			continue
		}
		c.codes[code.Code] = code
	}

	seen := make(map[string]bool, len(pricing))
	for _, lp := range pricing {
		if lp.Location == "" {
			c.skipped++
			continue
		}
		locKey := locationKey(lp.Location)
		if !seen[locKey] {
			seen[locKey] = true
			c.locations = append(c.locations, lp.Location)
		}

		if validFactor(lp.Factor) {
			c.factors[locKey] = lp.Factor
		} else if lp.Factor != (LocationFactor{}) {
			c.skipped++
		}

		for _, price := range lp.Prices {
			if !validPrice(price) {
				c.skipped++
				continue
			}
			byLoc := c.prices[price.CSICode]
			if byLoc == nil {
				byLoc = make(map[string]BaseUnitPrice)
				c.prices[price.CSICode] = byLoc
			}
			byLoc[locKey] = price
		}
	}
	sort.Strings(c.locations)

	for _, idx := range escalations {
		if !ValidQuarter(idx.Quarter) {
			c.skipped++
			continue
		}
		c.escalations[idx.Quarter] = idx
	}

	return c
}

// locationKey canonicalizes a location name so "Seattle, WA" and
// "seattle-wa" resolve to the same entry. The same canonical form is used in
// cache keys.
func locationKey(location string) string {
	return cache.KeyPart(location)
}

func validCSICode(code CSICode) bool {
	if code.Code == "" {
		return false
	}
	return code.Level >= 1 && code.Level <= 3
}

func validPrice(price BaseUnitPrice) bool {
	if price.CSICode == "" || price.Location == "" {
		return false
	}
	if price.LaborCost < 0 || price.MaterialCost < 0 || price.EquipmentCost < 0 {
		return false
	}
	return price.TotalCost > 0
}

func validFactor(factor LocationFactor) bool {
	return factor.LaborFactor > 0 &&
		factor.MaterialFactor > 0 &&
		factor.EquipmentFactor > 0 &&
		factor.TotalFactor > 0
}

// BasePrice returns the base unit price for a code and location.
func (c *Catalog) BasePrice(csiCode, location string) (BaseUnitPrice, bool) {
	byLoc, ok := c.prices[csiCode]
	if !ok {
		return BaseUnitPrice{}, false
	}
	price, ok := byLoc[locationKey(location)]
	return price, ok
}

// Factor returns the location factor for a location.
func (c *Catalog) Factor(location string) (LocationFactor, bool) {
	factor, ok := c.factors[locationKey(location)]
	return factor, ok
}

// Escalation returns the escalation index for a quarter id.
func (c *Catalog) Escalation(quarter string) (EscalationIndex, bool) {
	idx, ok := c.escalations[quarter]
	return idx, ok
}

// Code returns the CSI code metadata for a code.
func (c *Catalog) Code(csiCode string) (CSICode, bool) {
	code, ok := c.codes[csiCode]
	return code, ok
}

// CodeCount returns the number of CSI codes in the snapshot.
func (c *Catalog) CodeCount() int { return len(c.codes) }

// LocationCount returns the number of locations in the snapshot.
func (c *Catalog) LocationCount() int { return len(c.locations) }

// EscalationCount returns the number of escalation indices in the snapshot.
func (c *Catalog) EscalationCount() int { return len(c.escalations) }

// Locations returns the location display names, sorted.
func (c *Catalog) Locations() []string {
	out := make([]string, len(c.locations))
	copy(out, c.locations)
	return out
}

// Factors returns every location factor in the snapshot.
func (c *Catalog) Factors() []LocationFactor {
	out := make([]LocationFactor, 0, len(c.factors))
	for _, factor := range c.factors {
		out = append(out, factor)
	}
	return out
}

// Escalations returns every escalation index in the snapshot.
func (c *Catalog) Escalations() []EscalationIndex {
	out := make([]EscalationIndex, 0, len(c.escalations))
	for _, idx := range c.escalations {
		out = append(out, idx)
	}
	return out
}

// LoadedAt returns when the snapshot was loaded from its source.
func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }

// SkippedRows returns how many source rows failed validation.
func (c *Catalog) SkippedRows() int { return c.skipped }
