package catalog

import (
	"context"
	"time"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/pricing"
)

// StaticSource serves the built-in seed catalog. It backs local development
// and tests, and acts as the fallback when no external source is configured.
type StaticSource struct {
	health *healthTracker
}

// NewStaticSource creates a catalog source backed by the built-in seed data.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		health: newHealthTracker("static"),
	}
}

// Name returns the source identifier.
func (s *StaticSource) Name() string {
	return "static"
}

// LoadCSICodes returns the seed CSI code hierarchy.
func (s *StaticSource) LoadCSICodes(ctx context.Context) ([]pricing.CSICode, error) {
	start := time.Now()
	codes := staticCSICodes()
	s.health.record(nil, time.Since(start))
	return codes, nil
}

// LoadBaselinePricing returns the seed per-location pricing and factors.
func (s *StaticSource) LoadBaselinePricing(ctx context.Context) ([]pricing.LocationPricing, error) {
	start := time.Now()
	locations := staticPricing()
	s.health.record(nil, time.Since(start))
	return locations, nil
}

// LoadEscalationIndices returns the seed national escalation indices.
func (s *StaticSource) LoadEscalationIndices(ctx context.Context) ([]pricing.EscalationIndex, error) {
	start := time.Now()
	indices := staticEscalations()
	s.health.record(nil, time.Since(start))
	return indices, nil
}

// Health reports the source health. Seed loads cannot fail, so this only
// reflects whether the source has been used yet.
func (s *StaticSource) Health() SourceHealth {
	return s.health.snapshot()
}

// Seed vintage. Baseline rows carry a fixed effective date so repeated loads
// produce identical catalogs.
var (
	seedEffectiveDate = time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	seedLastUpdated   = time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
)

func seedPrice(csiCode, location, unit string, labor, material, equipment float64) pricing.BaseUnitPrice {
	return pricing.BaseUnitPrice{
		CSICode:       csiCode,
		Location:      location,
		LaborCost:     labor,
		MaterialCost:  material,
		EquipmentCost: equipment,
		TotalCost:     labor + material + equipment,
		Unit:          unit,
		EffectiveDate: seedEffectiveDate,
		LastUpdated:   seedLastUpdated,
	}
}

func staticCSICodes() []pricing.CSICode {
	return []pricing.CSICode{
		{Code: "02", Level: 1, Title: "Site Construction"},
		{Code: "02300", Level: 3, Title: "Earthwork", ParentCode: "02"},
		{Code: "03", Level: 1, Title: "Concrete"},
		{Code: "03100", Level: 3, Title: "Concrete Forms and Accessories", ParentCode: "03"},
		{Code: "03200", Level: 3, Title: "Concrete Reinforcement", ParentCode: "03"},
		{Code: "03300", Level: 3, Title: "Cast-in-Place Concrete", ParentCode: "03"},
		{Code: "04", Level: 1, Title: "Masonry"},
		{Code: "04200", Level: 3, Title: "Masonry Units", ParentCode: "04"},
		{Code: "05", Level: 1, Title: "Metals"},
		{Code: "05100", Level: 3, Title: "Structural Metal Framing", ParentCode: "05"},
		{Code: "06", Level: 1, Title: "Wood and Plastics"},
		{Code: "06100", Level: 3, Title: "Rough Carpentry", ParentCode: "06"},
		{Code: "07", Level: 1, Title: "Thermal and Moisture Protection"},
		{Code: "07500", Level: 3, Title: "Membrane Roofing", ParentCode: "07"},
		{Code: "09", Level: 1, Title: "Finishes"},
		{Code: "09900", Level: 3, Title: "Paints and Coatings", ParentCode: "09"},
		{Code: "15", Level: 1, Title: "Mechanical"},
		{Code: "15400", Level: 3, Title: "Plumbing", ParentCode: "15"},
		{Code: "16", Level: 1, Title: "Electrical"},
		{Code: "16500", Level: 3, Title: "Lighting", ParentCode: "16"},
	}
}

func staticPricing() []pricing.LocationPricing {
	return []pricing.LocationPricing{
		{
			Location: "National Average",
			Factor: pricing.LocationFactor{
				Location:        "National Average",
				LaborFactor:     1.00,
				MaterialFactor:  1.00,
				EquipmentFactor: 1.00,
				TotalFactor:     1.00,
				CostIndex:       100,
			},
			Prices: []pricing.BaseUnitPrice{
				seedPrice("02300", "National Average", "CY", 7.60, 1.90, 6.00),
				seedPrice("03100", "National Average", "SF", 4.30, 1.80, 0.40),
				seedPrice("03200", "National Average", "LB", 0.38, 0.57, 0.05),
				seedPrice("03300", "National Average", "CY", 58.00, 89.00, 15.50),
				seedPrice("04200", "National Average", "SF", 7.00, 6.40, 0.80),
				seedPrice("05100", "National Average", "LB", 0.85, 1.70, 0.30),
				seedPrice("06100", "National Average", "SF", 2.40, 2.85, 0.25),
				seedPrice("07500", "National Average", "SF", 2.90, 3.85, 0.35),
				seedPrice("09900", "National Average", "SF", 0.88, 0.50, 0.07),
				seedPrice("15400", "National Average", "EA", 285.00, 370.00, 30.00),
				seedPrice("16500", "National Average", "EA", 78.00, 130.00, 12.00),
			},
		},
		{
			Location: "Seattle, WA",
			Factor: pricing.LocationFactor{
				Location:        "Seattle, WA",
				LaborFactor:     1.25,
				MaterialFactor:  1.12,
				EquipmentFactor: 1.08,
				TotalFactor:     1.18,
				CostIndex:       118,
			},
			Prices: []pricing.BaseUnitPrice{
				seedPrice("02300", "Seattle, WA", "CY", 8.40, 2.10, 6.75),
				seedPrice("03100", "Seattle, WA", "SF", 4.85, 1.95, 0.45),
				seedPrice("03200", "Seattle, WA", "LB", 0.42, 0.61, 0.07),
				seedPrice("03300", "Seattle, WA", "CY", 65.50, 98.25, 17.00),
				seedPrice("04200", "Seattle, WA", "SF", 7.80, 6.95, 0.85),
				seedPrice("05100", "Seattle, WA", "LB", 0.95, 1.82, 0.33),
				seedPrice("06100", "Seattle, WA", "SF", 2.65, 3.10, 0.25),
				seedPrice("07500", "Seattle, WA", "SF", 3.15, 4.20, 0.40),
				seedPrice("09900", "Seattle, WA", "SF", 0.98, 0.54, 0.08),
				seedPrice("15400", "Seattle, WA", "EA", 310.00, 405.00, 35.00),
				seedPrice("16500", "Seattle, WA", "EA", 85.00, 142.50, 12.50),
			},
		},
		{
			Location: "Boise, ID",
			Factor: pricing.LocationFactor{
				Location:        "Boise, ID",
				LaborFactor:     0.92,
				MaterialFactor:  0.96,
				EquipmentFactor: 0.98,
				TotalFactor:     0.95,
				CostIndex:       95,
			},
			Prices: []pricing.BaseUnitPrice{
				seedPrice("02300", "Boise, ID", "CY", 6.90, 1.80, 5.55),
				seedPrice("03100", "Boise, ID", "SF", 3.95, 1.70, 0.35),
				seedPrice("03300", "Boise, ID", "CY", 52.25, 84.10, 14.65),
				seedPrice("06100", "Boise, ID", "SF", 2.20, 2.68, 0.22),
				seedPrice("09900", "Boise, ID", "SF", 0.80, 0.47, 0.08),
				seedPrice("15400", "Boise, ID", "EA", 262.00, 345.00, 28.00),
			},
		},
		{
			Location: "Austin, TX",
			Factor: pricing.LocationFactor{
				Location:        "Austin, TX",
				LaborFactor:     0.95,
				MaterialFactor:  1.00,
				EquipmentFactor: 0.99,
				TotalFactor:     0.98,
				CostIndex:       98,
			},
			Prices: []pricing.BaseUnitPrice{
				seedPrice("03200", "Austin, TX", "LB", 0.36, 0.54, 0.05),
				seedPrice("03300", "Austin, TX", "CY", 55.10, 86.75, 15.15),
				seedPrice("04200", "Austin, TX", "SF", 6.70, 6.20, 0.75),
				seedPrice("07500", "Austin, TX", "SF", 2.75, 3.70, 0.35),
				seedPrice("09900", "Austin, TX", "SF", 0.84, 0.48, 0.08),
				seedPrice("16500", "Austin, TX", "EA", 74.00, 124.00, 12.00),
			},
		},
		{
			Location: "New York, NY",
			Factor: pricing.LocationFactor{
				Location:        "New York, NY",
				LaborFactor:     1.52,
				MaterialFactor:  1.28,
				EquipmentFactor: 1.22,
				TotalFactor:     1.35,
				CostIndex:       135,
			},
			Prices: []pricing.BaseUnitPrice{
				seedPrice("03100", "New York, NY", "SF", 6.55, 2.45, 0.55),
				seedPrice("03300", "New York, NY", "CY", 88.40, 114.20, 20.65),
				seedPrice("05100", "New York, NY", "LB", 1.30, 2.10, 0.40),
				seedPrice("07500", "New York, NY", "SF", 4.25, 5.10, 0.50),
				seedPrice("09900", "New York, NY", "SF", 1.35, 0.65, 0.10),
				seedPrice("15400", "New York, NY", "EA", 425.00, 495.00, 45.00),
			},
		},
	}
}

func staticEscalations() []pricing.EscalationIndex {
	return []pricing.EscalationIndex{
		{
			Quarter:       "2025-Q3",
			LaborPct:      2.1,
			MaterialPct:   3.4,
			EquipmentPct:  1.2,
			OverallPct:    2.6,
			BaseIndex:     312.4,
			PublishedDate: time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			Quarter:       "2025-Q4",
			LaborPct:      2.3,
			MaterialPct:   3.1,
			EquipmentPct:  1.4,
			OverallPct:    2.7,
			BaseIndex:     314.9,
			PublishedDate: time.Date(2025, time.October, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			Quarter:       "2026-Q1",
			LaborPct:      2.6,
			MaterialPct:   2.8,
			EquipmentPct:  1.5,
			OverallPct:    2.7,
			BaseIndex:     317.2,
			PublishedDate: time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			Quarter:       "2026-Q2",
			LaborPct:      2.9,
			MaterialPct:   2.5,
			EquipmentPct:  1.6,
			OverallPct:    2.6,
			BaseIndex:     319.8,
			PublishedDate: time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			Quarter:       "2026-Q3",
			LaborPct:      3.1,
			MaterialPct:   2.2,
			EquipmentPct:  1.7,
			OverallPct:    2.5,
			BaseIndex:     322.1,
			PublishedDate: time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC),
		},
		// Forward quarters are forecasts published with the 2026-Q3 release.
		{
			Quarter:       "2026-Q4",
			LaborPct:      3.2,
			MaterialPct:   2.0,
			EquipmentPct:  1.8,
			OverallPct:    2.4,
			BaseIndex:     324.3,
			PublishedDate: time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			Quarter:       "2027-Q1",
			LaborPct:      3.0,
			MaterialPct:   1.9,
			EquipmentPct:  1.8,
			OverallPct:    2.3,
			BaseIndex:     326.6,
			PublishedDate: time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC),
		},
	}
}
