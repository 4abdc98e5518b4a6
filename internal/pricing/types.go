package pricing

import (
	"context"
	"time"
)

// CSICode is a hierarchical construction classification code.
// Immutable reference data.
type CSICode struct {
	// Code is the classification code, e.g. "03300"
	Code string `json:"code"`
	// Level is the hierarchy depth: 1 = division, 2 = section, 3 = work result
	Level int `json:"level"`
	// Title is the short name, e.g. "Cast-in-Place Concrete"
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	// ParentCode is the code one level up, empty for divisions
	ParentCode string `json:"parent_code,omitempty"`
}

// BaseUnitPrice is the baseline cost of one unit of work for a CSI code in a
// location, broken into labor, material and equipment. One current record
// exists per (code, location).
type BaseUnitPrice struct {
	CSICode       string    `json:"csi_code"`
	Location      string    `json:"location"`
	LaborCost     float64   `json:"labor_cost"`
	MaterialCost  float64   `json:"material_cost"`
	EquipmentCost float64   `json:"equipment_cost"`
	TotalCost     float64   `json:"total_cost"`
	Unit          string    `json:"unit"`
	EffectiveDate time.Time `json:"effective_date"`
	LastUpdated   time.Time `json:"last_updated"`
}

// Breakdown returns the price as a cost breakdown.
func (b BaseUnitPrice) Breakdown() CostBreakdown {
	return CostBreakdown{
		Labor:     b.LaborCost,
		Material:  b.MaterialCost,
		Equipment: b.EquipmentCost,
		Total:     b.TotalCost,
	}
}

// LocationFactor holds the multiplicative cost adjustments for a location.
// A factor of 1.0 is the national baseline; CostIndex expresses the same
// thing on a 100-based scale.
type LocationFactor struct {
	Location        string  `json:"location"`
	LaborFactor     float64 `json:"labor_factor"`
	MaterialFactor  float64 `json:"material_factor"`
	EquipmentFactor float64 `json:"equipment_factor"`
	// TotalFactor is the aggregate factor applied to the total. It is
	// published independently of the sub-factors and is not required to be
	// their blend.
	TotalFactor float64 `json:"total_factor"`
	CostIndex   float64 `json:"cost_index"`
}

// EscalationIndex holds the quarterly cost escalation percentages. Applied
// multiplicatively as (1 + pct/100) after location adjustment.
type EscalationIndex struct {
	// Quarter is the literal quarter id, e.g. "2026-Q1"
	Quarter       string    `json:"quarter"`
	LaborPct      float64   `json:"labor_pct"`
	MaterialPct   float64   `json:"material_pct"`
	EquipmentPct  float64   `json:"equipment_pct"`
	OverallPct    float64   `json:"overall_pct"`
	BaseIndex     float64   `json:"base_index"`
	PublishedDate time.Time `json:"published_date"`
}

// PricingQuery describes one price lookup. Zero-value include flags mean
// "skip"; use NewPricingQuery for the default behavior of applying both
// adjustments.
type PricingQuery struct {
	CSICode  string  `json:"csi_code"`
	Location string  `json:"location"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	// TargetQuarter selects the escalation quarter, e.g. "2026-Q3".
	// Empty means the current calendar quarter.
	TargetQuarter          string `json:"target_quarter,omitempty"`
	IncludeLocationFactors bool   `json:"include_location_factors"`
	IncludeEscalation      bool   `json:"include_escalation"`
}

// NewPricingQuery builds a query with both adjustments enabled.
func NewPricingQuery(csiCode, location string, quantity float64, unit string) PricingQuery {
	return PricingQuery{
		CSICode:                csiCode,
		Location:               location,
		Quantity:               quantity,
		Unit:                   unit,
		IncludeLocationFactors: true,
		IncludeEscalation:      true,
	}
}

// CostBreakdown itemizes a price into labor, material, equipment and total.
// Total is carried independently of the components; after adjustment stages
// it scales by the aggregate factor, not by re-summing.
type CostBreakdown struct {
	Labor     float64 `json:"labor"`
	Material  float64 `json:"material"`
	Equipment float64 `json:"equipment"`
	Total     float64 `json:"total"`
}

// PricingResult is a fully itemized lookup result: the resolved base price,
// each adjustment stage, and the final prices.
type PricingResult struct {
	Query     PricingQuery  `json:"query"`
	BasePrice BaseUnitPrice `json:"base_price"`
	// Division is the CSI division title for the queried code, when known.
	Division string `json:"division,omitempty"`

	// LocationAdjusted is the base price after location factors. When no
	// factor was applied it equals the base breakdown.
	LocationAdjusted CostBreakdown `json:"location_adjusted"`
	// EscalationAdjusted is the location-adjusted price after escalation.
	// When no escalation was applied it equals LocationAdjusted.
	EscalationAdjusted CostBreakdown `json:"escalation_adjusted"`

	// UnitPrice is the final per-unit price: the escalation-adjusted total.
	UnitPrice float64 `json:"unit_price"`
	// ExtendedPrice is UnitPrice multiplied by the queried quantity.
	ExtendedPrice float64 `json:"extended_price"`

	// AppliedLocationFactor is set only when the location stage ran.
	AppliedLocationFactor *LocationFactor `json:"applied_location_factor,omitempty"`
	// AppliedEscalation is set only when the escalation stage ran.
	AppliedEscalation *EscalationIndex `json:"applied_escalation,omitempty"`

	// Confidence is a staleness and coverage heuristic in [0,1]. It is not
	// a probability; it ranks results by how current and complete the
	// underlying data was.
	Confidence float64 `json:"confidence"`

	CacheHit     bool          `json:"cache_hit"`
	QueryTime    time.Duration `json:"query_time"`
	CalculatedAt time.Time     `json:"calculated_at"`
}

// LocationPricing bundles everything the catalog holds for one location:
// its base unit prices and its adjustment factor.
type LocationPricing struct {
	Location string          `json:"location"`
	Prices   []BaseUnitPrice `json:"prices"`
	Factor   LocationFactor  `json:"factor"`
}

// CatalogSource loads pricing reference data from a backing store. Sources
// are read at initialization and refresh, never on the lookup path.
type CatalogSource interface {
	// Name identifies the source in logs and health reporting.
	Name() string

	LoadCSICodes(ctx context.Context) ([]CSICode, error)
	LoadBaselinePricing(ctx context.Context) ([]LocationPricing, error)
	LoadEscalationIndices(ctx context.Context) ([]EscalationIndex, error)
}

// RefreshEvent describes one completed catalog refresh.
type RefreshEvent struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	CSICodes    int           `json:"csi_codes"`
	Locations   int           `json:"locations"`
	Escalations int           `json:"escalations"`
	SkippedRows int           `json:"skipped_rows"`
	Duration    time.Duration `json:"duration"`
	CompletedAt time.Time     `json:"completed_at"`
}

// RefreshNotifier publishes refresh events to downstream consumers.
type RefreshNotifier interface {
	NotifyRefresh(ctx context.Context, event RefreshEvent) error
}

// Stats reports the engine's catalog and lifecycle state.
type Stats struct {
	CSICodeCount    int       `json:"csi_code_count"`
	LocationCount   int       `json:"location_count"`
	EscalationCount int       `json:"escalation_count"`
	LastSync        time.Time `json:"last_sync"`
	Initialized     bool      `json:"initialized"`
}
