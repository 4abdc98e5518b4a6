package pricing

import (
	"math"
	"time"
)

// Calculator applies the pricing pipeline stages to a resolved base price
type Calculator struct {
	// No state needed for calculator - pure functions
}

// NewCalculator creates a new pricing calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Computation holds the output of every pipeline stage for one query
type Computation struct {
	LocationAdjusted   CostBreakdown
	EscalationAdjusted CostBreakdown
	UnitPrice          float64
	ExtendedPrice      float64
	Confidence         float64
}

// Calculate runs the full pipeline: base price, then location factors, then
// escalation, then quantity extension. A nil factor or escalation means the
// stage is skipped and the costs pass through unchanged.
func (c *Calculator) Calculate(
	base BaseUnitPrice,
	factor *LocationFactor,
	escalation *EscalationIndex,
	quantity float64,
	now time.Time,
) Computation {
	comp := Computation{}

	// Stage 1: location adjustment
	// Each component is scaled by its own factor. The total is scaled by the
	// published aggregate factor, NOT recomputed from the scaled components:
	// the aggregate reflects the real cost-weighted mix for the location.
	costs := base.Breakdown()
	if factor != nil {
		costs = c.ApplyLocationFactor(costs, *factor)
	}
	comp.LocationAdjusted = costs

	// Stage 2: escalation
	// Each percentage applies multiplicatively as (1 + pct/100). Negative
	// percentages (deflation) reduce the price the same way.
	if escalation != nil {
		costs = c.ApplyEscalation(costs, *escalation)
	}
	comp.EscalationAdjusted = costs

	// Stage 3: extension
	// Unit price is the final adjusted total; extended price scales it by
	// the queried quantity.
	comp.UnitPrice = costs.Total
	comp.ExtendedPrice = costs.Total * quantity

	comp.Confidence = c.Confidence(base, factor != nil, escalation, now)
	return comp
}

// ApplyLocationFactor scales a cost breakdown by a location's factors
func (c *Calculator) ApplyLocationFactor(costs CostBreakdown, factor LocationFactor) CostBreakdown {
	return CostBreakdown{
		Labor:     costs.Labor * factor.LaborFactor,
		Material:  costs.Material * factor.MaterialFactor,
		Equipment: costs.Equipment * factor.EquipmentFactor,
		Total:     costs.Total * factor.TotalFactor,
	}
}

// ApplyEscalation adjusts a cost breakdown by a quarter's escalation
// percentages
func (c *Calculator) ApplyEscalation(costs CostBreakdown, index EscalationIndex) CostBreakdown {
	return CostBreakdown{
		Labor:     costs.Labor * (1 + index.LaborPct/100),
		Material:  costs.Material * (1 + index.MaterialPct/100),
		Equipment: costs.Equipment * (1 + index.EquipmentPct/100),
		Total:     costs.Total * (1 + index.OverallPct/100),
	}
}

// Confidence scores how current and complete the inputs to a result were.
// The score starts at 0.8 and moves with data staleness and stage coverage:
//
//	base price updated > 90 days ago:  -0.3
//	base price updated > 30 days ago:  -0.1
//	location factor applied:           +0.1
//	escalation applied and the index
//	published within 30 days:          +0.1
//
// The result is clamped to [0, 1].
func (c *Calculator) Confidence(
	base BaseUnitPrice,
	locationApplied bool,
	escalation *EscalationIndex,
	now time.Time,
) float64 {
	score := 0.8

	age := now.Sub(base.LastUpdated)
	switch {
	case age > 90*24*time.Hour:
		score -= 0.3
	case age > 30*24*time.Hour:
		score -= 0.1
	}

	if locationApplied {
		score += 0.1
	}

	if escalation != nil && now.Sub(escalation.PublishedDate) <= 30*24*time.Hour {
		score += 0.1
	}

	return math.Max(0, math.Min(1, score))
}
