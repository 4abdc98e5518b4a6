package pricing

import (
	"math"
	"testing"
	"time"
)

// concreteBase is the running scenario used across calculator tests:
// cast-in-place concrete in Seattle at $180.75/CY total.
func concreteBase(lastUpdated time.Time) BaseUnitPrice {
	return BaseUnitPrice{
		CSICode:       "03300",
		Location:      "Seattle, WA",
		LaborCost:     65.50,
		MaterialCost:  98.25,
		EquipmentCost: 17.00,
		TotalCost:     180.75,
		Unit:          "CY",
		EffectiveDate: lastUpdated.AddDate(0, -1, 0),
		LastUpdated:   lastUpdated,
	}
}

func seattleFactor() LocationFactor {
	return LocationFactor{
		Location:        "Seattle, WA",
		LaborFactor:     1.25,
		MaterialFactor:  1.12,
		EquipmentFactor: 1.08,
		TotalFactor:     1.18,
		CostIndex:       118.0,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestLocationAdjustment verifies the location stage scales each component by
// its own factor and the total by the aggregate factor.
func TestLocationAdjustment(t *testing.T) {
	calculator := NewCalculator()

	base := concreteBase(time.Now())
	factor := seattleFactor()

	// Expected:
	// Labor     = 65.50 × 1.25 = 81.875
	// Material  = 98.25 × 1.12 = 110.04
	// Equipment = 17.00 × 1.08 = 18.36
	// Total     = 180.75 × 1.18 = 213.285
	//
	// The total uses the published aggregate factor, so it is NOT the sum of
	// the adjusted components (81.875 + 110.04 + 18.36 = 210.275).
	adjusted := calculator.ApplyLocationFactor(base.Breakdown(), factor)

	t.Logf("Labor: $%.3f, Material: $%.3f, Equipment: $%.3f, Total: $%.3f",
		adjusted.Labor, adjusted.Material, adjusted.Equipment, adjusted.Total)

	if !almostEqual(adjusted.Labor, 81.875) {
		t.Errorf("Labor = %.6f, want 81.875", adjusted.Labor)
	}
	if !almostEqual(adjusted.Material, 110.04) {
		t.Errorf("Material = %.6f, want 110.04", adjusted.Material)
	}
	if !almostEqual(adjusted.Equipment, 18.36) {
		t.Errorf("Equipment = %.6f, want 18.36", adjusted.Equipment)
	}
	if !almostEqual(adjusted.Total, 213.285) {
		t.Errorf("Total = %.6f, want 213.285", adjusted.Total)
	}

	componentSum := adjusted.Labor + adjusted.Material + adjusted.Equipment
	if almostEqual(adjusted.Total, componentSum) {
		t.Errorf("Total %.6f should track the aggregate factor, not the component sum %.6f",
			adjusted.Total, componentSum)
	}
}

// TestEscalationAdjustment verifies each escalation percentage applies as a
// (1 + pct/100) multiplier.
func TestEscalationAdjustment(t *testing.T) {
	calculator := NewCalculator()

	costs := CostBreakdown{Labor: 100.0, Material: 200.0, Equipment: 50.0, Total: 350.0}
	index := EscalationIndex{
		Quarter:      "2026-Q3",
		LaborPct:     3.2,
		MaterialPct:  4.1,
		EquipmentPct: 2.0,
		OverallPct:   3.5,
	}

	// Expected:
	// Labor     = 100 × 1.032 = 103.20
	// Material  = 200 × 1.041 = 208.20
	// Equipment = 50 × 1.020  = 51.00
	// Total     = 350 × 1.035 = 362.25
	escalated := calculator.ApplyEscalation(costs, index)

	if !almostEqual(escalated.Labor, 103.2) {
		t.Errorf("Labor = %.6f, want 103.2", escalated.Labor)
	}
	if !almostEqual(escalated.Material, 208.2) {
		t.Errorf("Material = %.6f, want 208.2", escalated.Material)
	}
	if !almostEqual(escalated.Equipment, 51.0) {
		t.Errorf("Equipment = %.6f, want 51.0", escalated.Equipment)
	}
	if !almostEqual(escalated.Total, 362.25) {
		t.Errorf("Total = %.6f, want 362.25", escalated.Total)
	}
}

// TestEscalationDeflation verifies negative percentages reduce prices.
func TestEscalationDeflation(t *testing.T) {
	calculator := NewCalculator()

	costs := CostBreakdown{Labor: 100.0, Material: 100.0, Equipment: 100.0, Total: 300.0}
	index := EscalationIndex{Quarter: "2026-Q1", LaborPct: -2.0, MaterialPct: -5.0, EquipmentPct: 0, OverallPct: -3.0}

	escalated := calculator.ApplyEscalation(costs, index)

	if !almostEqual(escalated.Labor, 98.0) {
		t.Errorf("Labor = %.6f, want 98.0", escalated.Labor)
	}
	if !almostEqual(escalated.Material, 95.0) {
		t.Errorf("Material = %.6f, want 95.0", escalated.Material)
	}
	if !almostEqual(escalated.Total, 291.0) {
		t.Errorf("Total = %.6f, want 291.0", escalated.Total)
	}
	t.Logf("✓ -3.0%% overall: $300.00 -> $%.2f", escalated.Total)
}

// TestCalculateLocationOnly runs the pipeline with location factors but no
// escalation and checks the extension math end to end.
func TestCalculateLocationOnly(t *testing.T) {
	calculator := NewCalculator()

	base := concreteBase(time.Now())
	factor := seattleFactor()

	comp := calculator.Calculate(base, &factor, nil, 10.0, time.Now())

	// Expected:
	// Unit price     = 180.75 × 1.18 = 213.285
	// Extended price = 213.285 × 10  = 2132.85
	t.Logf("Unit: $%.3f, Extended: $%.2f", comp.UnitPrice, comp.ExtendedPrice)

	if !almostEqual(comp.UnitPrice, 213.285) {
		t.Errorf("UnitPrice = %.6f, want 213.285", comp.UnitPrice)
	}
	if !almostEqual(comp.ExtendedPrice, 2132.85) {
		t.Errorf("ExtendedPrice = %.6f, want 2132.85", comp.ExtendedPrice)
	}
	if comp.EscalationAdjusted != comp.LocationAdjusted {
		t.Error("EscalationAdjusted should pass through unchanged when the stage is skipped")
	}
}

// TestCalculateFullPipeline runs base, location and escalation together.
func TestCalculateFullPipeline(t *testing.T) {
	calculator := NewCalculator()

	base := concreteBase(time.Now())
	factor := seattleFactor()
	index := EscalationIndex{
		Quarter:       "2026-Q3",
		LaborPct:      3.2,
		MaterialPct:   4.1,
		EquipmentPct:  2.0,
		OverallPct:    3.5,
		PublishedDate: time.Now().AddDate(0, 0, -10),
	}

	comp := calculator.Calculate(base, &factor, &index, 10.0, time.Now())

	// Expected:
	// Location total   = 180.75 × 1.18  = 213.285
	// Escalated total  = 213.285 × 1.035 = 220.749975
	// Extended         = 220.749975 × 10 = 2207.49975
	if !almostEqual(comp.LocationAdjusted.Total, 213.285) {
		t.Errorf("location stage total = %.6f, want 213.285", comp.LocationAdjusted.Total)
	}
	if !almostEqual(comp.EscalationAdjusted.Total, 220.749975) {
		t.Errorf("escalation stage total = %.6f, want 220.749975", comp.EscalationAdjusted.Total)
	}
	if !almostEqual(comp.UnitPrice, 220.749975) {
		t.Errorf("UnitPrice = %.6f, want 220.749975", comp.UnitPrice)
	}
	if !almostEqual(comp.ExtendedPrice, 2207.49975) {
		t.Errorf("ExtendedPrice = %.6f, want 2207.49975", comp.ExtendedPrice)
	}

	t.Logf("✓ $180.75 -> x1.18 -> $%.3f -> +3.5%% -> $%.6f -> x10 -> $%.5f",
		comp.LocationAdjusted.Total, comp.UnitPrice, comp.ExtendedPrice)
}

// TestCalculateBaseOnly verifies both stages pass through when skipped.
func TestCalculateBaseOnly(t *testing.T) {
	calculator := NewCalculator()

	base := concreteBase(time.Now())
	comp := calculator.Calculate(base, nil, nil, 2.5, time.Now())

	if comp.LocationAdjusted != base.Breakdown() {
		t.Error("LocationAdjusted should equal the base breakdown when skipped")
	}
	if !almostEqual(comp.UnitPrice, 180.75) {
		t.Errorf("UnitPrice = %.6f, want 180.75", comp.UnitPrice)
	}
	if !almostEqual(comp.ExtendedPrice, 451.875) {
		t.Errorf("ExtendedPrice = %.6f, want 451.875 (180.75 x 2.5)", comp.ExtendedPrice)
	}
}

// TestConfidenceScoring walks the staleness and coverage adjustments.
func TestConfidenceScoring(t *testing.T) {
	calculator := NewCalculator()
	now := time.Now()

	recentIndex := &EscalationIndex{Quarter: "2026-Q2", PublishedDate: now.AddDate(0, 0, -10)}
	staleIndex := &EscalationIndex{Quarter: "2025-Q4", PublishedDate: now.AddDate(0, 0, -120)}

	tests := []struct {
		name            string
		baseAge         time.Duration
		locationApplied bool
		escalation      *EscalationIndex
		expected        float64
	}{
		{
			name:     "fresh base, no adjustments",
			baseAge:  5 * 24 * time.Hour,
			expected: 0.8,
		},
		{
			name:            "fresh base, both adjustments recent",
			baseAge:         5 * 24 * time.Hour,
			locationApplied: true,
			escalation:      recentIndex,
			expected:        1.0,
		},
		{
			name:     "base a month and a half old",
			baseAge:  45 * 24 * time.Hour,
			expected: 0.7,
		},
		{
			name:     "base four months old",
			baseAge:  120 * 24 * time.Hour,
			expected: 0.5,
		},
		{
			name:            "stale base recovered by adjustments",
			baseAge:         120 * 24 * time.Hour,
			locationApplied: true,
			escalation:      recentIndex,
			expected:        0.7,
		},
		{
			name:            "old escalation index earns no bonus",
			baseAge:         5 * 24 * time.Hour,
			locationApplied: true,
			escalation:      staleIndex,
			expected:        0.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := concreteBase(now.Add(-tt.baseAge))
			score := calculator.Confidence(base, tt.locationApplied, tt.escalation, now)

			if !almostEqual(score, tt.expected) {
				t.Errorf("Confidence = %.3f, want %.3f", score, tt.expected)
			}
			if score < 0 || score > 1 {
				t.Errorf("Confidence %.3f outside [0, 1]", score)
			}
			t.Logf("✓ %s: %.2f", tt.name, score)
		})
	}
}

// TestConfidenceBounds checks the clamp holds at the extremes.
func TestConfidenceBounds(t *testing.T) {
	calculator := NewCalculator()
	now := time.Now()

	// Maximum coverage: fresh data everywhere.
	high := calculator.Confidence(concreteBase(now), true, &EscalationIndex{PublishedDate: now}, now)
	if high > 1.0 {
		t.Errorf("Confidence %.3f exceeds 1.0", high)
	}

	// Minimum coverage: ancient base, nothing applied.
	low := calculator.Confidence(concreteBase(now.AddDate(-3, 0, 0)), false, nil, now)
	if low < 0 {
		t.Errorf("Confidence %.3f below 0", low)
	}
	if !almostEqual(low, 0.5) {
		t.Errorf("Confidence = %.3f, want 0.5 for a stale base with no adjustments", low)
	}
}
