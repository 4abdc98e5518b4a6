package pricing

import (
	"fmt"
	"strings"
)

// FormatCompactOutput returns a single-line summary for logging
// Useful for compact log output or monitoring dashboards
func (r *PricingResult) FormatCompactOutput() string {
	source := "computed"
	if r.CacheHit {
		source = "cached"
	}
	return fmt.Sprintf("[%s] %s: %.2f %s @ $%.2f = $%.2f (conf %.2f, %s)",
		r.Query.CSICode,
		r.Query.Location,
		r.Query.Quantity,
		r.Query.Unit,
		r.UnitPrice,
		r.ExtendedPrice,
		r.Confidence,
		source,
	)
}

// FormatItemized returns a multi-line breakdown showing every pipeline stage.
// Intended for estimate review output.
func (r *PricingResult) FormatItemized() string {
	var b strings.Builder

	header := r.Query.CSICode
	if r.Division != "" {
		header += " (" + r.Division + ")"
	}
	fmt.Fprintf(&b, "%s in %s\n", header, r.Query.Location)
	fmt.Fprintf(&b, "  Base:       %s\n", formatBreakdown(r.BasePrice.Breakdown(), r.Query.Unit))

	if r.AppliedLocationFactor != nil {
		fmt.Fprintf(&b, "  Location:   %s  (x%.3f total)\n",
			formatBreakdown(r.LocationAdjusted, r.Query.Unit),
			r.AppliedLocationFactor.TotalFactor)
	}
	if r.AppliedEscalation != nil {
		fmt.Fprintf(&b, "  Escalation: %s  (%s, %+.1f%%)\n",
			formatBreakdown(r.EscalationAdjusted, r.Query.Unit),
			r.AppliedEscalation.Quarter,
			r.AppliedEscalation.OverallPct)
	}

	fmt.Fprintf(&b, "  Extended:   %.2f %s x $%.2f = $%.2f\n",
		r.Query.Quantity, r.Query.Unit, r.UnitPrice, r.ExtendedPrice)
	fmt.Fprintf(&b, "  Confidence: %.2f", r.Confidence)
	return b.String()
}

func formatBreakdown(costs CostBreakdown, unit string) string {
	return fmt.Sprintf("L $%.2f | M $%.2f | E $%.2f | Total $%.2f/%s",
		costs.Labor, costs.Material, costs.Equipment, costs.Total, unit)
}
