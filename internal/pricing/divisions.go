package pricing

import (
	"fmt"
	"strings"
)

// DivisionInfo contains metadata for a CSI MasterFormat division
type DivisionInfo struct {
	Number string // Two-digit division number ("03")
	Title  string // Division title ("Concrete")
}

// DivisionRegistry maps two-digit division numbers to their metadata.
// This is a hardcoded registry of the sixteen classic MasterFormat divisions.
var DivisionRegistry = map[string]DivisionInfo{
	"01": {Number: "01", Title: "General Requirements"},
	"02": {Number: "02", Title: "Site Construction"},
	"03": {Number: "03", Title: "Concrete"},
	"04": {Number: "04", Title: "Masonry"},
	"05": {Number: "05", Title: "Metals"},
	"06": {Number: "06", Title: "Wood and Plastics"},
	"07": {Number: "07", Title: "Thermal and Moisture Protection"},
	"08": {Number: "08", Title: "Doors and Windows"},
	"09": {Number: "09", Title: "Finishes"},
	"10": {Number: "10", Title: "Specialties"},
	"11": {Number: "11", Title: "Equipment"},
	"12": {Number: "12", Title: "Furnishings"},
	"13": {Number: "13", Title: "Special Construction"},
	"14": {Number: "14", Title: "Conveying Systems"},
	"15": {Number: "15", Title: "Mechanical"},
	"16": {Number: "16", Title: "Electrical"},
}

// DivisionFor returns the division metadata for a CSI code.
// Example: DivisionFor("03300") returns the Concrete division.
func DivisionFor(csiCode string) (DivisionInfo, bool) {
	code := strings.TrimSpace(csiCode)
	if len(code) < 2 {
		return DivisionInfo{}, false
	}
	info, ok := DivisionRegistry[code[:2]]
	return info, ok
}

// ParseCSICode validates a CSI code's shape and resolves its division.
// Codes are five digits in the classic format; shorter prefixes are accepted
// for division and section level codes.
func ParseCSICode(csiCode string) (DivisionInfo, error) {
	code := strings.TrimSpace(csiCode)
	if code == "" {
		return DivisionInfo{}, fmt.Errorf("empty CSI code")
	}
	if len(code) < 2 || len(code) > 5 {
		return DivisionInfo{}, fmt.Errorf("invalid CSI code length: %s (expected 2-5 digits like 03300)", csiCode)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return DivisionInfo{}, fmt.Errorf("invalid CSI code: %s (expected digits like 03300)", csiCode)
		}
	}
	info, ok := DivisionRegistry[code[:2]]
	if !ok {
		return DivisionInfo{}, fmt.Errorf("unknown CSI division: %s (supported: 01-16)", code[:2])
	}
	return info, nil
}
