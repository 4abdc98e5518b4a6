package cache

import (
	"path"
	"testing"
)

// TestKeyPart verifies identifier normalization
func TestKeyPart(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Seattle, WA", "seattle-wa"},
		{"New York, NY", "new-york-ny"},
		{" 03300 ", "03300"},
		{"03300", "03300"},
		{"2026-Q1", "2026-q1"},
		{"A   B", "a-b"},
		{"", ""},
		{"weird*glob?chars[here]", "weird-glob-chars-here"},
		{"--leading--", "leading"},
	}

	for _, tt := range tests {
		if got := KeyPart(tt.in); got != tt.want {
			t.Errorf("KeyPart(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestKeyBuilders verifies the namespace key formats
func TestKeyBuilders(t *testing.T) {
	if got := BasePriceKey("03300", "Seattle, WA"); got != "03300:seattle-wa" {
		t.Errorf("BasePriceKey = %q", got)
	}
	if got := LocationFactorKey("Seattle, WA"); got != "seattle-wa" {
		t.Errorf("LocationFactorKey = %q", got)
	}
	if got := EscalationKey("2026-Q1"); got != "2026-q1" {
		t.Errorf("EscalationKey = %q", got)
	}
}

// TestFullResultKey verifies every query field participates in the key
func TestFullResultKey(t *testing.T) {
	base := FullResultKey("03300", "Seattle, WA", "2026-Q1", "CY", 10, true, true)
	if base != "03300:seattle-wa:2026-q1:cy:10:1:1" {
		t.Errorf("Unexpected base key %q", base)
	}

	variants := []string{
		FullResultKey("09910", "Seattle, WA", "2026-Q1", "CY", 10, true, true),
		FullResultKey("03300", "Portland, OR", "2026-Q1", "CY", 10, true, true),
		FullResultKey("03300", "Seattle, WA", "2026-Q2", "CY", 10, true, true),
		FullResultKey("03300", "Seattle, WA", "2026-Q1", "SF", 10, true, true),
		FullResultKey("03300", "Seattle, WA", "2026-Q1", "CY", 2.5, true, true),
		FullResultKey("03300", "Seattle, WA", "2026-Q1", "CY", 10, false, true),
		FullResultKey("03300", "Seattle, WA", "2026-Q1", "CY", 10, true, false),
	}

	seen := map[string]bool{base: true}
	for i, v := range variants {
		if seen[v] {
			t.Errorf("Variant %d collides: %q", i, v)
		}
		seen[v] = true
	}

	// Empty optional fields get placeholder segments so positions stay fixed
	if got := FullResultKey("03300", "Seattle, WA", "", "", 10, true, false); got != "03300:seattle-wa:-:-:10:1:0" {
		t.Errorf("Empty quarter/unit key = %q", got)
	}

	// Fractional quantities keep their precision
	if got := FullResultKey("03300", "Seattle, WA", "", "CY", 2.5, false, false); got != "03300:seattle-wa:-:cy:2.5:0:0" {
		t.Errorf("Fractional quantity key = %q", got)
	}
}

// TestDefaultConfigPrefixes verifies namespaces write under the shared
// invalidation prefix with distinct sub-prefixes
func TestDefaultConfigPrefixes(t *testing.T) {
	cfg := DefaultConfig()

	seen := map[string]bool{}
	for _, ns := range Namespaces() {
		nscfg := cfg.Namespace(ns)
		if nscfg.TTL <= 0 {
			t.Errorf("Namespace %s has no TTL", ns)
		}
		if nscfg.KeyPrefix == "" {
			t.Errorf("Namespace %s has no key prefix", ns)
		}
		if seen[nscfg.KeyPrefix] {
			t.Errorf("Namespace %s reuses prefix %q", ns, nscfg.KeyPrefix)
		}
		seen[nscfg.KeyPrefix] = true

		if ok, _ := path.Match(PatternAll, nscfg.KeyPrefix+"anything"); !ok {
			t.Errorf("Namespace %s prefix %q not covered by PatternAll", ns, nscfg.KeyPrefix)
		}
	}

	// Full-result entries expire fastest, escalation slowest
	if cfg.FullResult.TTL >= cfg.BasePrice.TTL {
		t.Error("Full results should expire before base prices")
	}
	if cfg.BasePrice.TTL >= cfg.Escalation.TTL {
		t.Error("Base prices should expire before escalation indices")
	}
}
