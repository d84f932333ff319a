package receipt

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

const tiersConfig = `{"loyalty_tiers": {"window_days": 90, "tiers": [
	{"id": "silver", "threshold_cents": 15000},
	{"id": "base", "threshold_cents": 0}
]}}`

func TestRollingSpendTierSelectsHighestQualifyingTier(t *testing.T) {
	tests := []struct {
		name  string
		spend int64
		want  string
	}{
		{"above silver threshold", 18000, "silver"},
		{"below silver threshold", 2000, "base"},
		{"exactly at threshold", 15000, "silver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &fakeHelpers{
				now:          time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				config:       json.RawMessage(tiersConfig),
				hasConfig:    true,
				rollingSpend: tt.spend,
			}
			m, err := RollingSpendTier{}.Apply(context.Background(), testContext(1000), h)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if len(m.Entries) != 0 {
				t.Errorf("tier recomputation must not post entries, got %d", len(m.Entries))
			}
			tier, ok := m.Summary["loyalty_tier"].(map[string]any)
			if !ok {
				t.Fatalf("missing loyalty_tier summary: %+v", m.Summary)
			}
			if tier["tier_id"] != tt.want {
				t.Errorf("tier_id = %v, want %s", tier["tier_id"], tt.want)
			}
			if len(h.upserts) != 1 {
				t.Fatalf("expected one tier upsert, got %d", len(h.upserts))
			}
			if h.upserts[0].RollingSpendCents != tt.spend {
				t.Errorf("upserted spend = %d, want %d", h.upserts[0].RollingSpendCents, tt.spend)
			}
		})
	}
}

func TestRollingSpendTierWindowBounds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := &fakeHelpers{now: now, config: json.RawMessage(tiersConfig), hasConfig: true}
	if _, err := (RollingSpendTier{}).Apply(context.Background(), testContext(1000), h); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	up := h.upserts[0]
	if !up.WindowEnd.Equal(now) {
		t.Errorf("window_end = %v, want %v", up.WindowEnd, now)
	}
	if want := now.Add(-90 * 24 * time.Hour); !up.WindowStart.Equal(want) {
		t.Errorf("window_start = %v, want %v", up.WindowStart, want)
	}
}

func TestRollingSpendTierMissingConfigSkips(t *testing.T) {
	h := &fakeHelpers{hasConfig: false}
	m, err := RollingSpendTier{}.Apply(context.Background(), testContext(1000), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil mutation without loyalty_tiers config")
	}
	if len(h.upserts) != 0 {
		t.Errorf("expected no tier upsert")
	}
}

func TestRollingSpendTierUsesDisplayName(t *testing.T) {
	cfg := `{"loyalty_tiers": {"window_days": 30, "tiers": [
		{"id": "s1", "display_name": "Silver", "threshold_cents": 0}
	]}}`
	h := &fakeHelpers{
		now:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		config:    json.RawMessage(cfg),
		hasConfig: true,
	}
	m, err := RollingSpendTier{}.Apply(context.Background(), testContext(1000), h)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	tier := m.Summary["loyalty_tier"].(map[string]any)
	if tier["tier_name"] != "Silver" {
		t.Errorf("tier_name = %v, want Silver", tier["tier_name"])
	}
}
