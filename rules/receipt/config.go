package receipt

import "encoding/json"

// defaultEarnConfig is the program_config shape DefaultEarn reads.
// A missing points_multiplier means 1. One of the wrong JSON type decodes
// as 0, so the plugin earns nothing. Neither case aborts the job.
type defaultEarnConfig struct {
	PointsMultiplier *float64 `json:"points_multiplier"`
}

func parseDefaultEarnConfig(raw json.RawMessage) defaultEarnConfig {
	var cfg defaultEarnConfig
	if len(raw) == 0 {
		return cfg
	}
	_ = json.Unmarshal(raw, &cfg)
	return cfg
}

func (c defaultEarnConfig) multiplier() float64 {
	if c.PointsMultiplier == nil {
		return 1
	}
	return *c.PointsMultiplier
}

// tierOverride adjusts a stamp program's per-item rate or threshold for a
// named customer tier.
type tierOverride struct {
	StampsPerItem *float64 `json:"stamps_per_item"`
	Threshold     *float64 `json:"threshold"`
}

// stampProgram is one entry of stamp_programs in program config.
type stampProgram struct {
	ID              string                  `json:"id"`
	SKUs            []string                `json:"skus"`
	StampsPerItem   *float64                `json:"stamps_per_item"`
	Threshold       *float64                `json:"threshold"`
	Unit            string                  `json:"unit"`
	CouponUnit      string                  `json:"coupon_unit"`
	TierOverrides   map[string]tierOverride `json:"tier_overrides"`
}

func (p stampProgram) effectiveStampsPerItem(tierName string) float64 {
	if o, ok := p.TierOverrides[tierName]; ok && o.StampsPerItem != nil {
		return *o.StampsPerItem
	}
	if p.StampsPerItem != nil {
		return *p.StampsPerItem
	}
	return 1
}

func (p stampProgram) effectiveThreshold(tierName string) float64 {
	if o, ok := p.TierOverrides[tierName]; ok && o.Threshold != nil {
		return *o.Threshold
	}
	if p.Threshold != nil {
		return *p.Threshold
	}
	return 10
}

func (p stampProgram) unit() string {
	if p.Unit != "" {
		return p.Unit
	}
	return "stamps:" + p.ID
}

func (p stampProgram) couponUnit() string {
	if p.CouponUnit != "" {
		return p.CouponUnit
	}
	return "coupon:" + p.ID
}

type nthFreeStampsConfig struct {
	StampPrograms []stampProgram `json:"stamp_programs"`
}

func parseNthFreeStampsConfig(raw json.RawMessage) nthFreeStampsConfig {
	var cfg nthFreeStampsConfig
	if len(raw) == 0 {
		return cfg
	}
	_ = json.Unmarshal(raw, &cfg)
	return cfg
}

type loyaltyTier struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	ThresholdCents int64 `json:"threshold_cents"`
}

type loyaltyTiersConfig struct {
	WindowDays int64         `json:"window_days"`
	Tiers      []loyaltyTier `json:"tiers"`
}

type rollingSpendTierConfig struct {
	LoyaltyTiers *loyaltyTiersConfig `json:"loyalty_tiers"`
}

func parseRollingSpendTierConfig(raw json.RawMessage) rollingSpendTierConfig {
	var cfg rollingSpendTierConfig
	if len(raw) == 0 {
		return cfg
	}
	_ = json.Unmarshal(raw, &cfg)
	return cfg
}
