package jobproc

import (
	"encoding/json"
	"time"
)

// lotExpiryConfig is the subset of program_config the earn side of mutation
// application reads to compute a newly-created lot's expiry, using a
// three-way precedence.
type lotExpiryConfig struct {
	CrossBrandAllocation *struct {
		Partners []struct {
			MerchantAccount string `json:"merchant_account"`
			ExpiryDays      *int64 `json:"expiry_days"`
		} `json:"partners"`
		PartnerMap map[string]string `json:"partner_map"`
		ExpiryDays *int64            `json:"expiry_days"`
	} `json:"cross_brand_allocation"`
	EarnExpiryOverrides   map[string]int64 `json:"earn_expiry_overrides"`
	EarnExpiryDaysDefault *int64           `json:"earn_expiry_days_default"`
}

func parseLotExpiryConfig(raw json.RawMessage) lotExpiryConfig {
	var cfg lotExpiryConfig
	if len(raw) == 0 {
		return cfg
	}
	_ = json.Unmarshal(raw, &cfg)
	return cfg
}

// expiryDays resolves the first matching rule in this precedence: (a)
// partner-specific expiry_days via
// cross_brand_allocation.partner_map[merchantID] → partner account → that
// partner's expiry_days; (b) earn_expiry_overrides[merchantID]; (c)
// earn_expiry_days_default. nil/absent at every step means never expire.
func (c lotExpiryConfig) expiryDays(merchantID string) *int64 {
	if c.CrossBrandAllocation != nil {
		if account, ok := c.CrossBrandAllocation.PartnerMap[merchantID]; ok {
			for _, p := range c.CrossBrandAllocation.Partners {
				if p.MerchantAccount == account && p.ExpiryDays != nil {
					return p.ExpiryDays
				}
			}
		}
	}
	if d, ok := c.EarnExpiryOverrides[merchantID]; ok {
		return &d
	}
	return c.EarnExpiryDaysDefault
}

// expiresAt converts a day count (possibly nil) relative to now into an
// absolute expiry timestamp, or nil for "never expires".
func expiresAt(now time.Time, days *int64) *time.Time {
	if days == nil {
		return nil
	}
	t := now.Add(time.Duration(*days) * 24 * time.Hour)
	return &t
}
