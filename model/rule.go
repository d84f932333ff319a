package model

import "time"

// MerchantRedemptionRule governs whether a burn at one merchant may consume
// lots earned at another, and the settlement economics of doing so.
type MerchantRedemptionRule struct {
	Tenant                   string `db:"tenant"`
	EarnMerchantID           string `db:"earn_merchant_id"`
	BurnMerchantID           string `db:"burn_merchant_id"`
	EarnMerchantAccount      string `db:"earn_merchant_account"`
	ExpiryDaysOverride       *int64 `db:"expiry_days_override"`
	SettlementAdjustmentBps  *int64 `db:"settlement_adjustment_bps"`
	Enabled                  bool   `db:"enabled"`
}

// CustomerTier is the upserted rolling-spend tier state for one
// (tenant, merchant, customer) triple.
type CustomerTier struct {
	TierID            string  `db:"tier_id"`
	Tenant            string  `db:"tenant"`
	MerchantID        string  `db:"merchant_id"`
	CustomerAccount   string  `db:"customer_account"`
	TierName          string    `db:"tier_name"`
	WindowDays        int64     `db:"window_days"`
	WindowStart       time.Time `db:"window_start"`
	WindowEnd         time.Time `db:"window_end"`
	RollingSpendCents int64     `db:"rolling_spend_cents"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// MerchantStatus carries freeze state for a merchant account.
type MerchantStatus struct {
	Tenant          string `db:"tenant"`
	MerchantAccount string `db:"merchant_account"`
	Frozen          bool   `db:"frozen"`
}
