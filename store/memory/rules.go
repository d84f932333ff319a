package memory

import (
	"context"

	"github.com/loyaltyledger/engine/model"
)

// LoadRules implements attribution.RuleStore.
func (s *Store) LoadRules(_ context.Context, _ any, tenant, burnMerchantID string) ([]model.MerchantRedemptionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.MerchantRedemptionRule
	for _, r := range s.rules {
		if r.Tenant == tenant && r.BurnMerchantID == burnMerchantID && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

// PutRule upserts one redemption rule; used by tests.
func (s *Store) PutRule(r model.MerchantRedemptionRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.rules {
		if existing.Tenant == r.Tenant && existing.EarnMerchantID == r.EarnMerchantID && existing.BurnMerchantID == r.BurnMerchantID {
			s.rules[i] = r
			return
		}
	}
	s.rules = append(s.rules, r)
}

// GetFrozen implements attribution.MerchantStatusStore.
func (s *Store) GetFrozen(_ context.Context, _ any, tenant string, accounts []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(accounts))
	for _, acc := range accounts {
		out[acc] = s.merchantStatus[tenant+"/"+acc]
	}
	return out, nil
}

// SetFrozen marks a merchant account's freeze state; used by tests.
func (s *Store) SetFrozen(tenant, merchantAccount string, frozen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchantStatus[tenant+"/"+merchantAccount] = frozen
}
