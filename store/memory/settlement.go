package memory

import (
	"context"
	"strings"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/settlement"
)

const merchantLiabilitySuffix = "::merchant_liability"

// AggregateMerchantLiability implements settlement.Store.
func (s *Store) AggregateMerchantLiability(_ context.Context, _ any, tenant string, periodStart, periodEnd time.Time) ([]settlement.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	net := map[string]amount.Int{}
	for entryID, lines := range s.lines {
		j, ok := s.journals[entryID]
		if !ok || j.Tenant != tenant {
			continue
		}
		if j.CreatedAt.Before(periodStart) || !j.CreatedAt.Before(periodEnd) {
			continue
		}
		for _, l := range lines {
			if !strings.HasSuffix(l.AccountID, merchantLiabilitySuffix) {
				continue
			}
			cur, ok := net[l.AccountID]
			if !ok {
				cur = amount.Zero()
			}
			net[l.AccountID] = cur.Add(l.Credit).Sub(l.Debit)
		}
	}

	out := make([]settlement.Aggregate, 0, len(net))
	for account, sum := range net {
		out = append(out, settlement.Aggregate{MerchantAccount: account, NetPoints: sum})
	}
	return out, nil
}

// UpsertReport implements settlement.Store.
func (s *Store) UpsertReport(_ context.Context, _ any, tenant, merchantAccount string, periodStart, periodEnd time.Time, netPoints amount.Int, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := settlementKey{tenant: tenant, account: merchantAccount, start: periodStart.UnixNano(), end: periodEnd.UnixNano()}
	s.settlements[key] = &model.SettlementReport{
		Tenant:          tenant,
		MerchantAccount: merchantAccount,
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		NetPoints:       netPoints,
		Summary:         summary,
	}
	return nil
}

// GetSettlementReport returns a copy of one report, for tests.
func (s *Store) GetSettlementReport(tenant, merchantAccount string, periodStart, periodEnd time.Time) (*model.SettlementReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := settlementKey{tenant: tenant, account: merchantAccount, start: periodStart.UnixNano(), end: periodEnd.UnixNano()}
	r, ok := s.settlements[key]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}
