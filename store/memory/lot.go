package memory

import (
	"context"
	"sort"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
)

// InsertLot implements lot.Store.
func (s *Store) InsertLot(_ context.Context, _ any, l model.PointLot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := l
	s.lots = append(s.lots, &cp)
	return nil
}

// EligibleLots implements lot.Store: lots matching scope and filter, ordered
// ascending by (expires_at NULLS LAST, created_at).
func (s *Store) EligibleLots(_ context.Context, _ any, tenant, customerAccount, programID, unit string, filter model.ConsumeFilter, now time.Time) ([]model.PointLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.PointLot
	for _, l := range s.lots {
		if !lotInScope(l, tenant, customerAccount, programID, unit) {
			continue
		}
		if !lotMatchesFilter(l, filter, now) {
			continue
		}
		if l.QtyRemaining.IsZero() {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return lotLess(out[i], out[j]) })
	return out, nil
}

// DecrementLot implements lot.Store.
func (s *Store) DecrementLot(_ context.Context, _ any, lotID string, amt amount.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lots {
		if l.LotID == lotID {
			l.QtyRemaining = l.QtyRemaining.Sub(amt)
			return nil
		}
	}
	return nil
}

// SumRemaining implements lot.Store and attribution.LotSumStore.
func (s *Store) SumRemaining(_ context.Context, _ any, tenant, customerAccount, programID, unit string, filter model.ConsumeFilter, now time.Time) (amount.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := amount.Zero()
	for _, l := range s.lots {
		if !lotInScope(l, tenant, customerAccount, programID, unit) {
			continue
		}
		if !lotMatchesFilter(l, filter, now) {
			continue
		}
		sum = sum.Add(l.QtyRemaining)
	}
	return sum, nil
}

// SumRemainingByMerchant implements attribution.LotSumStore: Σqty_remaining
// grouped by merchant_id among non-expired lots, with no merchant/age
// restriction otherwise.
func (s *Store) SumRemainingByMerchant(_ context.Context, _ any, tenant, customerAccount, programID, unit string, now time.Time) (map[string]amount.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]amount.Int{}
	for _, l := range s.lots {
		if !lotInScope(l, tenant, customerAccount, programID, unit) {
			continue
		}
		if lotExpired(l, now) {
			continue
		}
		cur, ok := out[l.MerchantID]
		if !ok {
			cur = amount.Zero()
		}
		out[l.MerchantID] = cur.Add(l.QtyRemaining)
	}
	return out, nil
}

func lotInScope(l *model.PointLot, tenant, customerAccount, programID, unit string) bool {
	return l.Tenant == tenant && l.CustomerAccount == customerAccount && l.ProgramID == programID && l.Unit == unit
}

func lotExpired(l *model.PointLot, now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

func lotMatchesFilter(l *model.PointLot, filter model.ConsumeFilter, now time.Time) bool {
	if lotExpired(l, now) {
		return false
	}
	if len(filter.MerchantIDs) > 0 {
		found := false
		for _, m := range filter.MerchantIDs {
			if m == l.MerchantID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.MaxAgeDays != nil && ageExceeds(l.CreatedAt, now, *filter.MaxAgeDays) {
		return false
	}
	if filter.ExpiryDays != nil && ageExceeds(l.CreatedAt, now, *filter.ExpiryDays) {
		return false
	}
	return true
}

func ageExceeds(createdAt, now time.Time, maxDays int64) bool {
	return now.Sub(createdAt) > time.Duration(maxDays)*24*time.Hour
}

func lotLess(a, b model.PointLot) bool {
	switch {
	case a.ExpiresAt == nil && b.ExpiresAt == nil:
		return a.CreatedAt.Before(b.CreatedAt)
	case a.ExpiresAt == nil:
		return false
	case b.ExpiresAt == nil:
		return true
	case !a.ExpiresAt.Equal(*b.ExpiresAt):
		return a.ExpiresAt.Before(*b.ExpiresAt)
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}
