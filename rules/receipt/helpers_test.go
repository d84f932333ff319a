package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loyaltyledger/engine/amount"
	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/rules"
)

// fakeHelpers implements rules.Helpers against in-struct state, so each
// plugin is exercised with a frozen clock and a fixed DB snapshot.
type fakeHelpers struct {
	now          time.Time
	config       json.RawMessage
	hasConfig    bool
	balances     map[string]int64 // accountID + "/" + unit
	rollingSpend int64
	tier         *model.CustomerTier
	upserts      []rules.UpsertTierParams
	ids          int
}

func (f *fakeHelpers) Now() time.Time { return f.now }

func (f *fakeHelpers) GenerateID() string {
	f.ids++
	return fmt.Sprintf("id-%d", f.ids)
}

func (f *fakeHelpers) GetProgramConfig(ctx context.Context, tenant, programID string) (json.RawMessage, bool, error) {
	return f.config, f.hasConfig, nil
}

func (f *fakeHelpers) GetAccountBalance(ctx context.Context, accountID, programID, unit string) (amount.Int, error) {
	return amount.FromInt64(f.balances[accountID+"/"+unit]), nil
}

func (f *fakeHelpers) GetRollingSpendCents(ctx context.Context, p rules.RollingSpendParams) (amount.Int, error) {
	return amount.FromInt64(f.rollingSpend), nil
}

func (f *fakeHelpers) UpsertCustomerTier(ctx context.Context, p rules.UpsertTierParams) error {
	f.upserts = append(f.upserts, p)
	return nil
}

func (f *fakeHelpers) GetCustomerTier(ctx context.Context, tenant, merchantID, customerAccount string) (*model.CustomerTier, error) {
	return f.tier, nil
}

func testContext(totalCents int64, items ...model.ReceiptItem) rules.ReceiptContext {
	return rules.ReceiptContext{
		Tenant: "tenant-a",
		Receipt: model.Receipt{
			ReceiptID:       "rcpt-1",
			Tenant:          "tenant-a",
			MerchantID:      "merchant-1",
			AccountRef:      "cust-1",
			ProgramID:       "prog-1",
			GrandTotalCents: amount.FromInt64(totalCents),
		},
		Items:                    items,
		CustomerAccount:          model.CustomerAccountID("tenant-a", "cust-1"),
		MerchantLiabilityAccount: model.MerchantLiabilityAccountID("tenant-a"),
	}
}
