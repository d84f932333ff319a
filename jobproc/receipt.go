package jobproc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/pluginrunner"
	"github.com/loyaltyledger/engine/rules"
)

// runReceiptUnit loads the receipt, runs the receipt plugin chain, and
// applies every mutation in chain order. The transaction
// the caller passed in aborts on any returned error.
func (p *Processor) runReceiptUnit(ctx context.Context, tx any, job model.Job, frozen time.Time) (unitResult, error) {
	receipt, ok, err := p.receipts.Get(ctx, tx, job.Tenant, job.ReferenceID)
	if err != nil {
		return unitResult{}, fmt.Errorf("jobproc: load receipt: %w", retryable(err))
	}
	if !ok {
		return unitResult{}, ErrReceiptPayloadMissing
	}

	var payload model.ReceiptPayload
	if len(receipt.Payload) > 0 {
		_ = json.Unmarshal(receipt.Payload, &payload)
	}

	rc := rules.ReceiptContext{
		Tenant:                   job.Tenant,
		Receipt:                  *receipt,
		Items:                    payload.Items,
		CustomerAccount:          model.CustomerAccountID(job.Tenant, receipt.AccountRef),
		MerchantLiabilityAccount: model.MerchantLiabilityAccountID(job.Tenant),
	}
	helpers := &jobHelpers{p: p, tx: tx, tenant: job.Tenant, frozen: frozen}

	mutations, err := pluginrunner.RunReceiptPlugins(ctx, p.receiptChain, rc, helpers)
	if err != nil {
		return unitResult{}, fmt.Errorf("jobproc: receipt plugins: %w", retryable(err))
	}

	summary := map[string]any{}
	for _, mutation := range mutations {
		if len(mutation.Entries) > 0 {
			entryIDs, err := p.ledger.AppendEntries(ctx, tx, job.Tenant, mutation.Entries)
			if err != nil {
				return unitResult{}, err // ledger invariant violations are non-retryable (isRetryable)
			}
			if err := p.createEarnLots(ctx, tx, job.Tenant, mutation.Entries, entryIDs, frozen); err != nil {
				return unitResult{}, fmt.Errorf("jobproc: create earn lots: %w", err)
			}
		}
		for k, v := range mutation.Summary {
			summary[k] = v
		}
	}

	return unitResult{summary: summary}, nil
}
