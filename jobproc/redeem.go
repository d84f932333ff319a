package jobproc

import (
	"context"
	"fmt"
	"time"

	"github.com/loyaltyledger/engine/model"
	"github.com/loyaltyledger/engine/pluginrunner"
	"github.com/loyaltyledger/engine/rules/redeem"
)

// runRedeemUnit loads the redeem request, runs the redeem plugin chain,
// and — on success — applies the resulting entry plus lot consumption.
func (p *Processor) runRedeemUnit(ctx context.Context, tx any, job model.Job, frozen time.Time) (unitResult, error) {
	request, ok, err := p.redeems.Get(ctx, tx, job.Tenant, job.ReferenceID)
	if err != nil {
		return unitResult{}, fmt.Errorf("jobproc: load redeem request: %w", retryable(err))
	}
	if !ok {
		return unitResult{}, ErrRedeemRequestMissing
	}

	rc := redeem.Context{
		Tenant:          job.Tenant,
		Request:         *request,
		CustomerAccount: resolveAccountID(job.Tenant, request.AccountID),
	}
	helpers := &jobHelpers{
		p:         p,
		tx:        tx,
		tenant:    job.Tenant,
		frozen:    frozen,
		programID: request.ProgramID,
		unit:      request.Unit,
	}

	result, err := pluginrunner.RunRedeemPlugins(ctx, p.redeemChain, rc, helpers)
	if err != nil {
		return unitResult{}, fmt.Errorf("jobproc: redeem plugins: %w", retryable(err))
	}
	if !result.Success {
		if result.Retryable {
			return unitResult{}, retryable(fmt.Errorf("jobproc: %s", result.FailureReason))
		}
		return unitResult{}, &businessError{reason: result.FailureReason}
	}

	entryIDs, err := p.ledger.AppendEntries(ctx, tx, job.Tenant, result.Entries)
	if err != nil {
		return unitResult{}, err
	}

	if err := p.consumeRedeemedLots(ctx, tx, job.Tenant, request.BurnMerchantID, result, entryIDs, frozen); err != nil {
		return unitResult{}, fmt.Errorf("jobproc: consume lots: %w", err)
	}

	return unitResult{summary: result.Summary}, nil
}

// resolveAccountID applies the balance-query alias: a literal "merchant" or
// "merchant_liability" account id maps to the tenant's merchant liability
// account, otherwise it is a customer account reference.
func resolveAccountID(tenant, accountID string) string {
	if accountID == "merchant" || accountID == "merchant_liability" {
		return model.MerchantLiabilityAccountID(tenant)
	}
	return model.CustomerAccountID(tenant, accountID)
}
