package jobproc

import (
	"errors"

	"github.com/loyaltyledger/engine/ledger"
	"github.com/loyaltyledger/engine/lot"
	"github.com/loyaltyledger/engine/pluginrunner"
)

// ErrReceiptPayloadMissing fires when a job references a receipt that was
// never inserted or was deleted. Terminal.
var ErrReceiptPayloadMissing = errors.New("Receipt payload missing")

// ErrRedeemRequestMissing is the redeem-side analogue.
var ErrRedeemRequestMissing = errors.New("Redeem request missing")

// ErrRedeemBusinessFailure marks a redeem plugin's own nonretryable
// failure (InsufficientBalance, UnknownBurnMerchantRule, FrozenMerchant,
// and validation failures like a non-positive quantity).
var ErrRedeemBusinessFailure = errors.New("jobproc: redeem rejected")

// businessError carries the plugin's failure reason verbatim, so the job
// row's last_error and the failure notification read exactly as the plugin
// stated them ("Insufficient balance", not a wrapped chain).
type businessError struct{ reason string }

func (e *businessError) Error() string { return e.reason }
func (e *businessError) Unwrap() error { return ErrRedeemBusinessFailure }

// retryableError wraps an error to mark it retryable up to max_attempts.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// retryable wraps err so isRetryable treats it as retryable.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// isRetryable categorizes an error for the retry-vs-fail decision.
// Terminal errors (bad payload shape, ledger invariant violations, a
// redeem plugin's own nonretryable business failure) fail the job outright;
// everything else — including the processor's own lot-consumption race
// and "no redeem plugin accepted" — is retried up to max_attempts.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrReceiptPayloadMissing),
		errors.Is(err, ErrRedeemRequestMissing),
		errors.Is(err, ErrRedeemBusinessFailure),
		errors.Is(err, ledger.ErrUnbalancedEntry),
		errors.Is(err, ledger.ErrEmptyEntry):
		return false
	}
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	if errors.Is(err, lot.ErrInsufficientLots) {
		return true
	}
	if errors.Is(err, pluginrunner.ErrNoRedeemPluginAccepted) {
		return true
	}
	// Unclassified plugin/store errors: treat as PluginError/TransientStoreError,
	// retryable up to max_attempts.
	return true
}
