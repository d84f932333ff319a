// Package pluginrunner composes plugin outputs into the batched mutation
// list the job processor applies. Receipt plugins may be
// evaluated concurrently, but the runner preserves the chain's declared
// order in its output; redeem plugins are asked sequentially and the first
// acceptance wins.
package pluginrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/loyaltyledger/engine/rules"
	"github.com/loyaltyledger/engine/rules/redeem"
)

// ErrNoRedeemPluginAccepted is returned when every redeem plugin's
// ShouldHandle was false or every accepting plugin still returned nil. The
// job processor treats this as a retryable error.
var ErrNoRedeemPluginAccepted = errors.New("pluginrunner: no redeem plugin accepted the request")

// RunReceiptPlugins evaluates every plugin in chain whose ShouldHandle is
// true, concurrently, and returns their non-nil Mutations in chain order.
func RunReceiptPlugins(ctx context.Context, chain []rules.Plugin, rc rules.ReceiptContext, h rules.Helpers) ([]rules.Mutation, error) {
	results := make([]*rules.Mutation, len(chain))
	errs := make([]error, len(chain))

	var wg sync.WaitGroup
	for i, p := range chain {
		if !p.ShouldHandle(ctx, rc, h) {
			continue
		}
		wg.Add(1)
		go func(i int, p rules.Plugin) {
			defer wg.Done()
			m, err := p.Apply(ctx, rc, h)
			if err != nil {
				errs[i] = fmt.Errorf("pluginrunner: plugin %q: %w", p.Name(), err)
				return
			}
			results[i] = m
		}(i, p)
	}
	wg.Wait()

	var agg *multierror.Error
	for _, err := range errs {
		if err != nil {
			agg = multierror.Append(agg, err)
		}
	}
	if agg != nil {
		return nil, agg.ErrorOrNil()
	}

	mutations := make([]rules.Mutation, 0, len(chain))
	for _, m := range results {
		if m != nil {
			mutations = append(mutations, *m)
		}
	}
	return mutations, nil
}

// RunRedeemPlugins asks each plugin in chain, in order, whose ShouldHandle
// is true, and returns the first non-nil Result. If every plugin declines
// or returns nil, it returns ErrNoRedeemPluginAccepted.
func RunRedeemPlugins(ctx context.Context, chain []redeem.Plugin, rc redeem.Context, h redeem.Helpers) (*redeem.Result, error) {
	for _, p := range chain {
		if !p.ShouldHandle(ctx, rc, h) {
			continue
		}
		result, err := p.Apply(ctx, rc, h)
		if err != nil {
			return nil, fmt.Errorf("pluginrunner: plugin %q: %w", p.Name(), err)
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, ErrNoRedeemPluginAccepted
}
