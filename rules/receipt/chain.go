// Package receipt provides the fixed, statically composed chain of receipt
// rule plugins, in the order the job processor must run them: DefaultEarn,
// NthFreeStamps, RollingSpendTier.
package receipt

import "github.com/loyaltyledger/engine/rules"

// Chain returns the built-in receipt plugins in their required evaluation
// order. The rule set is statically composed — runtime-pluggable rule
// loading is out of scope — so this is a plain literal, not a registry.
func Chain() []rules.Plugin {
	return []rules.Plugin{
		DefaultEarn{},
		NthFreeStamps{},
		RollingSpendTier{},
	}
}
