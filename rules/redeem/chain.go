package redeem

// Chain returns the built-in redeem plugins in evaluation order. Only one
// ships today (DefaultRedeem); the slice shape matches receipt.Chain so the
// plugin runner treats both job kinds uniformly.
func Chain() []Plugin {
	return []Plugin{
		DefaultRedeem{},
	}
}
