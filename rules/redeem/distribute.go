package redeem

import (
	"math/big"
	"sort"

	"github.com/loyaltyledger/engine/amount"
)

// Distribute splits total across weights using the largest-remainder
// method: each share starts at
// floor(total*w_i/W), and the remainder is handed out one-by-one to the
// entries with the largest (total*w_i) mod W, ties broken by input order.
// The result sums exactly to total and is a pure, deterministic function of
// (total, weights) — no I/O, no wall clock.
func Distribute(total amount.Int, weights []amount.Int) []amount.Int {
	n := len(weights)
	if n == 0 {
		return nil
	}
	T := total.Big()
	W := big.NewInt(0)
	for _, w := range weights {
		W.Add(W, w.Big())
	}
	out := make([]amount.Int, n)
	if W.Sign() <= 0 {
		// No positive weight signal: everything goes to the first entry,
		// matching the "priority" fallback shape used elsewhere.
		out[0] = total
		return out
	}

	floors := make([]*big.Int, n)
	remainders := make([]*big.Int, n)
	sumFloors := big.NewInt(0)
	for i, w := range weights {
		prod := new(big.Int).Mul(T, w.Big())
		q := new(big.Int)
		r := new(big.Int)
		q.QuoRem(prod, W, r)
		floors[i] = q
		remainders[i] = r
		sumFloors.Add(sumFloors, q)
	}

	remainder := new(big.Int).Sub(T, sumFloors)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return remainders[idx[a]].Cmp(remainders[idx[b]]) > 0
	})

	shares := make([]*big.Int, n)
	for i, f := range floors {
		shares[i] = new(big.Int).Set(f)
	}
	one := big.NewInt(1)
	rem := new(big.Int).Set(remainder)
	for _, i := range idx {
		if rem.Sign() <= 0 {
			break
		}
		shares[i].Add(shares[i], one)
		rem.Sub(rem, one)
	}

	for i, s := range shares {
		v, _ := amount.FromString(s.String())
		out[i] = v
	}
	return out
}
