package redeem

import (
	"testing"

	"github.com/loyaltyledger/engine/amount"
)

func ints(values ...int64) []amount.Int {
	out := make([]amount.Int, len(values))
	for i, v := range values {
		out[i] = amount.FromInt64(v)
	}
	return out
}

func TestDistributeExactSplit(t *testing.T) {
	shares := Distribute(amount.FromInt64(20), ints(100, 100))
	if shares[0].Int64() != 10 || shares[1].Int64() != 10 {
		t.Errorf("shares = %v, want [10 10]", shares)
	}
}

func TestDistributeLargestRemainderTieBreaksByInputOrder(t *testing.T) {
	shares := Distribute(amount.FromInt64(21), ints(100, 100))
	if shares[0].Int64() != 11 || shares[1].Int64() != 10 {
		t.Errorf("shares = %v, want [11 10]", shares)
	}
}

func TestDistributeSumsExactlyToTotal(t *testing.T) {
	tests := []struct {
		total   int64
		weights []int64
	}{
		{100, []int64{1, 2, 3}},
		{7, []int64{3, 3, 3}},
		{1, []int64{99, 1}},
		{1000000, []int64{7, 11, 13, 17}},
		{5, []int64{1}},
	}
	for _, tt := range tests {
		shares := Distribute(amount.FromInt64(tt.total), ints(tt.weights...))
		sum := amount.Sum(shares...)
		if sum.Int64() != tt.total {
			t.Errorf("Distribute(%d, %v) sums to %s, want %d", tt.total, tt.weights, sum, tt.total)
		}
	}
}

func TestDistributeProportionality(t *testing.T) {
	shares := Distribute(amount.FromInt64(100), ints(1, 3))
	if shares[0].Int64() != 25 || shares[1].Int64() != 75 {
		t.Errorf("shares = %v, want [25 75]", shares)
	}
}

func TestDistributeZeroWeightsAllToFirst(t *testing.T) {
	shares := Distribute(amount.FromInt64(9), ints(0, 0))
	if shares[0].Int64() != 9 || shares[1].Int64() != 0 {
		t.Errorf("shares = %v, want [9 0]", shares)
	}
}

func TestDistributeEmptyWeights(t *testing.T) {
	if shares := Distribute(amount.FromInt64(9), nil); shares != nil {
		t.Errorf("shares = %v, want nil", shares)
	}
}

func TestDistributeLargerRemainderWinsExtraUnit(t *testing.T) {
	// 10 across weights 1,2,4: floors are 1,2,5 (10*1/7=1 r3, 10*2/7=2 r6,
	// 10*4/7=5 r5); they sum to 8, and the two leftover units go to the
	// larger remainders, the weight-2 (r6) and weight-4 (r5) entries.
	shares := Distribute(amount.FromInt64(10), ints(1, 2, 4))
	want := []int64{1, 3, 6}
	for i, w := range want {
		if shares[i].Int64() != w {
			t.Errorf("shares = %v, want %v", shares, want)
			break
		}
	}
}
