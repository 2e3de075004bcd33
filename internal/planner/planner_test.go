package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fees    uint64
		buyback uint16
		burn    uint16
		lpAdd   uint16
		want    Split
	}{
		{
			name: "even split of five thousand tokens", fees: 5_000_000_000, buyback: 5000, burn: 5000,
			want: Split{Fees: 5_000_000_000, Buyback: 2_500_000_000, Burn: 2_500_000_000},
		},
		{
			name: "floor rounding keeps remainder", fees: 1, buyback: 5000, burn: 5000,
			want: Split{Fees: 1, Remainder: 1},
		},
		{
			name: "three way split", fees: 10_001, buyback: 3000, burn: 3000, lpAdd: 4000,
			want: Split{Fees: 10_001, Buyback: 3000, Burn: 3000, LpAdd: 4000, Remainder: 1},
		},
		{
			name: "partial ratios leave the rest", fees: 1_000_000, buyback: 2500, burn: 2500,
			want: Split{Fees: 1_000_000, Buyback: 250_000, Burn: 250_000, Remainder: 500_000},
		},
		{
			name: "largest amount does not overflow", fees: 1<<63 - 1, buyback: 10000,
			want: Split{Fees: 1<<63 - 1, Buyback: 1<<63 - 1},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ComputeSplit(tt.fees, tt.buyback, tt.burn, tt.lpAdd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.fees, got.Distributed()+got.Remainder)
		})
	}
}

func TestComputeSplit_RejectsRatiosAboveDenominator(t *testing.T) {
	t.Parallel()

	_, err := ComputeSplit(100, 6000, 6000, 0)
	require.ErrorIs(t, err, ErrInvalidRatios)
}
