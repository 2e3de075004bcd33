package flywheel

import (
	"errors"
	"fmt"
	"testing"

	"github.com/elys-network/flywheel/internal/types"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPK(n int) solana.PublicKey {
	var b [32]byte
	b[0] = byte(n)
	b[1] = 0x5F
	b[31] = byte(n >> 8)
	return solana.PublicKeyFromBytes(b[:])
}

func u16(v uint16) *uint16 { return &v }
func i64(v int64) *int64   { return &v }

func TestCanExecute(t *testing.T) {
	t.Parallel()

	base := types.FlywheelConfig{EpochStart: 1000, EpochEnd: 2000, MinIntervalSeconds: 3600}

	tests := []struct {
		name string
		last int64
		now  int64
		want error
	}{
		{name: "before epoch", now: 999, want: ErrOutsideEpoch},
		{name: "after epoch", now: 2001, want: ErrOutsideEpoch},
		{name: "epoch start is inclusive", now: 1000},
		{name: "epoch end is inclusive", now: 2000},
		{name: "first execution skips interval", now: 1500},
		{name: "interval not elapsed", last: 1500, now: 1510, want: ErrInsufficientInterval},
		{name: "outside epoch wins over interval", last: 1990, now: 2500, want: ErrOutsideEpoch},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.LastExecution = tt.last
			err := CanExecute(cfg, tt.now)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCanExecute_IntervalElapsed(t *testing.T) {
	t.Parallel()

	cfg := types.FlywheelConfig{EpochStart: 0, EpochEnd: 1 << 40, MinIntervalSeconds: 3600, LastExecution: 10_000}
	require.ErrorIs(t, CanExecute(cfg, 13_599), ErrInsufficientInterval)
	require.NoError(t, CanExecute(cfg, 13_600))

	cfg.MinIntervalSeconds = 0
	require.NoError(t, CanExecute(cfg, 10_000))
}

func TestNextExecutionAt(t *testing.T) {
	t.Parallel()

	cfg := types.FlywheelConfig{EpochStart: 1000, EpochEnd: 9000, MinIntervalSeconds: 60}
	assert.Equal(t, int64(1000), NextExecutionAt(cfg))
	cfg.LastExecution = 1500
	assert.Equal(t, int64(1560), NextExecutionAt(cfg))
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	admin := testPK(1)
	stranger := testPK(2)
	cfg := &types.FlywheelConfig{Admin: admin}

	for _, action := range []Action{ActionInitialize, ActionDeposit, ActionExecute} {
		assert.NoError(t, Authorize(cfg, stranger, action), action)
	}
	for _, action := range []Action{ActionDeposit, ActionExecute} {
		assert.ErrorIs(t, Authorize(cfg, solana.PublicKey{}, action), ErrInvalidIdentity, action)
	}
	for _, action := range []Action{ActionUpdateConfig, ActionWithdraw} {
		assert.NoError(t, Authorize(cfg, admin, action), action)
		assert.ErrorIs(t, Authorize(cfg, stranger, action), ErrUnauthorized, action)
		assert.ErrorIs(t, Authorize(cfg, solana.PublicKey{}, action), ErrUnauthorized, action)
		assert.ErrorIs(t, Authorize(nil, admin, action), ErrNotFound, action)
	}
	assert.ErrorIs(t, Authorize(cfg, admin, Action("mint")), ErrUnauthorized)
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	params := types.InitParams{
		Admin: testPK(1), TokenMint: testPK(2), FeeVault: testPK(3),
		BuybackBps: 3000, BurnBps: 2000, MinIntervalSeconds: 3600,
		EpochStart: 100, EpochEnd: 200,
	}

	cfg, err := NewConfig(params, 50)
	require.NoError(t, err)
	assert.Equal(t, uint16(5000), cfg.LpAddBps, "lp share defaults to the remainder")
	assert.Zero(t, cfg.LastExecution)
	assert.Zero(t, cfg.TotalFeesCollected)
	assert.Equal(t, int64(50), cfg.InitializedAt)

	explicit := params
	explicit.LpAddBps = u16(1000)
	cfg, err = NewConfig(explicit, 50)
	require.NoError(t, err)
	assert.Equal(t, uint16(1000), cfg.LpAddBps)

	tooMuch := params
	tooMuch.LpAddBps = u16(5001)
	_, err = NewConfig(tooMuch, 50)
	require.ErrorIs(t, err, ErrInvalidBpsSum)

	overflow := params
	overflow.BuybackBps, overflow.BurnBps = 6000, 6000
	_, err = NewConfig(overflow, 50)
	require.ErrorIs(t, err, ErrInvalidBpsSum)

	badEpoch := params
	badEpoch.EpochStart, badEpoch.EpochEnd = 300, 200
	_, err = NewConfig(badEpoch, 50)
	require.ErrorIs(t, err, ErrInvalidEpoch)

	noAdmin := params
	noAdmin.Admin = solana.PublicKey{}
	_, err = NewConfig(noAdmin, 50)
	require.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestApplyUpdate(t *testing.T) {
	t.Parallel()

	cfg := &types.FlywheelConfig{Admin: testPK(1), BuybackBps: 4000, BurnBps: 4000, LpAddBps: 2000, MinIntervalSeconds: 60}

	next, err := ApplyUpdate(cfg, types.UpdateParams{BuybackBps: u16(3000)}, 99)
	require.NoError(t, err)
	assert.Equal(t, uint16(3000), next.BuybackBps)
	assert.Equal(t, uint16(4000), next.BurnBps, "unspecified fields keep their value")
	assert.Equal(t, int64(99), next.UpdatedAt)
	assert.Equal(t, uint16(4000), cfg.BuybackBps, "input is not mutated")

	_, err = ApplyUpdate(cfg, types.UpdateParams{BuybackBps: u16(5000)}, 99)
	require.ErrorIs(t, err, ErrInvalidBpsSum, "existing lp share counts toward the sum")

	next, err = ApplyUpdate(cfg, types.UpdateParams{BuybackBps: u16(5000), LpAddBps: u16(1000)}, 99)
	require.NoError(t, err)
	assert.Equal(t, uint16(1000), next.LpAddBps)

	_, err = ApplyUpdate(cfg, types.UpdateParams{BurnBps: u16(5000), MinIntervalSeconds: i64(10)}, 99)
	require.ErrorIs(t, err, ErrInvalidBpsSum)

	tw := testPK(7)
	next, err = ApplyUpdate(cfg, types.UpdateParams{MinIntervalSeconds: i64(0), TreasuryWallet: &tw}, 99)
	require.NoError(t, err)
	assert.Zero(t, next.MinIntervalSeconds)
	require.NotNil(t, next.TreasuryWallet)
	assert.Equal(t, tw, *next.TreasuryWallet)

	_, err = ApplyUpdate(cfg, types.UpdateParams{MinIntervalSeconds: i64(-1)}, 99)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCheckedArithmetic(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, ValidateAmount(0), ErrInvalidAmount)
	require.ErrorIs(t, ValidateAmount(types.MaxAmount+1), ErrInvalidAmount)
	require.NoError(t, ValidateAmount(types.MaxAmount))

	_, err := checkedAdd(types.MaxAmount, 1)
	require.ErrorIs(t, err, ErrMathOverflow)
	sum, err := checkedAdd(2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), sum)

	_, err = checkedSub(1, 2)
	require.ErrorIs(t, err, ErrMathOverflow)

	a, b := uint64(1), types.MaxAmount
	err = accumulate(accumulation{&a, 1}, accumulation{&b, 1})
	require.ErrorIs(t, err, ErrMathOverflow)
	assert.Equal(t, uint64(1), a, "no target is written when any addition overflows")
}

func TestCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "invalid_bps_sum", Code(fmt.Errorf("wrapped: %w", ErrInvalidBpsSum)))
	assert.Equal(t, "execution_aborted", Code(aborted("burn", errors.New("rpc down"))))
	assert.Equal(t, "internal", Code(errors.New("disk full")))

	var abortErr *ExecutionAbortedError
	require.ErrorAs(t, aborted("burn", errors.New("rpc down")), &abortErr)
	assert.Equal(t, "burn", abortErr.Stage)
}
