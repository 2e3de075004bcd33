package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSupplyRPC struct {
	result *rpc.GetTokenSupplyResult
	err    error
	mint   solana.PublicKey
}

func (m *mockSupplyRPC) GetTokenSupply(_ context.Context, mint solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error) {
	m.mint = mint
	return m.result, m.err
}

func TestSimulated_BuybackIsOneToOne(t *testing.T) {
	t.Parallel()

	s := NewSimulated(DefaultInitialSupply)
	acquired, err := s.Buyback(context.Background(), 2_500_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), acquired)
}

func TestSimulated_BurnReducesSupply(t *testing.T) {
	t.Parallel()

	s := NewSimulated(10_000)
	supply, err := s.Burn(context.Background(), 4_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_000), supply)

	_, err = s.Burn(context.Background(), 6_001)
	require.ErrorIs(t, err, ErrBurnExceedsSupply)
	assert.Equal(t, uint64(6_000), s.Supply())
}

func TestSimulated_TalliesLiquidityAndWithdrawals(t *testing.T) {
	t.Parallel()

	s := NewSimulated(0)
	ctx := context.Background()
	recipient := solana.NewWallet().PublicKey()

	require.NoError(t, s.AddLiquidity(ctx, 10))
	require.NoError(t, s.AddLiquidity(ctx, 5))
	require.NoError(t, s.Withdraw(ctx, recipient, 7))

	assert.Equal(t, uint64(15), s.Liquidity())
	assert.Equal(t, uint64(7), s.Withdrawn(recipient))
}

func TestSimulated_RespectsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSimulated(100)
	_, err := s.Buyback(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
	_, err = s.Burn(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRPCSupplySource(t *testing.T) {
	t.Parallel()

	mint := solana.NewWallet().PublicKey()
	client := &mockSupplyRPC{result: &rpc.GetTokenSupplyResult{Value: &rpc.UiTokenAmount{Amount: "999000000", Decimals: 6}}}
	src := NewRPCSupplySourceWithClient(client, mint)

	supply, err := src.TotalSupply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(999_000_000), supply)
	assert.Equal(t, mint, client.mint)

	sim := NewSimulated(1)
	require.NoError(t, sim.SyncSupply(context.Background(), src))
	assert.Equal(t, uint64(999_000_000), sim.Supply())
}

func TestRPCSupplySource_Errors(t *testing.T) {
	t.Parallel()

	mint := solana.NewWallet().PublicKey()

	_, err := NewRPCSupplySourceWithClient(&mockSupplyRPC{err: errors.New("rpc down")}, mint).TotalSupply(context.Background())
	require.Error(t, err)

	_, err = NewRPCSupplySourceWithClient(&mockSupplyRPC{result: &rpc.GetTokenSupplyResult{}}, mint).TotalSupply(context.Background())
	require.Error(t, err)

	_, err = NewRPCSupplySourceWithClient(&mockSupplyRPC{result: &rpc.GetTokenSupplyResult{Value: &rpc.UiTokenAmount{Amount: "abc"}}}, mint).TotalSupply(context.Background())
	require.Error(t, err)
}
