package vault

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TokenSupplyRPC is the subset of the Solana RPC client used to read token supply.
type TokenSupplyRPC interface {
	GetTokenSupply(ctx context.Context, tokenMint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error)
}

// RPCSupplySource reads the finalized supply of a mint from a Solana RPC node.
type RPCSupplySource struct {
	client TokenSupplyRPC
	mint   solana.PublicKey
}

// NewRPCSupplySource connects to endpoint for supply queries of mint.
func NewRPCSupplySource(endpoint string, mint solana.PublicKey) *RPCSupplySource {
	return NewRPCSupplySourceWithClient(rpc.New(endpoint), mint)
}

func NewRPCSupplySourceWithClient(client TokenSupplyRPC, mint solana.PublicKey) *RPCSupplySource {
	return &RPCSupplySource{client: client, mint: mint}
}

func (s *RPCSupplySource) TotalSupply(ctx context.Context) (uint64, error) {
	res, err := s.client.GetTokenSupply(ctx, s.mint, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("failed to get token supply for %s: %w", s.mint, err)
	}
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("empty token supply response for %s", s.mint)
	}
	supply, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token supply %q for %s: %w", res.Value.Amount, s.mint, err)
	}
	return supply, nil
}
