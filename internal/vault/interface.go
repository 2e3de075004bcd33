package vault

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Distributor defines the interface for the external operations a flywheel cycle performs.
// This interface abstracts away the ledger that actually moves and burns value,
// allowing for different implementations (on-chain, simulation, etc.).
// Implementations must return promptly once ctx is done; the engine bounds every call with a deadline.
type Distributor interface {
	// Buyback spends amount of collected fees on the market and returns the tokens acquired.
	Buyback(ctx context.Context, amount uint64) (acquired uint64, err error)

	// Burn destroys amount tokens and returns the token supply after the burn.
	Burn(ctx context.Context, amount uint64) (totalSupply uint64, err error)

	// AddLiquidity adds amount of fees to the token's liquidity pool.
	AddLiquidity(ctx context.Context, amount uint64) error

	// Withdraw transfers amount out of the fee vault to recipient.
	Withdraw(ctx context.Context, recipient solana.PublicKey, amount uint64) error
}

// SupplySource reports the circulating supply of the flywheel token.
type SupplySource interface {
	TotalSupply(ctx context.Context) (uint64, error)
}
