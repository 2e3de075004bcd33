/*

This file describes the token the flywheel buys back and burns.
Amounts everywhere in the service are integers in the smallest unit of this token.

*/

package types

import "github.com/gagliardetto/solana-go"

// TokenDecimals is the precision of the flywheel token (1_000_000 = 1 token).
const TokenDecimals = 6

// MaxAmount is the largest amount the ledger accepts. Every persisted amount must fit a signed 64-bit column.
const MaxAmount uint64 = 1<<63 - 1

// BpsDenominator is the basis-point scale (10000 = 100%).
const BpsDenominator = 10000

type Token struct {
	Mint      solana.PublicKey `json:"mint"`
	Symbol    string           `json:"symbol"`   // e.g., "FLY"
	Decimals  int              `json:"decimals"` // e.g., 6
	Supply    uint64           `json:"supply"`   // last known total supply in the smallest unit
	UpdatedAt int64            `json:"updatedAt"`
}
