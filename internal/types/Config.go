/*

FlywheelConfig is the singleton record holding the distribution ratios, the execution window
and the lifetime accumulators of the flywheel.

*/

package types

import "github.com/gagliardetto/solana-go"

type FlywheelConfig struct {
	Admin          solana.PublicKey  `json:"admin"`
	TokenMint      solana.PublicKey  `json:"tokenMint"`
	FeeVault       solana.PublicKey  `json:"feeVault"`
	TreasuryWallet *solana.PublicKey `json:"treasuryWallet,omitempty"`

	// Ratios in basis points. BuybackBps + BurnBps + LpAddBps never exceeds 10000.
	BuybackBps uint16 `json:"buybackBps"`
	BurnBps    uint16 `json:"burnBps"`
	LpAddBps   uint16 `json:"lpAddBps"`

	// Execution window and throttling, in Unix seconds.
	EpochStart         int64 `json:"epochStart"`
	EpochEnd           int64 `json:"epochEnd"`
	MinIntervalSeconds int64 `json:"minIntervalSeconds"`
	LastExecution      int64 `json:"lastExecution"` // 0 until the first execution

	TotalFeesCollected uint64 `json:"totalFeesCollected"`
	TotalBoughtBack    uint64 `json:"totalBoughtBack"`
	TotalBurned        uint64 `json:"totalBurned"` // every token burned, buyback proceeds included
	TotalLpAdded       uint64 `json:"totalLpAdded"`
	TotalBuybackBurned uint64 `json:"totalBuybackBurned"` // part of TotalBurned acquired by buybacks
	TotalWithdrawn     uint64 `json:"totalWithdrawn"`     // emergency withdrawals

	InitializedAt int64 `json:"initializedAt"`
	UpdatedAt     int64 `json:"updatedAt"`
}

// Clone returns a deep copy of the config.
func (c *FlywheelConfig) Clone() *FlywheelConfig {
	if c == nil {
		return nil
	}
	out := *c
	if c.TreasuryWallet != nil {
		tw := *c.TreasuryWallet
		out.TreasuryWallet = &tw
	}
	return &out
}

// InitParams are the admin-supplied parameters of the one-time initialization.
// LpAddBps defaults to whatever is left after buyback and burn when omitted.
type InitParams struct {
	Admin              solana.PublicKey  `json:"admin"`
	TokenMint          solana.PublicKey  `json:"tokenMint"`
	FeeVault           solana.PublicKey  `json:"feeVault"`
	TreasuryWallet     *solana.PublicKey `json:"treasuryWallet,omitempty"`
	BuybackBps         uint16            `json:"buybackBps"`
	BurnBps            uint16            `json:"burnBps"`
	LpAddBps           *uint16           `json:"lpAddBps,omitempty"`
	MinIntervalSeconds int64             `json:"minIntervalSeconds"`
	EpochStart         int64             `json:"epochStart"`
	EpochEnd           int64             `json:"epochEnd"`
}

// UpdateParams is a partial config update. Nil fields keep their current value.
type UpdateParams struct {
	BuybackBps         *uint16           `json:"buybackBps,omitempty"`
	BurnBps            *uint16           `json:"burnBps,omitempty"`
	LpAddBps           *uint16           `json:"lpAddBps,omitempty"`
	MinIntervalSeconds *int64            `json:"minIntervalSeconds,omitempty"`
	TreasuryWallet     *solana.PublicKey `json:"treasuryWallet,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (p UpdateParams) IsEmpty() bool {
	return p.BuybackBps == nil && p.BurnBps == nil && p.LpAddBps == nil &&
		p.MinIntervalSeconds == nil && p.TreasuryWallet == nil
}
