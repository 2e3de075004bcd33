package types

import "github.com/gagliardetto/solana-go"

// DepositReceipt is returned to a depositor after a committed deposit.
type DepositReceipt struct {
	Amount       uint64 `json:"amount"`
	VaultBalance uint64 `json:"vaultBalance"`
	TxHash       string `json:"txHash"`
}

// ExecutionResult summarizes one committed flywheel cycle.
type ExecutionResult struct {
	FeesProcessed uint64 `json:"feesProcessed"`
	BuybackAmount uint64 `json:"buybackAmount"`
	BurnAmount    uint64 `json:"burnAmount"`
	LpAddAmount   uint64 `json:"lpAddAmount"`
	Remainder     uint64 `json:"remainder"`     // left in the vault by floor rounding
	Acquired      uint64 `json:"acquired"`      // tokens returned by the buyback
	Burned        uint64 `json:"burned"`        // Acquired + BurnAmount
	TotalSupply   uint64 `json:"totalSupply"`   // supply after the burn
	VaultBalance  uint64 `json:"vaultBalance"`  // balance after the cycle
	ExecutedAt    int64  `json:"executedAt"`
	TxHash        string `json:"txHash"`
}

// WithdrawReceipt is returned after an emergency withdrawal.
type WithdrawReceipt struct {
	Amount    uint64           `json:"amount"`
	Recipient solana.PublicKey `json:"recipient"`
	TxHash    string           `json:"txHash"`
}
