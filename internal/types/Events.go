package types

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// EventType tags the payload carried by an Event.
type EventType string

const (
	EventDeposit           EventType = "deposit"
	EventExecute           EventType = "execute"
	EventBurn              EventType = "burn"
	EventWithdraw          EventType = "withdraw"
	EventConfigInitialized EventType = "config_initialized"
	EventConfigUpdated     EventType = "config_updated"
)

// Event is an immutable record of a committed flywheel operation.
// Exactly one payload pointer is set, matching Type.
type Event struct {
	Seq       int64     `json:"seq"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	TxHash    string    `json:"txHash"`

	Deposit           *DepositData           `json:"-"`
	Execute           *ExecuteData           `json:"-"`
	Burn              *BurnData              `json:"-"`
	Withdraw          *WithdrawData          `json:"-"`
	ConfigInitialized *ConfigInitializedData `json:"-"`
	ConfigUpdated     *ConfigUpdatedData     `json:"-"`
}

type DepositData struct {
	Depositor    solana.PublicKey `json:"depositor"`
	Amount       uint64           `json:"amount"`
	VaultBalance uint64           `json:"vaultBalance"`
}

type ExecuteData struct {
	Executor      solana.PublicKey `json:"executor"`
	FeesProcessed uint64           `json:"feesProcessed"`
	BuybackAmount uint64           `json:"buybackAmount"`
	BurnAmount    uint64           `json:"burnAmount"`
	LpAddAmount   uint64           `json:"lpAddAmount"`
}

type BurnData struct {
	Amount      uint64 `json:"amount"`
	TotalSupply uint64 `json:"totalSupply"`
}

type WithdrawData struct {
	Amount    uint64           `json:"amount"`
	Recipient solana.PublicKey `json:"recipient"`
}

type ConfigInitializedData struct {
	Admin      solana.PublicKey `json:"admin"`
	TokenMint  solana.PublicKey `json:"tokenMint"`
	FeeVault   solana.PublicKey `json:"feeVault"`
	BuybackBps uint16           `json:"buybackBps"`
	BurnBps    uint16           `json:"burnBps"`
	LpAddBps   uint16           `json:"lpAddBps"`
	EpochStart int64            `json:"epochStart"`
	EpochEnd   int64            `json:"epochEnd"`
}

type ConfigUpdatedData struct {
	Admin  solana.PublicKey `json:"admin"`
	Update UpdateParams     `json:"update"`
}

// Payload returns the typed payload of the event, or nil if none is set.
func (e Event) Payload() any {
	switch e.Type {
	case EventDeposit:
		return e.Deposit
	case EventExecute:
		return e.Execute
	case EventBurn:
		return e.Burn
	case EventWithdraw:
		return e.Withdraw
	case EventConfigInitialized:
		return e.ConfigInitialized
	case EventConfigUpdated:
		return e.ConfigUpdated
	}
	return nil
}

// EncodePayload serializes the typed payload for storage.
func (e Event) EncodePayload() ([]byte, error) {
	payload := e.Payload()
	if payload == nil {
		return nil, fmt.Errorf("event type %q has no payload", e.Type)
	}
	return json.Marshal(payload)
}

// DecodePayload sets the payload pointer matching Type from its serialized form.
func (e *Event) DecodePayload(data []byte) error {
	var target any
	switch e.Type {
	case EventDeposit:
		e.Deposit = &DepositData{}
		target = e.Deposit
	case EventExecute:
		e.Execute = &ExecuteData{}
		target = e.Execute
	case EventBurn:
		e.Burn = &BurnData{}
		target = e.Burn
	case EventWithdraw:
		e.Withdraw = &WithdrawData{}
		target = e.Withdraw
	case EventConfigInitialized:
		e.ConfigInitialized = &ConfigInitializedData{}
		target = e.ConfigInitialized
	case EventConfigUpdated:
		e.ConfigUpdated = &ConfigUpdatedData{}
		target = e.ConfigUpdated
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

type eventEnvelope struct {
	Seq       int64           `json:"seq"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"`
	TxHash    string          `json:"txHash"`
	Data      json.RawMessage `json:"data"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	data, err := e.EncodePayload()
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{
		Seq:       e.Seq,
		Type:      e.Type,
		Timestamp: e.Timestamp,
		TxHash:    e.TxHash,
		Data:      data,
	})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	*e = Event{
		Seq:       env.Seq,
		Type:      env.Type,
		Timestamp: env.Timestamp,
		TxHash:    env.TxHash,
	}
	return e.DecodePayload(env.Data)
}
