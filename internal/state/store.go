package state

import (
	"context"

	"github.com/elys-network/flywheel/internal/types"
)

// Ledger is the durable flywheel state: the config singleton and the vault balance.
// Config is nil until the flywheel is initialized.
type Ledger struct {
	Config       *types.FlywheelConfig
	VaultBalance uint64
}

// Clone returns a deep copy of the ledger.
func (l Ledger) Clone() Ledger {
	return Ledger{Config: l.Config.Clone(), VaultBalance: l.VaultBalance}
}

// UpdateFunc mutates a private copy of the ledger and returns the events describing the change.
// Returning an error discards the copy.
type UpdateFunc func(ledger *Ledger) ([]types.Event, error)

// Store persists the ledger and the event history.
type Store interface {
	// Load returns a snapshot of the ledger.
	Load(ctx context.Context) (Ledger, error)

	// Update runs fn as one atomic read-modify-write. Concurrent updates are serialized.
	// On success the ledger and the returned events are committed together and the
	// events come back with their sequence numbers assigned.
	// An error from fn is returned unchanged.
	Update(ctx context.Context, fn UpdateFunc) ([]types.Event, error)

	// RecentEvents returns up to limit committed events, newest first.
	RecentEvents(ctx context.Context, limit int) ([]types.Event, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
