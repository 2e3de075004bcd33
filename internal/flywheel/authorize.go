package flywheel

import (
	"fmt"

	"github.com/elys-network/flywheel/internal/types"
	"github.com/gagliardetto/solana-go"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionInitialize   Action = "initialize"
	ActionUpdateConfig Action = "update_config"
	ActionDeposit      Action = "deposit"
	ActionExecute      Action = "execute"
	ActionWithdraw     Action = "withdraw"
)

// Authorize is the single capability check for every flywheel operation.
// Config mutation and emergency withdrawal belong to the admin; deposit and execute are open to
// any non-zero identity. Initialize is open to the first caller, who becomes the admin.
func Authorize(cfg *types.FlywheelConfig, caller solana.PublicKey, action Action) error {
	switch action {
	case ActionInitialize:
		return nil
	case ActionDeposit, ActionExecute:
		if caller.IsZero() {
			return fmt.Errorf("%w: %s caller", ErrInvalidIdentity, action)
		}
		return nil
	case ActionUpdateConfig, ActionWithdraw:
		if cfg == nil {
			return ErrNotFound
		}
		if caller.IsZero() || !caller.Equals(cfg.Admin) {
			return fmt.Errorf("%w: %s may not %s", ErrUnauthorized, caller, action)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown action %q", ErrUnauthorized, action)
}
