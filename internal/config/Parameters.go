/*

This file contains the default bootstrap parameters for a new flywheel and the loader for
bootstrap files passed to `flywheel init --file`.

*/

package config

import (
	"fmt"
	"os"

	"github.com/elys-network/flywheel/internal/types"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

// Bootstrap describes the initial flywheel config. Identities are base58 public keys.
type Bootstrap struct {
	Admin          string `yaml:"admin"`
	TokenMint      string `yaml:"token_mint"`
	FeeVault       string `yaml:"fee_vault"`
	TreasuryWallet string `yaml:"treasury_wallet"`

	BuybackBps uint16  `yaml:"buyback_bps"`
	BurnBps    uint16  `yaml:"burn_bps"`
	LpAddBps   *uint16 `yaml:"lp_add_bps"` // nil takes whatever the other two leave

	MinIntervalSeconds int64 `yaml:"min_interval_seconds"`
	EpochStart         int64 `yaml:"epoch_start"`
	EpochEnd           int64 `yaml:"epoch_end"`
}

// DefaultBootstrap splits fees evenly between buyback and burn and allows one execution per hour.
var DefaultBootstrap = Bootstrap{
	BuybackBps:         5000,
	BurnBps:            5000,
	MinIntervalSeconds: 3600,
}

// LoadBootstrapFile reads a YAML bootstrap file. Fields the file omits keep their DefaultBootstrap value.
func LoadBootstrapFile(path string) (Bootstrap, error) {
	b := DefaultBootstrap

	data, err := os.ReadFile(path)
	if err != nil {
		return b, fmt.Errorf("read bootstrap file: %w", err)
	}
	if err := yaml.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("parse bootstrap file: %w", err)
	}
	return b, nil
}

// InitParams resolves the bootstrap into initialization parameters. Mint, vault and epoch
// bounds the bootstrap leaves out come from app.
func (b Bootstrap) InitParams(app *AppConfig) (types.InitParams, error) {
	params := types.InitParams{
		BuybackBps:         b.BuybackBps,
		BurnBps:            b.BurnBps,
		LpAddBps:           b.LpAddBps,
		MinIntervalSeconds: b.MinIntervalSeconds,
		EpochStart:         b.EpochStart,
		EpochEnd:           b.EpochEnd,
	}
	if app != nil {
		params.TokenMint = app.TokenMint
		params.FeeVault = app.FeeVault
		if params.EpochStart == 0 && params.EpochEnd == 0 {
			params.EpochStart, params.EpochEnd = app.EpochStart, app.EpochEnd
		}
	}

	var err error
	if params.Admin, err = parseKey("admin", b.Admin); err != nil {
		return params, err
	}
	if b.TokenMint != "" {
		if params.TokenMint, err = parseKey("token_mint", b.TokenMint); err != nil {
			return params, err
		}
	}
	if b.FeeVault != "" {
		if params.FeeVault, err = parseKey("fee_vault", b.FeeVault); err != nil {
			return params, err
		}
	}
	if b.TreasuryWallet != "" {
		treasury, err := parseKey("treasury_wallet", b.TreasuryWallet)
		if err != nil {
			return params, err
		}
		params.TreasuryWallet = &treasury
	}
	return params, nil
}

func parseKey(field, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("bootstrap field %s is required", field)
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("bootstrap field %s: %w", field, err)
	}
	return pk, nil
}
