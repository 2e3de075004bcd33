package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elys-network/flywheel/internal/config"
	"github.com/elys-network/flywheel/internal/flywheel"
	"github.com/elys-network/flywheel/internal/types"
	"github.com/elys-network/flywheel/internal/utils"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var file, admin string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the flywheel config",
		Long: `Initialize the flywheel config from a YAML bootstrap file.
Fields the file omits take their defaults (50% buyback, 50% burn, one execution per hour);
token mint, fee vault and epoch bounds default to the service configuration.

Examples:
  flywheel init --admin <pubkey>
  flywheel init --file bootstrap.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootstrap := config.DefaultBootstrap
			if file != "" {
				var err error
				if bootstrap, err = config.LoadBootstrapFile(file); err != nil {
					return err
				}
			}
			if admin != "" {
				bootstrap.Admin = admin
			}
			params, err := bootstrap.InitParams(rootOpts.Config)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, err := a.engine.Initialize(cmd.Context(), params)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), rootOpts.Format, cfg, func(w io.Writer) { printConfig(w, cfg, 0) })
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML bootstrap file")
	cmd.Flags().StringVar(&admin, "admin", "", "admin public key (overrides the file)")
	return cmd
}

// NewUpdateConfigCommand creates the update-config command.
func NewUpdateConfigCommand(rootOpts *RootOptions) *cobra.Command {
	var caller, treasury string
	var buyback, burn, lpAdd uint16
	var interval int64

	cmd := &cobra.Command{
		Use:   "update-config",
		Short: "Change ratios, interval or treasury (admin only)",
		Long: `Change the distribution ratios, the minimum interval or the treasury wallet.
Only flags that are given are changed.

Examples:
  flywheel update-config --caller <admin> --burn-bps 2000 --lp-add-bps 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			callerKey, err := parseKeyFlag("caller", caller)
			if err != nil {
				return err
			}

			var params types.UpdateParams
			flags := cmd.Flags()
			if flags.Changed("buyback-bps") {
				params.BuybackBps = &buyback
			}
			if flags.Changed("burn-bps") {
				params.BurnBps = &burn
			}
			if flags.Changed("lp-add-bps") {
				params.LpAddBps = &lpAdd
			}
			if flags.Changed("min-interval") {
				params.MinIntervalSeconds = &interval
			}
			if flags.Changed("treasury") {
				key, err := parseKeyFlag("treasury", treasury)
				if err != nil {
					return err
				}
				params.TreasuryWallet = &key
			}
			if params.IsEmpty() {
				return fmt.Errorf("nothing to update: pass at least one of --buyback-bps, --burn-bps, --lp-add-bps, --min-interval, --treasury")
			}

			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, err := a.engine.UpdateConfig(cmd.Context(), callerKey, params)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), rootOpts.Format, cfg, func(w io.Writer) { printConfig(w, cfg, 0) })
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "admin public key")
	cmd.Flags().Uint16Var(&buyback, "buyback-bps", 0, "buyback share in basis points")
	cmd.Flags().Uint16Var(&burn, "burn-bps", 0, "burn share in basis points")
	cmd.Flags().Uint16Var(&lpAdd, "lp-add-bps", 0, "liquidity share in basis points")
	cmd.Flags().Int64Var(&interval, "min-interval", 0, "minimum seconds between executions")
	cmd.Flags().StringVar(&treasury, "treasury", "", "treasury wallet public key")
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}

// NewDepositCommand creates the deposit command.
func NewDepositCommand(rootOpts *RootOptions) *cobra.Command {
	var depositor, amount string
	var raw bool

	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit fees into the vault",
		Long: `Deposit fees into the vault. Amounts are in whole tokens (6 decimals)
unless --raw is given, in which case they are in the smallest unit.

Examples:
  flywheel deposit --depositor <pubkey> --amount 12.5
  flywheel deposit --depositor <pubkey> --amount 12500000 --raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			depositorKey, err := parseKeyFlag("depositor", depositor)
			if err != nil {
				return err
			}
			precision := types.TokenDecimals
			if raw {
				precision = 0
			}
			units, err := utils.ParseAmount(amount, precision)
			if err != nil {
				return fmt.Errorf("%w: %v", flywheel.ErrInvalidAmount, err)
			}

			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			receipt, err := a.engine.Deposit(cmd.Context(), depositorKey, units)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), rootOpts.Format, receipt, func(w io.Writer) {
				fmt.Fprintf(w, "Deposited %s (vault balance %s)\ntx: %s\n",
					utils.FormatAmount(receipt.Amount, types.TokenDecimals),
					utils.FormatAmount(receipt.VaultBalance, types.TokenDecimals),
					receipt.TxHash)
			})
		},
	}

	cmd.Flags().StringVar(&depositor, "depositor", "", "depositor public key")
	cmd.Flags().StringVar(&amount, "amount", "", "amount to deposit")
	cmd.Flags().BoolVar(&raw, "raw", false, "amount is in the smallest unit")
	_ = cmd.MarkFlagRequired("depositor")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// NewExecuteCommand creates the execute command.
func NewExecuteCommand(rootOpts *RootOptions) *cobra.Command {
	var executor string

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run one flywheel cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			executorKey, err := parseKeyFlag("executor", executor)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.Execute(cmd.Context(), executorKey)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), rootOpts.Format, result, func(w io.Writer) {
				fmt.Fprintf(w, "Processed %s fees\n", utils.FormatAmount(result.FeesProcessed, types.TokenDecimals))
				fmt.Fprintf(w, "  buyback:   %s (acquired %s)\n", utils.FormatAmount(result.BuybackAmount, types.TokenDecimals), utils.FormatAmount(result.Acquired, types.TokenDecimals))
				fmt.Fprintf(w, "  burn:      %s\n", utils.FormatAmount(result.BurnAmount, types.TokenDecimals))
				fmt.Fprintf(w, "  lp add:    %s\n", utils.FormatAmount(result.LpAddAmount, types.TokenDecimals))
				fmt.Fprintf(w, "  remainder: %s\n", utils.FormatAmount(result.Remainder, types.TokenDecimals))
				fmt.Fprintf(w, "Burned %s, supply now %s\ntx: %s\n",
					utils.FormatAmount(result.Burned, types.TokenDecimals),
					utils.FormatAmount(result.TotalSupply, types.TokenDecimals),
					result.TxHash)
			})
		},
	}

	cmd.Flags().StringVar(&executor, "executor", "", "executor public key")
	_ = cmd.MarkFlagRequired("executor")
	return cmd
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	var caller, recipient string

	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Emergency-withdraw the whole vault balance (admin only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			callerKey, err := parseKeyFlag("caller", caller)
			if err != nil {
				return err
			}
			recipientKey, err := parseKeyFlag("recipient", recipient)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			receipt, err := a.engine.EmergencyWithdraw(cmd.Context(), callerKey, recipientKey)
			if err != nil {
				return err
			}
			return printOutput(cmd.OutOrStdout(), rootOpts.Format, receipt, func(w io.Writer) {
				fmt.Fprintf(w, "Withdrew %s to %s\ntx: %s\n",
					utils.FormatAmount(receipt.Amount, types.TokenDecimals), receipt.Recipient, receipt.TxHash)
			})
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "admin public key")
	cmd.Flags().StringVar(&recipient, "recipient", "", "recipient public key")
	_ = cmd.MarkFlagRequired("caller")
	_ = cmd.MarkFlagRequired("recipient")
	return cmd
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the flywheel config and vault balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, balance, err := a.engine.Config(cmd.Context())
			if err != nil {
				return err
			}
			out := map[string]interface{}{"config": cfg, "vaultBalance": balance}
			return printOutput(cmd.OutOrStdout(), rootOpts.Format, out, func(w io.Writer) { printConfig(w, cfg, balance) })
		},
	}
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer a.Close()

			events := a.events.List(limit)
			return printOutput(cmd.OutOrStdout(), rootOpts.Format, events, func(w io.Writer) {
				if len(events) == 0 {
					fmt.Fprintln(w, "No events")
					return
				}
				for _, ev := range events {
					fmt.Fprintf(w, "#%-5d %s  %-18s %s\n", ev.Seq,
						time.Unix(ev.Timestamp, 0).UTC().Format(time.RFC3339), ev.Type, ev.TxHash)
				}
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of events")
	return cmd
}

func parseKeyFlag(name, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("--%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("--%s: %w", name, err)
	}
	return key, nil
}

func printOutput(w io.Writer, format string, v interface{}, text func(io.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func printConfig(w io.Writer, cfg *types.FlywheelConfig, balance uint64) {
	fmt.Fprintf(w, "Admin:          %s\n", cfg.Admin)
	fmt.Fprintf(w, "Token mint:     %s\n", cfg.TokenMint)
	fmt.Fprintf(w, "Fee vault:      %s\n", cfg.FeeVault)
	if cfg.TreasuryWallet != nil {
		fmt.Fprintf(w, "Treasury:       %s\n", *cfg.TreasuryWallet)
	}
	fmt.Fprintf(w, "Split:          buyback %s, burn %s, lp %s\n",
		utils.FormatBps(cfg.BuybackBps), utils.FormatBps(cfg.BurnBps), utils.FormatBps(cfg.LpAddBps))
	fmt.Fprintf(w, "Epoch:          %s .. %s\n",
		time.Unix(cfg.EpochStart, 0).UTC().Format(time.RFC3339), time.Unix(cfg.EpochEnd, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Min interval:   %ds\n", cfg.MinIntervalSeconds)
	fmt.Fprintf(w, "Vault balance:  %s\n", utils.FormatAmount(balance, types.TokenDecimals))
	fmt.Fprintf(w, "Fees collected: %s\n", utils.FormatAmount(cfg.TotalFeesCollected, types.TokenDecimals))
	fmt.Fprintf(w, "Bought back:    %s\n", utils.FormatAmount(cfg.TotalBoughtBack, types.TokenDecimals))
	fmt.Fprintf(w, "Burned:         %s\n", utils.FormatAmount(cfg.TotalBurned, types.TokenDecimals))
	fmt.Fprintf(w, "LP added:       %s\n", utils.FormatAmount(cfg.TotalLpAdded, types.TokenDecimals))
	fmt.Fprintf(w, "Withdrawn:      %s\n", utils.FormatAmount(cfg.TotalWithdrawn, types.TokenDecimals))
}
