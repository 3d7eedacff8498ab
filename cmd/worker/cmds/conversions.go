package cmds

import (
	"github.com/pandodao/token-bridge/core"
	"github.com/spf13/cobra"
)

func (c *Cmd) listPendingCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list-pending",
		Short: "list conversions waiting for reconciliation",
		RunE: func(cmd *cobra.Command, args []string) error {
			conversions, err := c.Conversions.ListPhase(cmd.Context(), core.ConversionPhaseReconciliationPending, limit)
			if err != nil {
				return err
			}

			return jsonPrint(cmd, conversions)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "max conversions")
	return cmd
}

func (c *Cmd) showConversionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-conversion <key>",
		Short: "show a conversion by idempotency key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversion, err := c.Conversionz.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return jsonPrint(cmd, conversion)
		},
	}
}

func (c *Cmd) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <key>",
		Short: "apply the ledger half of a reconciliation pending conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversion, err := c.Conversionz.Reconcile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return jsonPrint(cmd, conversion)
		},
	}
}
