package cmds

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pandodao/token-bridge/core"
	"github.com/spf13/cobra"
)

type Cmd struct {
	Accounts    core.AccountStore
	Conversions core.ConversionStore
	Conversionz core.ConversionService
}

func (c *Cmd) Run(ctx context.Context, args []string) error {
	root := &cobra.Command{
		Use:          "bridge-worker",
		Short:        "operator commands of the token bridge",
		SilenceUsage: true,
	}

	root.AddCommand(c.importAccountsCmd())
	root.AddCommand(c.listAccountsCmd())
	root.AddCommand(c.listPendingCmd())
	root.AddCommand(c.showConversionCmd())
	root.AddCommand(c.reconcileCmd())

	root.SetArgs(args)
	root.SetOut(os.Stdout)

	return root.ExecuteContext(ctx)
}

func jsonPrint(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
