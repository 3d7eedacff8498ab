package cmd

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var convertOpt struct {
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Nonce     string          `json:"nonce,omitempty"`
}

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert [key]",
	Short: "convert between fiat and token, or show a conversion by key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return showConversion(cmd, args[0])
		}

		if convertOpt.Nonce == "" {
			convertOpt.Nonce = uuid.NewString()
		}

		amount, err := decimal.NewFromString(cmd.Flag("amount").Value.String())
		if err != nil {
			return err
		}
		convertOpt.Amount = amount

		var resp map[string]any
		if err := call(cmd, http.MethodPost, "/conversions", convertOpt, &resp); err != nil {
			return err
		}

		return printJson(cmd, resp)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVar(&convertOpt.Direction, "direction", "FiatToToken", "FiatToToken or TokenToFiat")
	convertCmd.Flags().String("amount", "0", "amount")
	convertCmd.Flags().StringVar(&convertOpt.Nonce, "nonce", "", "nonce, reuse it to retry a conversion (optional)")
}

func showConversion(cmd *cobra.Command, key string) error {
	var c map[string]any
	if err := call(cmd, http.MethodGet, "/conversions/"+url.PathEscape(key), nil, &c); err != nil {
		return err
	}

	return printJson(cmd, c)
}
