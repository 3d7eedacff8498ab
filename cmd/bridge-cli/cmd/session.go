package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <account>",
	Short: "open a session for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var session map[string]any
		if err := call(cmd, http.MethodPost, "/sessions", map[string]string{"account_id": args[0]}, &session); err != nil {
			return err
		}

		return printJson(cmd, session)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "close the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, http.MethodDelete, "/session", nil, nil)
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect [wallet]",
	Short: "connect a wallet to the session, or disconnect without argument",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var wallet string
		if len(args) == 1 {
			wallet = args[0]
		}

		var profile map[string]any
		if err := call(cmd, http.MethodPut, "/session/wallet", map[string]string{"wallet": wallet}, &profile); err != nil {
			return err
		}

		return printJson(cmd, profile)
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "show the account, wallet and balances of the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		var profile map[string]any
		if err := call(cmd, http.MethodGet, "/me", nil, &profile); err != nil {
			return err
		}

		return printJson(cmd, profile)
	},
}

var bindOpt struct {
	Proof string
}

var bindCmd = &cobra.Command{
	Use:   "bind",
	Short: "verify the connected wallet and bind it to the account",
	RunE: func(cmd *cobra.Command, args []string) error {
		var body any
		if bindOpt.Proof != "" {
			body = map[string]string{"proof": bindOpt.Proof}
		}

		var profile map[string]any
		if err := call(cmd, http.MethodPost, "/bind", body, &profile); err != nil {
			return err
		}

		return printJson(cmd, profile)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, connectCmd, meCmd, bindCmd)

	bindCmd.Flags().StringVar(&bindOpt.Proof, "proof", "", "signed verification transaction (hex, optional)")
}
