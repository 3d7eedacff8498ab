package cmds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pandodao/generic"
	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/store"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}

		*s = flexString(v)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}

	*s = flexString(n.String())
	return nil
}

// accountRecord is one entry of a legacy account ledger file.
type accountRecord struct {
	Number  flexString      `json:"Account Number"`
	Owner   string          `json:"Account Owner"`
	Balance decimal.Decimal `json:"Balance"`
	Wallet  string          `json:"Wallet Address,omitempty"`
}

func readAccountRecords(r io.Reader) ([]*accountRecord, error) {
	var records []*accountRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, err
	}

	for idx, record := range records {
		if record.Number == "" {
			return nil, fmt.Errorf("record %d: missing account number", idx)
		}

		if record.Balance.IsNegative() {
			return nil, fmt.Errorf("record %d: negative balance %s", idx, record.Balance)
		}

		if record.Wallet != "" && !common.IsHexAddress(record.Wallet) {
			return nil, fmt.Errorf("record %d: invalid wallet %q", idx, record.Wallet)
		}
	}

	return records, nil
}

func (c *Cmd) importAccountsCmd() *cobra.Command {
	var trustWallets bool

	cmd := &cobra.Command{
		Use:   "import-accounts <file>",
		Short: "import accounts from a legacy ledger json file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}

			defer f.Close()

			records, err := readAccountRecords(f)
			if err != nil {
				return err
			}

			var created, skipped int
			for _, record := range records {
				id := string(record.Number)
				if _, err := c.Accounts.Find(ctx, id); err == nil {
					cmd.Printf("account %s exists, skipped\n", id)
					skipped++
					continue
				} else if !store.IsErrNotFound(err) {
					return err
				}

				account := &core.Account{
					ID:      id,
					Owner:   record.Owner,
					Balance: record.Balance,
				}

				if err := c.Accounts.Create(ctx, account); err != nil {
					return fmt.Errorf("create account %s: %w", id, err)
				}

				created++

				// legacy wallets were never proven on chain
				if record.Wallet == "" {
					continue
				}

				if !trustWallets {
					cmd.Printf("account %s: wallet %s left unbound, bind it through verification\n", id, record.Wallet)
					continue
				}

				if err := c.Accounts.BindWallet(ctx, id, record.Wallet, "import"); err != nil {
					return fmt.Errorf("bind wallet of %s: %w", id, err)
				}
			}

			cmd.Printf("%d accounts created, %d skipped\n", created, skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&trustWallets, "trust-wallets", false, "bind recorded wallets without on-chain verification")
	return cmd
}

type accountView struct {
	ID      string          `json:"id"`
	Owner   string          `json:"owner"`
	Balance decimal.Decimal `json:"balance"`
	Wallet  string          `json:"wallet,omitempty"`
}

func viewAccount(a *core.Account) accountView {
	return accountView{ID: a.ID, Owner: a.Owner, Balance: a.Balance, Wallet: a.Wallet}
}

func (c *Cmd) listAccountsCmd() *cobra.Command {
	var (
		offset string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list-accounts",
		Short: "list accounts ordered by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := c.Accounts.List(cmd.Context(), offset, limit)
			if err != nil {
				return err
			}

			return jsonPrint(cmd, generic.MapSlice(accounts, viewAccount))
		},
	}

	cmd.Flags().StringVar(&offset, "offset", "", "list accounts after this id")
	cmd.Flags().IntVar(&limit, "limit", 100, "max accounts")
	return cmd
}
