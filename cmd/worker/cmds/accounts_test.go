package cmds

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pandodao/token-bridge/store/account"
	"github.com/pandodao/token-bridge/store/storetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledger = `[
  {"Account Number": 1001, "Account Owner": "Alice", "Balance": 1000.5, "Wallet Address": "0x1111111111111111111111111111111111111111"},
  {"Account Number": "1002", "Account Owner": "Bob", "Balance": "250"}
]`

func TestReadAccountRecords(t *testing.T) {
	records, err := readAccountRecords(strings.NewReader(ledger))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, flexString("1001"), records[0].Number)
	assert.True(t, records[0].Balance.Equal(decimal.RequireFromString("1000.5")))
	assert.Equal(t, flexString("1002"), records[1].Number)
	assert.Empty(t, records[1].Wallet)

	tests := map[string]string{
		"missing number":   `[{"Account Owner": "x", "Balance": 1}]`,
		"negative balance": `[{"Account Number": 1, "Balance": -1}]`,
		"bad wallet":       `[{"Account Number": 1, "Balance": 1, "Wallet Address": "0x12"}]`,
		"not a list":       `{}`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := readAccountRecords(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestImportAccounts(t *testing.T) {
	ctx := context.Background()
	accounts := account.New(storetest.DB(t))

	file := filepath.Join(t.TempDir(), "database.json")
	require.NoError(t, os.WriteFile(file, []byte(ledger), 0o600))

	run := func(args ...string) string {
		var out bytes.Buffer
		cmd := (&Cmd{Accounts: accounts}).importAccountsCmd()
		cmd.SetArgs(args)
		cmd.SetOut(&out)
		require.NoError(t, cmd.ExecuteContext(ctx))
		return out.String()
	}

	out := run(file)
	assert.Contains(t, out, "2 accounts created")

	alice, err := accounts.Find(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "Alice", alice.Owner)
	assert.False(t, alice.Bound(), "legacy wallets are not trusted by default")

	out = run(file, "--trust-wallets")
	assert.Contains(t, out, "0 accounts created, 2 skipped")
}
