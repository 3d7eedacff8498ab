package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/pandodao/token-bridge/store"
	"github.com/pandodao/token-bridge/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsErrDuplicate(t *testing.T) {
	db := storetest.DB(t)
	ctx := context.Background()

	const insert = "INSERT INTO properties (`key`, `value`) VALUES (?, ?)"
	_, err := db.ExecContext(ctx, insert, "k", "1")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "k", "2")
	require.Error(t, err)
	assert.True(t, store.IsErrDuplicate(err), "sqlite: %v", err)

	assert.True(t, store.IsErrDuplicate(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, store.IsErrDuplicate(&mysql.MySQLError{Number: 1213}))
	assert.False(t, store.IsErrDuplicate(errors.New("boom")))
	assert.False(t, store.IsErrDuplicate(sql.ErrNoRows))
	assert.True(t, store.IsErrNotFound(fmt.Errorf("find: %w", sql.ErrNoRows)))
}
