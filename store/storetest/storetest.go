// Package storetest opens migrated sqlite databases for store tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/pandodao/token-bridge/store/db"
	"github.com/tsenart/nap"
)

// DB returns a fresh, migrated sqlite database living in t.TempDir.
func DB(t testing.TB) *nap.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "bridge.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
	conn, err := nap.Open(db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	t.Cleanup(func() { _ = conn.Close() })

	if err := db.Migrate(conn.Master(), db.MigrateData{Driver: db.DriverSQLite}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return conn
}
