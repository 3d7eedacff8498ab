package main

import (
	"github.com/google/wire"
	"github.com/pandodao/token-bridge/store/account"
	"github.com/pandodao/token-bridge/store/conversion"
	"github.com/pandodao/token-bridge/store/db"
	"github.com/pandodao/token-bridge/store/session"
	"github.com/spf13/viper"
	"github.com/tsenart/nap"
)

var storeSet = wire.NewSet(
	provideDB,
	account.New,
	conversion.New,
	session.New,
)

func provideDB(v *viper.Viper) (*nap.DB, func(), error) {
	v.SetDefault("db.driver", db.DriverMySQL)

	driver := v.GetString("db.driver")
	dsn := v.GetString("db.dsn")

	for _, replica := range v.GetStringSlice("db.replicas") {
		dsn += ";" + replica
	}

	conn, err := nap.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}

	if err := db.Migrate(conn.Master(), db.MigrateData{Driver: driver}); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	return conn, func() { _ = conn.Close() }, nil
}
