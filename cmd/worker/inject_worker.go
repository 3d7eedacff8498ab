package main

import (
	"github.com/google/wire"
	"github.com/pandodao/token-bridge/worker/cleaner"
	"github.com/pandodao/token-bridge/worker/reconciler"
	"github.com/pandodao/token-bridge/worker/recoverer"
	"github.com/spf13/viper"
)

var workerSet = wire.NewSet(
	reconciler.New,
	provideRecovererConfig,
	recoverer.New,
	provideCleanerConfig,
	cleaner.New,
)

func provideRecovererConfig(v *viper.Viper) recoverer.Config {
	v.SetDefault("recoverer.window", "24h")

	return recoverer.Config{
		Window: v.GetDuration("recoverer.window"),
	}
}

func provideCleanerConfig(v *viper.Viper) cleaner.Config {
	v.SetDefault("cleaner.interval", "1m")

	return cleaner.Config{
		Interval: v.GetDuration("cleaner.interval"),
	}
}
