package main

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/wire"
	"github.com/pandodao/token-bridge/service/binding"
	"github.com/pandodao/token-bridge/service/conversion"
	"github.com/pandodao/token-bridge/service/identity"
	"github.com/pandodao/token-bridge/service/locker"
	"github.com/pandodao/token-bridge/service/token"
	"github.com/spf13/viper"
)

var serviceSet = wire.NewSet(
	provideEthClient,
	wire.Bind(new(token.Client), new(*ethclient.Client)),
	provideSigningKeys,
	provideTokenConfig,
	token.New,
	locker.New,
	provideBindingConfig,
	binding.New,
	provideConversionConfig,
	conversion.New,
	provideIdentityConfig,
	identity.New,
)

func provideEthClient(v *viper.Viper) (*ethclient.Client, func(), error) {
	client, err := ethclient.Dial(v.GetString("chain.endpoint"))
	if err != nil {
		return nil, nil, err
	}

	return client, client.Close, nil
}

// provideSigningKeys loads the hex private keys of the operator and of any
// wallets the service may sign verifications for.
func provideSigningKeys(v *viper.Viper) ([]*ecdsa.PrivateKey, error) {
	var keys []*ecdsa.PrivateKey
	for idx, s := range v.GetStringSlice("chain.keys") {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
		if err != nil {
			return nil, fmt.Errorf("chain.keys[%d]: %w", idx, err)
		}

		keys = append(keys, key)
	}

	return keys, nil
}

func provideTokenConfig(v *viper.Viper) token.Config {
	v.SetDefault("chain.poll_interval", "2s")

	return token.Config{
		Contract:      v.GetString("chain.contract"),
		Operator:      v.GetString("chain.operator"),
		ChainID:       v.GetInt64("chain.chain_id"),
		Confirmations: v.GetUint64("chain.confirmations"),
		PollInterval:  v.GetDuration("chain.poll_interval"),
	}
}

func provideBindingConfig(v *viper.Viper) binding.Config {
	v.SetDefault("chain.confirm_timeout", "2m")

	return binding.Config{
		ConfirmTimeout: v.GetDuration("chain.confirm_timeout"),
	}
}

func provideConversionConfig(v *viper.Viper) conversion.Config {
	v.SetDefault("chain.confirm_timeout", "2m")
	v.SetDefault("conversion.fiat_scale", 2)
	v.SetDefault("conversion.stale_after", "10m")
	v.SetDefault("recoverer.window", "24h")

	return conversion.Config{
		ConfirmTimeout: v.GetDuration("chain.confirm_timeout"),
		FiatScale:      v.GetInt32("conversion.fiat_scale"),
		StaleAfter:     v.GetDuration("conversion.stale_after"),
		// failed conversions are watched by the recoverer for as long as
		// their fiat is held
		Window: v.GetDuration("recoverer.window"),
	}
}

func provideIdentityConfig(v *viper.Viper) identity.Config {
	v.SetDefault("session.ttl", "24h")

	return identity.Config{
		TTL: v.GetDuration("session.ttl"),
	}
}
