package config

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/valtbridge/bridge-service/coinmiddleware"
	"github.com/valtbridge/bridge-service/db"
	"github.com/valtbridge/bridge-service/etherman"
	"github.com/valtbridge/bridge-service/feedistributor"
	"github.com/valtbridge/bridge-service/hedera"
	"github.com/valtbridge/bridge-service/messagepush"
	"github.com/valtbridge/bridge-service/metrics"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/precheck"
	"github.com/valtbridge/bridge-service/redisstorage"
	"github.com/valtbridge/bridge-service/releasetxman"
	"github.com/valtbridge/bridge-service/server"
	"github.com/valtbridge/bridge-service/synchronizer"
)

const envPrefix = "VALT_BRIDGE"

// Config struct
type Config struct {
	Log               log.Config
	Database          db.Config
	Etherman          etherman.Config
	Hedera            hedera.Config
	Synchronizer      synchronizer.Config
	Precheck          precheck.Config
	ReleaseTxManager  releasetxman.Config
	FeeDistributor    feedistributor.Config
	BridgeServer      server.Config
	Redis             redisstorage.Config
	CoinKafkaConsumer coinmiddleware.Config
	PriceFeed         coinmiddleware.PriceFeedConfig
	MessagePush       messagepush.Config
	Metrics           metrics.Config
	Networks          []NetworkConfig

	networks *network.Set
}

// NetworkSet returns the validated networks, built by Load
func (c *Config) NetworkSet() *network.Set {
	return c.networks
}

// Load loads the configuration
func Load(configFilePath string) (*Config, error) {
	var cfg Config
	v := viper.New()
	v.SetConfigType("toml")

	err := v.ReadConfig(bytes.NewBuffer([]byte(DefaultValues)))
	if err != nil {
		return nil, err
	}
	if configFilePath != "" {
		dirName, fileName := filepath.Split(configFilePath)

		fileExtension := strings.TrimPrefix(filepath.Ext(fileName), ".")
		fileNameWithoutExtension := strings.TrimSuffix(fileName, "."+fileExtension)

		v.AddConfigPath(dirName)
		v.SetConfigName(fileNameWithoutExtension)
		v.SetConfigType(fileExtension)
		err = v.MergeInConfig()
		if err != nil {
			_, ok := err.(viper.ConfigFileNotFoundError)
			if !ok {
				return nil, errors.Wrapf(err, "error reading config file %s", configFilePath)
			}
			log.Infof("config file %s not found, using defaults", configFilePath)
		}
	}
	v.AutomaticEnv()
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.SetEnvPrefix(envPrefix)

	err = v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, err
	}

	nets, err := ResolveNetworks(cfg.Networks)
	if err != nil {
		return nil, err
	}
	cfg.networks, err = network.NewSet(nets)
	if err != nil {
		return nil, errors.Wrap(err, "invalid network configuration")
	}
	return &cfg, nil
}
