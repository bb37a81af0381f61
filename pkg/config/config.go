// Package config provides a reusable loader for a validator node's
// configuration: peer-registry location, heartbeat/consensus timing, and
// logging. It is a struct-of-structs with mapstructure/json tags, an
// optional YAML file merged with environment overrides via viper.
//
// Version: v0.1.0
package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"miniledger/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Defaults applied whenever a setting is left unspecified.
const (
	DefaultRegistryPath       = "accepted_ports.json"
	DefaultHeartbeatPeriodMS  = 5000
	DefaultHeartbeatTimeoutMS = 10000
	DefaultSnapshotDelayMS    = 5000
	DefaultFaucetAmount       = 100
)

// Config is the unified configuration for a validator node.
type Config struct {
	Node struct {
		ID                 string `mapstructure:"id" json:"id"`
		RegistryPath       string `mapstructure:"registry_path" json:"registry_path"`
		HeartbeatPeriodMS  int    `mapstructure:"heartbeat_period_ms" json:"heartbeat_period_ms"`
		HeartbeatTimeoutMS int    `mapstructure:"heartbeat_timeout_ms" json:"heartbeat_timeout_ms"`
		SnapshotDelayMS    int    `mapstructure:"snapshot_delay_ms" json:"snapshot_delay_ms"`
		IntegrationTest    bool   `mapstructure:"integration_test" json:"integration_test"`
		Verbose            bool   `mapstructure:"verbose" json:"verbose"`
		PersistDir         string `mapstructure:"persist_dir" json:"persist_dir"`
		PersistGzip        bool   `mapstructure:"persist_gzip" json:"persist_gzip"`
		InspectAddr        string `mapstructure:"inspect_addr" json:"inspect_addr"`
	} `mapstructure:"node" json:"node"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load.
var AppConfig Config

// Load reads node.yaml (if present) from configPath, merges environment
// overrides, and fills in spec-mandated defaults for anything left unset.
// A missing config file is not an error — accepted_ports.json alone is
// enough to run a node; node.yaml only tunes timing and logging.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load() // optional .env, ignored if absent

	viper.SetDefault("node.registry_path", DefaultRegistryPath)
	viper.SetDefault("node.heartbeat_period_ms", DefaultHeartbeatPeriodMS)
	viper.SetDefault("node.heartbeat_timeout_ms", DefaultHeartbeatTimeoutMS)
	viper.SetDefault("node.snapshot_delay_ms", DefaultSnapshotDelayMS)
	viper.SetDefault("logging.level", "info")

	viper.SetConfigName("node")
	viper.SetConfigType("yaml")
	if configPath != "" {
		viper.AddConfigPath(configPath)
	}
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, utils.Wrap(err, "load node config")
		}
	}

	viper.SetEnvPrefix("MINILEDGER")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal node config")
	}

	if AppConfig.Node.RegistryPath == "" {
		AppConfig.Node.RegistryPath = DefaultRegistryPath
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the MINILEDGER_CONFIG_DIR
// environment variable as the directory to search for node.yaml.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("MINILEDGER_CONFIG_DIR", ""))
}
