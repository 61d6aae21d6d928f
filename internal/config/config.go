// Package config loads optional file/env configuration layered under CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds run settings overridable by flags: flags win over the config
// file, which wins over environment variables and defaults.
type Config struct {
	DBPath    string        `mapstructure:"db_path"`
	AliasFile string        `mapstructure:"alias_file"`
	Ratings   RatingsConfig `mapstructure:"ratings"`
}

// RatingsConfig configures the optional ratings enrichment client.
type RatingsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// DefaultDBPath is used when neither flag nor config provide one.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".pinstats", "league.db")
}

// Load reads .env (if present) and an optional YAML config file. An empty path
// checks the default locations; a missing file is not an error, since every
// setting has a flag or default.
func Load(path string) (*Config, error) {
	// .env first so PINSTATS_* variables are visible to viper.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PINSTATS")
	v.AutomaticEnv()
	v.SetDefault("db_path", DefaultDBPath())
	v.SetDefault("ratings.base_url", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("pinstats")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(mustHome(), ".pinstats"))
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func mustHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
