package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServeConfig holds configuration for the serve command, loaded from flags,
// env, or config file.
type ServeConfig struct {
	Addr           string
	FactoryAddress string
	PGDSN          string
	UseMemory      bool
	AuditLog       string
	MaxRetries     int
	RetryBackoff   time.Duration
	LogLevel       string
}

// LoadServe merges config file, environment variables, and flags into
// ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v := newViper()

	v.SetDefault("addr", ":8080")
	v.SetDefault("max-retries", 2)
	v.SetDefault("retry-backoff", 50*time.Millisecond)
	v.SetDefault("log-level", "info")

	if err := bind(v, cfgFile, flags); err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Addr:           v.GetString("addr"),
		FactoryAddress: v.GetString("factory-address"),
		PGDSN:          v.GetString("pg-dsn"),
		UseMemory:      v.GetBool("memory"),
		AuditLog:       v.GetString("audit-log"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	In             string
	FactoryAddress string
	PGDSN          string
	UseMemory      bool
	LogLevel       string
}

// LoadReplay merges config file, environment variables, and flags into
// ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v := newViper()

	v.SetDefault("log-level", "info")

	if err := bind(v, cfgFile, flags); err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		In:             v.GetString("in"),
		FactoryAddress: v.GetString("factory-address"),
		PGDSN:          v.GetString("pg-dsn"),
		UseMemory:      v.GetBool("memory"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PROJECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func bind(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
