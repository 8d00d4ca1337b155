package config

import (
	"fmt"

	"github.com/organregistry/etl/internal/db"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the loader process configuration.
type Config struct {
	Database      db.Config `validate:"required"`
	LogLevel      string    `validate:"omitempty,oneof=debug info warn error"`
	ErrorRateWarn float64   `validate:"gte=0,lte=1"`
	DataDir       string
	DryRun        bool
}

// Defaults returns the configuration used when no file or env overrides are
// present.
func Defaults() Config {
	return Config{
		Database:      db.DefaultConfig(),
		LogLevel:      "info",
		ErrorRateWarn: 0.10,
		DataDir:       "./data",
	}
}

// Load reads config.yaml from the given path, applies env overrides
// (prefix ETL_, e.g. ETL_DATABASE_HOST) and validates the result.
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("ETL")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("log_level")
	v.BindEnv("error_rate_warn")
	v.BindEnv("data_dir")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file; defaults plus env overrides apply.
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("error_rate_warn") {
		cfg.ErrorRateWarn = v.GetFloat64("error_rate_warn")
	}
	if v.IsSet("data_dir") {
		cfg.DataDir = v.GetString("data_dir")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
