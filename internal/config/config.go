// Package config provides configuration loading for the canonic CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the enumerate driver's configuration.
type Config struct {
	// OutputPath is where the (query_id, subset, query) rows are
	// written, in OutputFormat. "-" means stdout.
	OutputPath string `mapstructure:"output"`

	// OutputFormat selects the row encoding: "csv" (default) or "yaml".
	OutputFormat string `mapstructure:"format"`

	// SemicolonInput treats the input file as one query per
	// semicolon-terminated statement rather than one query per line.
	SemicolonInput bool `mapstructure:"semicolonInput"`

	// MaxLevel caps enumeration at subsets of at most this many
	// relations. 0 means unbounded.
	MaxLevel int `mapstructure:"maxLevel"`

	// AliasCeiling rejects any query with more aliases than this before
	// enumeration begins, to keep the exponential blow-up bounded.
	AliasCeiling int `mapstructure:"aliasCeiling"`

	// Verbose enables JSON logging of every diagnostic and per-query
	// summary, followed by per-code diagnostic counts; otherwise none of
	// these are written, and only skipped queries are reported on stderr.
	Verbose bool `mapstructure:"verbose"`

	// StopOnError aborts the whole run on the first InputShape failure
	// instead of skipping that query and continuing.
	StopOnError bool `mapstructure:"stopOnError"`

	// Measure enables the optional row-count measurement supplement.
	Measure bool `mapstructure:"measure"`

	// Engine selects the measurement backend when Measure is enabled;
	// must match one of Engines' keys.
	Engine string `mapstructure:"engine"`

	// Engines holds per-backend connection configuration for the
	// measurement supplement.
	Engines EnginesConfig `mapstructure:"engines"`

	// Logging configuration for the driver's own diagnostics.
	Logging LoggingConfig `mapstructure:"logging"`
}

// EnginesConfig holds connection configuration for each measurement
// backend in internal/measure.
type EnginesConfig struct {
	DuckDB    DuckDBConfig    `mapstructure:"duckdb"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake"`
	Trino     TrinoConfig     `mapstructure:"trino"`
	BigQuery  BigQueryConfig  `mapstructure:"bigquery"`
}

// DuckDBConfig configures the duckdb RowCounter.
type DuckDBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Database string `mapstructure:"database"`
}

// SQLiteConfig configures the sqlite RowCounter.
type SQLiteConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Database string `mapstructure:"database"`
}

// PostgresConfig configures the postgres RowCounter, which also serves
// Redshift connection strings (both speak the postgres wire protocol).
type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslMode"`
}

// SnowflakeConfig configures the snowflake RowCounter.
type SnowflakeConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Account   string `mapstructure:"account"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Database  string `mapstructure:"database"`
	Schema    string `mapstructure:"schema"`
	Warehouse string `mapstructure:"warehouse"`
	Role      string `mapstructure:"role"`
}

// TrinoConfig configures the trino RowCounter.
type TrinoConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Catalog string `mapstructure:"catalog"`
	Schema  string `mapstructure:"schema"`
}

// BigQueryConfig configures the bigquery RowCounter.
type BigQueryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"projectId"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		OutputPath:     "-",
		OutputFormat:   "csv",
		SemicolonInput: false,
		MaxLevel:       0,
		AliasCeiling:   20,
		Verbose:        false,
		StopOnError:    false,
		Measure:        false,
		Engine:         "duckdb",
		Engines: EnginesConfig{
			DuckDB: DuckDBConfig{Enabled: true, Database: ":memory:"},
			SQLite: SQLiteConfig{Enabled: false, Database: ":memory:"},
			Postgres: PostgresConfig{
				Enabled: false,
				Port:    5432,
				SSLMode: "require",
			},
			Snowflake: SnowflakeConfig{Enabled: false},
			Trino: TrinoConfig{
				Enabled: false,
				Host:    "localhost",
				Port:    8080,
				Catalog: "hive",
				Schema:  "default",
			},
			BigQuery: BigQueryConfig{Enabled: false},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from file and environment, falling back to
// DefaultConfig's values where neither is set.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".canonic"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CANONIC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("output", d.OutputPath)
	v.SetDefault("format", d.OutputFormat)
	v.SetDefault("semicolonInput", d.SemicolonInput)
	v.SetDefault("maxLevel", d.MaxLevel)
	v.SetDefault("aliasCeiling", d.AliasCeiling)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("stopOnError", d.StopOnError)
	v.SetDefault("measure", d.Measure)
	v.SetDefault("engine", d.Engine)
	v.SetDefault("engines.duckdb.enabled", d.Engines.DuckDB.Enabled)
	v.SetDefault("engines.duckdb.database", d.Engines.DuckDB.Database)
	v.SetDefault("engines.sqlite.enabled", d.Engines.SQLite.Enabled)
	v.SetDefault("engines.sqlite.database", d.Engines.SQLite.Database)
	v.SetDefault("engines.postgres.enabled", d.Engines.Postgres.Enabled)
	v.SetDefault("engines.postgres.host", d.Engines.Postgres.Host)
	v.SetDefault("engines.postgres.port", d.Engines.Postgres.Port)
	v.SetDefault("engines.postgres.database", d.Engines.Postgres.Database)
	v.SetDefault("engines.postgres.user", d.Engines.Postgres.User)
	v.SetDefault("engines.postgres.sslMode", d.Engines.Postgres.SSLMode)
	v.SetDefault("engines.snowflake.enabled", d.Engines.Snowflake.Enabled)
	v.SetDefault("engines.snowflake.account", d.Engines.Snowflake.Account)
	v.SetDefault("engines.snowflake.user", d.Engines.Snowflake.User)
	v.SetDefault("engines.snowflake.database", d.Engines.Snowflake.Database)
	v.SetDefault("engines.snowflake.schema", d.Engines.Snowflake.Schema)
	v.SetDefault("engines.snowflake.warehouse", d.Engines.Snowflake.Warehouse)
	v.SetDefault("engines.trino.enabled", d.Engines.Trino.Enabled)
	v.SetDefault("engines.trino.host", d.Engines.Trino.Host)
	v.SetDefault("engines.trino.port", d.Engines.Trino.Port)
	v.SetDefault("engines.trino.catalog", d.Engines.Trino.Catalog)
	v.SetDefault("engines.trino.schema", d.Engines.Trino.Schema)
	v.SetDefault("engines.bigquery.enabled", d.Engines.BigQuery.Enabled)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
