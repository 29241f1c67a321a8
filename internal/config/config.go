// Package config loads the bot's configuration.
//
// The main config is a TOML file (path from CERAUNUS_CONFIG, default
// ./config/datacenter-config.toml) with logging, account, and exchange
// sections. Account credentials live outside it, in a CSV keyed by account
// name, so the TOML can be committed while keys stay out of the tree.
package config

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is used when CERAUNUS_CONFIG is unset.
const DefaultPath = "./config/datacenter-config.toml"

// EnvPathVar names the environment variable overriding the config path.
const EnvPathVar = "CERAUNUS_CONFIG"

// Config is the top-level configuration. Maps directly to the TOML file.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Account  AccountConfig  `mapstructure:"account"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
}

// LoggingConfig selects log verbosity and output encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // text | json
}

// AccountConfig names the trading account and where its credentials live.
type AccountConfig struct {
	Name           string `mapstructure:"name"`
	CredentialsCSV string `mapstructure:"credentials_csv"`
}

// Endpoints is one environment's REST/WS base URL pair.
type Endpoints struct {
	Rest string `mapstructure:"rest"`
	WS   string `mapstructure:"ws"`
}

// ExchangeConfig selects the environment and tunes the trading loop.
type ExchangeConfig struct {
	Environment string    `mapstructure:"environment"` // production | testnet
	Production  Endpoints `mapstructure:"production"`
	Testnet     Endpoints `mapstructure:"testnet"`

	Symbol          string `mapstructure:"symbol"`
	DepthLevels     int    `mapstructure:"depth_levels"`
	DepthIntervalMs int    `mapstructure:"depth_interval_ms"`
	SnapshotDepth   int    `mapstructure:"snapshot_depth"`
	QuoteQty        string `mapstructure:"quote_qty"`

	SnapshotDelay     time.Duration `mapstructure:"snapshot_delay"`
	QuoteInterval     time.Duration `mapstructure:"quote_interval"`
	CancelInterval    time.Duration `mapstructure:"cancel_interval"`
	ReportInterval    time.Duration `mapstructure:"report_interval"`
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
	StaleThreshold    time.Duration `mapstructure:"stale_threshold"`
}

// Endpoints returns the pair selected by Environment.
func (e *ExchangeConfig) Endpoints() (Endpoints, error) {
	switch e.Environment {
	case "production":
		return e.Production, nil
	case "testnet":
		return e.Testnet, nil
	default:
		return Endpoints{}, fmt.Errorf("exchange.environment must be production or testnet, got %q", e.Environment)
	}
}

// Path resolves the config file location from the environment.
func Path() string {
	if p := os.Getenv(EnvPathVar); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and decodes the TOML config file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Account.Name == "" {
		return fmt.Errorf("account.name is required")
	}
	if c.Account.CredentialsCSV == "" {
		return fmt.Errorf("account.credentials_csv is required")
	}
	if _, err := c.Exchange.Endpoints(); err != nil {
		return err
	}
	ep, _ := c.Exchange.Endpoints()
	if ep.Rest == "" || ep.WS == "" {
		return fmt.Errorf("exchange.%s.rest and .ws are required", c.Exchange.Environment)
	}
	if c.Exchange.Symbol == "" {
		return fmt.Errorf("exchange.symbol is required")
	}
	if c.Exchange.QuoteQty == "" {
		return fmt.Errorf("exchange.quote_qty is required")
	}
	if c.Exchange.SnapshotDepth <= 0 {
		return fmt.Errorf("exchange.snapshot_depth must be > 0")
	}
	if c.Exchange.QuoteInterval <= 0 {
		return fmt.Errorf("exchange.quote_interval must be > 0")
	}
	if c.Exchange.CancelInterval <= 0 {
		return fmt.Errorf("exchange.cancel_interval must be > 0")
	}
	if c.Exchange.ReportInterval <= 0 {
		return fmt.Errorf("exchange.report_interval must be > 0")
	}
	if c.Exchange.KeepaliveInterval <= 0 {
		return fmt.Errorf("exchange.keepalive_interval must be > 0")
	}
	if c.Exchange.StaleThreshold <= 0 {
		return fmt.Errorf("exchange.stale_threshold must be > 0")
	}
	return nil
}

// Credentials is one account row from the credentials CSV.
type Credentials struct {
	AccountName string
	APIKey      string
	APISecret   string
	Testnet     bool
}

// LoadCredentials finds the named account in a CSV with the header
// account_name,api_key,api_secret,testnet.
func LoadCredentials(path, name string) (*Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read credentials header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"account_name", "api_key", "api_secret", "testnet"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("credentials csv: missing column %q", required)
		}
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	for _, rec := range records {
		if rec[col["account_name"]] != name {
			continue
		}
		return &Credentials{
			AccountName: name,
			APIKey:      rec[col["api_key"]],
			APISecret:   rec[col["api_secret"]],
			Testnet:     strings.EqualFold(strings.TrimSpace(rec[col["testnet"]]), "true"),
		}, nil
	}
	return nil, fmt.Errorf("account %q not found in %s", name, path)
}
