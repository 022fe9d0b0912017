package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TRIALDASH_DATA_PATH.
const EnvPrefix = "TRIALDASH"

// Global configuration structure.
type Global struct {
	// Dataset
	DataPath   string   `mapstructure:"data_path" yaml:"data_path"`
	Delimiter  string   `mapstructure:"delimiter" yaml:"delimiter,omitempty"`
	SheetName  string   `mapstructure:"sheet_name" yaml:"sheet_name,omitempty"`
	SheetIndex int      `mapstructure:"sheet_index" yaml:"sheet_index"`
	NAValues   []string `mapstructure:"na_values" yaml:"na_values,omitempty"`

	// Cleaning
	DropColumns    []string `mapstructure:"drop_columns" yaml:"drop_columns"`
	MedianFallback float64  `mapstructure:"median_fallback" yaml:"median_fallback"`

	// Dashboard defaults
	DefaultCountryCount int `mapstructure:"default_country_count" yaml:"default_country_count"`
	DefaultTopN         int `mapstructure:"default_top_n" yaml:"default_top_n"`
	HistogramBins       int `mapstructure:"histogram_bins" yaml:"histogram_bins"`
	PreviewRows         int `mapstructure:"preview_rows" yaml:"preview_rows"`

	// HTTP server
	Listen             string   `mapstructure:"listen" yaml:"listen"`
	CORSOrigins        []string `mapstructure:"cors_origins" yaml:"cors_origins,omitempty"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	TrustProxy         bool     `mapstructure:"trust_proxy" yaml:"trust_proxy"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Download
	DownloadName      string `mapstructure:"download_name" yaml:"download_name"`
	IncludeStartMonth bool   `mapstructure:"include_start_month" yaml:"include_start_month"`
	S3                S3     `mapstructure:"s3" yaml:"s3"`
}

// S3 holds the optional upload destination for exports.
type S3 struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Key             string `mapstructure:"key" yaml:"key,omitempty"`
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	EndpointURL     string `mapstructure:"endpoint_url" yaml:"endpoint_url,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// Dir returns ~/.trialdash.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".trialdash"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.trialdash/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is read into the environment first without overriding it.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_path", "./COVID clinical trials.csv")
	v.SetDefault("delimiter", "")
	v.SetDefault("sheet_name", "")
	v.SetDefault("sheet_index", 1)
	v.SetDefault("na_values", []string{})
	v.SetDefault("drop_columns", []string{"Study Documents", "Results First Posted"})
	v.SetDefault("median_fallback", 0.0)
	v.SetDefault("default_country_count", 5)
	v.SetDefault("default_top_n", 10)
	v.SetDefault("histogram_bins", 100)
	v.SetDefault("preview_rows", 20)
	v.SetDefault("listen", ":8501")
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("rate_limit_per_minute", 0)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("download_name", "cleaned_covid_trials.csv")
	v.SetDefault("include_start_month", true)
	// Registered so AutomaticEnv can see the nested keys.
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.key", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint_url", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.force_path_style", false)
}

// Set assigns one key from its string form, as used by `config set`.
func (c *Global) Set(key, val string) error {
	switch key {
	case "data_path":
		c.DataPath = val
	case "delimiter":
		if len([]rune(val)) > 1 && val != `\t` && val != "tab" {
			return fmt.Errorf("invalid delimiter: %q (use a single character)", val)
		}
		c.Delimiter = val
	case "sheet_name":
		c.SheetName = val
	case "sheet_index":
		return setInt(&c.SheetIndex, key, val, 1)
	case "na_values":
		c.NAValues = splitList(val)
	case "drop_columns":
		c.DropColumns = splitList(val)
	case "median_fallback":
		return setFloat(&c.MedianFallback, key, val)
	case "default_country_count":
		return setInt(&c.DefaultCountryCount, key, val, 0)
	case "default_top_n":
		if err := setInt(&c.DefaultTopN, key, val, 5); err != nil {
			return err
		}
		if c.DefaultTopN > 20 {
			return fmt.Errorf("invalid default_top_n: %d (must be 5..20)", c.DefaultTopN)
		}
	case "histogram_bins":
		return setInt(&c.HistogramBins, key, val, 1)
	case "preview_rows":
		return setInt(&c.PreviewRows, key, val, 0)
	case "listen":
		c.Listen = val
	case "cors_origins":
		c.CORSOrigins = splitList(val)
	case "rate_limit_per_minute":
		return setInt(&c.RateLimitPerMinute, key, val, 0)
	case "trust_proxy":
		b, err := parseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for trust_proxy: %v", val)
		}
		c.TrustProxy = b
	case "log_level":
		c.LogLevel = val
	case "log_format":
		switch val {
		case "text", "json":
			c.LogFormat = val
		default:
			return fmt.Errorf("invalid log_format: %s (use text or json)", val)
		}
	case "download_name":
		c.DownloadName = val
	case "include_start_month":
		b, err := parseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for include_start_month: %v", val)
		}
		c.IncludeStartMonth = b
	case "s3.bucket":
		c.S3.Bucket = val
	case "s3.key":
		c.S3.Key = val
	case "s3.region":
		c.S3.Region = val
	case "s3.endpoint_url":
		c.S3.EndpointURL = val
	case "s3.access_key_id":
		c.S3.AccessKeyID = val
	case "s3.secret_access_key":
		c.S3.SecretAccessKey = val
	case "s3.force_path_style":
		b, err := parseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for s3.force_path_style: %v", val)
		}
		c.S3.ForcePathStyle = b
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}
