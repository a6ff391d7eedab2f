package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/solatis/eventfilter/internal/filter"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	def := DefaultConfig()

	// Set defaults matching DefaultConfig
	v.SetDefault("filter.listen", def.Filter.Listen)
	v.SetDefault("filter.context_attribute", def.Filter.ContextAttribute)
	v.SetDefault("filter.sequence_time_limit", def.Filter.SequenceTimeLimit.String())
	v.SetDefault("filter.selector_fields", def.Filter.SelectorFields)
	v.SetDefault("filter.rules_file", "")
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.http_addr", def.Server.HTTPAddr)
	v.SetDefault("server.max_connections", def.Server.MaxConnections)
	v.SetDefault("server.request_timeout", def.Server.RequestTimeout.String())
	v.SetDefault("server.max_batch_size", def.Server.MaxBatchSize)
	v.SetDefault("server.data_dir", def.Server.DataDir)
	v.SetDefault("database.url", "")

	// Bind environment variables with EF_ prefix
	v.SetEnvPrefix("EF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Credentials belong in the environment, never in a config file
	if err := validateNoSecretsInConfig(v, configPath); err != nil {
		return nil, err
	}

	cfg := &Config{
		Filter: FilterConfig{
			Listen:            v.GetStringSlice("filter.listen"),
			ContextAttribute:  v.GetString("filter.context_attribute"),
			SequenceTimeLimit: v.GetDuration("filter.sequence_time_limit"),
			SelectorFields:    v.GetStringSlice("filter.selector_fields"),
			RulesFile:         v.GetString("filter.rules_file"),
			Categories:        def.Filter.Categories,
		},
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			HTTPAddr:       v.GetString("server.http_addr"),
			MaxConnections: v.GetInt("server.max_connections"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MaxBatchSize:   v.GetInt("server.max_batch_size"),
			DataDir:        v.GetString("server.data_dir"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
	}

	// result_types has no default: unset means engine defaults, an explicit
	// empty list disables emission.
	if v.IsSet("filter.result_types") {
		cfg.Filter.ResultTypes = append([]string{}, v.GetStringSlice("filter.result_types")...)
	}

	if v.IsSet("filter.categories") {
		var categories []filter.Category
		if err := v.UnmarshalKey("filter.categories", &categories); err != nil {
			return nil, fmt.Errorf("invalid filter.categories: %w", err)
		}
		cfg.Filter.Categories = categories
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range, positive limits and a usable listener setup.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", cfg.Server.MaxBatchSize)
	}
	if cfg.Filter.SequenceTimeLimit < 0 {
		return fmt.Errorf("sequence_time_limit must not be negative, got %v", cfg.Filter.SequenceTimeLimit)
	}
	if len(strings.Fields(strings.Join(cfg.Filter.Listen, " "))) == 0 {
		return fmt.Errorf("listen must name at least one event type")
	}
	if cfg.Filter.ContextAttribute == "" {
		return fmt.Errorf("context_attribute must not be empty")
	}
	for _, c := range cfg.Filter.Categories {
		if c.Name == "" {
			return fmt.Errorf("category name must not be empty")
		}
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only credentials (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper, configPath string) error {
	if configPath == "" || !v.InConfig("database.url") {
		return nil
	}
	u, err := url.Parse(v.GetString("database.url"))
	if err != nil {
		return fmt.Errorf("invalid database.url: %w", err)
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		return fmt.Errorf("database passwords not allowed in config files (use EF_DATABASE_URL environment variable)")
	}
	return nil
}
