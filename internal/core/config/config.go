// Package config provides configuration management for eventfilter services.
package config

import (
	"slices"
	"time"

	"github.com/solatis/eventfilter/internal/filter"
	"github.com/solatis/eventfilter/internal/rules"
)

// Config is the complete service configuration.
type Config struct {
	Filter   FilterConfig
	Server   ServerConfig
	Database DatabaseConfig
}

// FilterConfig holds engine and listener settings.
type FilterConfig struct {
	Listen            []string
	ContextAttribute  string
	ResultTypes       []string // nil selects rules.DefaultResultTypes; empty disables emission
	SequenceTimeLimit time.Duration
	SelectorFields    []string
	RulesFile         string
	Categories        []filter.Category
}

// ServerConfig holds configuration for the gRPC and HTTP endpoints.
type ServerConfig struct {
	Host           string
	Port           int
	HTTPAddr       string
	MaxConnections int
	RequestTimeout time.Duration
	MaxBatchSize   int
	DataDir        string
}

// DatabaseConfig locates the emission journal.
type DatabaseConfig struct {
	URL string // sqlite://path or postgres://...; empty disables the journal
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Filter: FilterConfig{
			Listen:            slices.Clone(filter.DefaultListen),
			ContextAttribute:  filter.DefaultContextAttribute,
			SequenceTimeLimit: rules.DefaultSequenceTimeLimit,
			SelectorFields:    slices.Clone(rules.DefaultSelectorFields),
			Categories:        filter.DefaultCategories(),
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			HTTPAddr:       ":9090",
			MaxConnections: 1000,
			RequestTimeout: 30 * time.Second,
			MaxBatchSize:   1000,
			DataDir:        "./data",
		},
	}
}

// EngineSettings converts the filter configuration to engine settings.
func (c FilterConfig) EngineSettings() rules.Settings {
	return rules.Settings{
		ResultTypes:       c.ResultTypes,
		SequenceTimeLimit: c.SequenceTimeLimit,
		SelectorFields:    c.SelectorFields,
	}
}

// FilterSettings converts the filter configuration to listener settings.
func (c FilterConfig) FilterSettings() filter.Settings {
	return filter.Settings{
		Listen:           c.Listen,
		Categories:       c.Categories,
		ContextAttribute: c.ContextAttribute,
	}
}
