// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/BoostyLabs/inscriber/bitcoin"
	"github.com/BoostyLabs/inscriber/bitcoin/broadcast"
	"github.com/BoostyLabs/inscriber/bitcoin/failure"
	"github.com/BoostyLabs/inscriber/bitcoin/fees"
	"github.com/BoostyLabs/inscriber/bitcoin/inscriber"
	"github.com/BoostyLabs/inscriber/bitcoin/tracker"
	"github.com/BoostyLabs/inscriber/bitcoin/txbuilder"
)

// Default values of config.
const (
	DefaultNetwork     = "testnet"
	DefaultFeeRate     = 2.0
	DefaultMetricsAddr = ":9090"
	DefaultLogLevel    = "info"
)

// ErrConfiguration describes invalid or unreadable config.
var ErrConfiguration = failure.New(failure.CodeConfiguration)

// Config describes inscriber service configuration file.
type Config struct {
	Network   string  `yaml:"network"`
	FeeRate   float64 `yaml:"fee_rate"` // sat/vB.
	Postage   int64   `yaml:"postage"`
	DustLimit int64   `yaml:"dust_limit"`

	Broadcast    Broadcast    `yaml:"broadcast"`
	Confirmation Confirmation `yaml:"confirmation"`
	Inscriber    Inscriber    `yaml:"inscriber"`

	StorePath   string `yaml:"store_path"` // empty keeps tracked transactions in memory only.
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Endpoint describes broadcast endpoint entry.
type Endpoint struct {
	Name              string `yaml:"name"`
	URL               string `yaml:"url"`
	Priority          int    `yaml:"priority"`
	Network           string `yaml:"network"` // defaults to config network.
	Active            *bool  `yaml:"active"`  // defaults to true.
	RequestsPerSecond int    `yaml:"requests_per_second"`
}

// Broadcast describes broadcasting section.
type Broadcast struct {
	Endpoints      []Endpoint    `yaml:"endpoints"`
	Preferred      []string      `yaml:"preferred"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     uint          `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// Confirmation describes chain data sources and confirmation polling.
type Confirmation struct {
	EsploraURL        string        `yaml:"esplora_url"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	RPCURL            string        `yaml:"rpc_url"`
	RPCUser           string        `yaml:"rpc_user"`
	RPCPassword       string        `yaml:"rpc_password"`
	InitialDelay      time.Duration `yaml:"initial_delay"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	FinalityDepth     int64         `yaml:"finality_depth"`
	MaxNotFound       int           `yaml:"max_not_found"`
	MaxErrors         int           `yaml:"max_errors"`
}

// Inscriber describes reveal fee bumping policy.
type Inscriber struct {
	FeeBumpFactor        float64 `yaml:"fee_bump_factor"`
	MaxFeeBumps          int     `yaml:"max_fee_bumps"`
	SatpointSafetyBuffer int64   `yaml:"satpoint_safety_buffer"`
}

// Load reads config from yaml file, fills defaults and validates it.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, failure.Wrap(failure.CodeConfiguration, err).WithDetail("path", path)
	}
	defer func() {
		_ = file.Close()
	}()

	config, err := Decode(file)
	if err != nil {
		return nil, failure.From(err).WithDetail("path", path)
	}

	return config, nil
}

// Parse decodes config from yaml document, fills defaults and validates it.
func Parse(data []byte) (*Config, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads yaml document from reader. Unknown fields are rejected.
func Decode(r io.Reader) (*Config, error) {
	config := new(Config)

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, failure.Wrap(failure.CodeConfiguration, err)
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.Network == "" {
		c.Network = DefaultNetwork
	}
	if c.FeeRate == 0 {
		c.FeeRate = DefaultFeeRate
	}
	if c.Postage == 0 {
		c.Postage = txbuilder.DefaultPostage
	}
	if c.DustLimit == 0 {
		c.DustLimit = txbuilder.DustLimit
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	if c.Broadcast.Timeout == 0 {
		c.Broadcast.Timeout = broadcast.DefaultTimeout
	}
	if c.Broadcast.MaxRetries == 0 {
		c.Broadcast.MaxRetries = broadcast.DefaultMaxRetries
	}
	if c.Broadcast.InitialBackoff == 0 {
		c.Broadcast.InitialBackoff = broadcast.DefaultInitialBackoff
	}
	if c.Broadcast.MaxBackoff == 0 {
		c.Broadcast.MaxBackoff = broadcast.DefaultMaxBackoff
	}

	if c.Confirmation.InitialDelay == 0 {
		c.Confirmation.InitialDelay = tracker.DefaultInitialDelay
	}
	if c.Confirmation.PollInterval == 0 {
		c.Confirmation.PollInterval = tracker.DefaultPollInterval
	}
	if c.Confirmation.MaxBackoff == 0 {
		c.Confirmation.MaxBackoff = tracker.DefaultMaxBackoff
	}
	if c.Confirmation.FinalityDepth == 0 {
		c.Confirmation.FinalityDepth = tracker.DefaultFinalityDepth
	}
	if c.Confirmation.MaxNotFound == 0 {
		c.Confirmation.MaxNotFound = tracker.DefaultMaxNotFound
	}
	if c.Confirmation.MaxErrors == 0 {
		c.Confirmation.MaxErrors = tracker.DefaultMaxErrors
	}

	c.Inscriber.SetDefaults()
}

// SetDefaults fills zero values with defaults.
func (c *Inscriber) SetDefaults() {
	if c.FeeBumpFactor == 0 {
		c.FeeBumpFactor = inscriber.DefaultFeeBumpFactor
	}
	if c.MaxFeeBumps == 0 {
		c.MaxFeeBumps = inscriber.DefaultMaxFeeBumps
	}
	if c.SatpointSafetyBuffer == 0 {
		c.SatpointSafetyBuffer = inscriber.DefaultSatpointSafetyBuffer
	}
}

// Validate checks config values.
func (c *Config) Validate() error {
	if _, err := bitcoin.ParseNetwork(c.Network); err != nil {
		return err
	}
	if err := fees.ValidateRate(c.FeeRate); err != nil {
		return err
	}
	if c.DustLimit < 0 {
		return ErrConfiguration.WithDetail("dust_limit", c.DustLimit).WithMessage("dust limit can not be negative")
	}
	if c.Postage < c.DustLimit {
		return ErrConfiguration.WithDetail("postage", c.Postage).WithMessage("postage is below dust limit")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return failure.Wrap(failure.CodeConfiguration, err).WithDetail("log_level", c.LogLevel)
	}

	if len(c.Broadcast.Endpoints) == 0 {
		return ErrConfiguration.WithMessage("at least one broadcast endpoint is required")
	}
	names := make(map[string]bool, len(c.Broadcast.Endpoints))
	for _, endpoint := range c.Broadcast.Endpoints {
		if endpoint.Name == "" || endpoint.URL == "" {
			return ErrConfiguration.WithDetail("endpoint", endpoint.Name).WithMessage("endpoint name and url are required")
		}
		if names[endpoint.Name] {
			return ErrConfiguration.WithDetail("endpoint", endpoint.Name).WithMessage("duplicate endpoint name")
		}
		names[endpoint.Name] = true

		if endpoint.Network != "" {
			if _, err := bitcoin.ParseNetwork(endpoint.Network); err != nil {
				return failure.From(err).WithDetail("endpoint", endpoint.Name)
			}
		}
		if endpoint.RequestsPerSecond < 0 {
			return ErrConfiguration.WithDetail("endpoint", endpoint.Name).WithMessage("requests per second can not be negative")
		}
	}
	for _, name := range c.Broadcast.Preferred {
		if !names[name] {
			return ErrConfiguration.WithDetail("endpoint", name).WithMessage("preferred endpoint is not configured")
		}
	}
	if c.Broadcast.Timeout < 0 || c.Broadcast.InitialBackoff < 0 || c.Broadcast.MaxBackoff < 0 {
		return ErrConfiguration.WithMessage("broadcast durations can not be negative")
	}
	if c.Broadcast.InitialBackoff > c.Broadcast.MaxBackoff {
		return ErrConfiguration.WithMessage("initial backoff exceeds max backoff")
	}

	if c.Confirmation.EsploraURL == "" && c.Confirmation.RPCURL == "" {
		return ErrConfiguration.WithMessage("esplora or rpc url is required")
	}
	if c.Confirmation.InitialDelay < 0 || c.Confirmation.PollInterval < 0 || c.Confirmation.MaxBackoff < 0 {
		return ErrConfiguration.WithMessage("confirmation durations can not be negative")
	}
	if c.Confirmation.FinalityDepth < 1 {
		return ErrConfiguration.WithDetail("finality_depth", c.Confirmation.FinalityDepth).
			WithMessage("finality depth must be positive")
	}

	if c.Inscriber.FeeBumpFactor <= 1 {
		return ErrConfiguration.WithDetail("fee_bump_factor", c.Inscriber.FeeBumpFactor).
			WithMessage("fee bump factor must be greater than 1")
	}
	if c.Inscriber.MaxFeeBumps < 0 || c.Inscriber.SatpointSafetyBuffer < 0 {
		return ErrConfiguration.WithMessage("inscriber limits can not be negative")
	}

	return nil
}

// BitcoinNetwork returns configured network. Config is expected to be validated.
func (c *Config) BitcoinNetwork() bitcoin.Network {
	network, _ := bitcoin.ParseNetwork(c.Network)
	return network
}

// Level returns configured log level.
func (c *Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}

	return level
}

// BroadcastConfig maps broadcast section to broadcaster config.
func (c *Config) BroadcastConfig() broadcast.Config {
	network := c.BitcoinNetwork()

	endpoints := make([]broadcast.Endpoint, 0, len(c.Broadcast.Endpoints))
	for _, endpoint := range c.Broadcast.Endpoints {
		endpointNetwork := network
		if endpoint.Network != "" {
			endpointNetwork, _ = bitcoin.ParseNetwork(endpoint.Network)
		}

		endpoints = append(endpoints, broadcast.Endpoint{
			Name:              endpoint.Name,
			URL:               endpoint.URL,
			Priority:          endpoint.Priority,
			Network:           endpointNetwork,
			Active:            endpoint.Active == nil || *endpoint.Active,
			RequestsPerSecond: endpoint.RequestsPerSecond,
		})
	}

	return broadcast.Config{
		Network:   network,
		Endpoints: endpoints,
		Defaults: broadcast.Options{
			PreferredEndpoints: c.Broadcast.Preferred,
			MaxRetries:         c.Broadcast.MaxRetries,
			InitialBackoff:     c.Broadcast.InitialBackoff,
			MaxBackoff:         c.Broadcast.MaxBackoff,
			Timeout:            c.Broadcast.Timeout,
		},
	}
}

// ConfirmationConfig maps confirmation section to polling config.
func (c *Config) ConfirmationConfig() tracker.ConfirmationConfig {
	return tracker.ConfirmationConfig{
		InitialDelay:  c.Confirmation.InitialDelay,
		PollInterval:  c.Confirmation.PollInterval,
		MaxBackoff:    c.Confirmation.MaxBackoff,
		FinalityDepth: c.Confirmation.FinalityDepth,
		MaxNotFound:   c.Confirmation.MaxNotFound,
		MaxErrors:     c.Confirmation.MaxErrors,
	}
}

// InscriberConfig maps inscriber section to inscriber config.
func (c *Config) InscriberConfig() inscriber.Config {
	return inscriber.Config{
		FeeBumpFactor:        c.Inscriber.FeeBumpFactor,
		MaxFeeBumps:          c.Inscriber.MaxFeeBumps,
		SatpointSafetyBuffer: c.Inscriber.SatpointSafetyBuffer,
	}
}
