package main

import (
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort                 = 8000
	defaultAPIKey               = "test_key_123"
	defaultChallengeTTLMinutes  = 5
	defaultTokenTTLMinutes      = 60
	defaultPaymentRateBurst     = 10
	defaultPaymentRatePerSecond = 5
)

type Config struct {
	// API settings
	Port                 int    `yaml:"port" envconfig:"PORT"`
	APIKey               string `yaml:"api_key" envconfig:"API_KEY"`
	ChallengeTTLMinutes  int    `yaml:"challenge_ttl_minutes" envconfig:"CHALLENGE_TTL_MINUTES"`
	TokenTTLMinutes      int    `yaml:"token_ttl_minutes" envconfig:"TOKEN_TTL_MINUTES"`
	PaymentRateBurst     int    `yaml:"payment_rate_burst" envconfig:"PAYMENT_RATE_BURST"`
	PaymentRatePerSecond int    `yaml:"payment_rate_per_second" envconfig:"PAYMENT_RATE_PER_SECOND"`

	// PaymentHMACKey enables the X-PAYMENT signed-authorization path
	// when set. Empty disables that path.
	PaymentHMACKey string `yaml:"payment_hmac_key" envconfig:"PAYMENT_HMAC_KEY"`

	// ResourceOptions overrides per-resource pricing.
	ResourceOptions []struct {
		Name string  `yaml:"name" json:"name"`
		Cost float64 `yaml:"cost" json:"cost"`
	} `yaml:"resource_options"`
}

// Load Config from a yaml file at path.
func (c *Config) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return err
	}

	c.applyDefaults()
	return nil
}

// Load Config from the environment.
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process("", c); err != nil {
		return err
	}

	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.APIKey == "" {
		c.APIKey = defaultAPIKey
	}
	if c.ChallengeTTLMinutes == 0 {
		c.ChallengeTTLMinutes = defaultChallengeTTLMinutes
	}
	if c.TokenTTLMinutes == 0 {
		c.TokenTTLMinutes = defaultTokenTTLMinutes
	}
	if c.PaymentRateBurst == 0 {
		c.PaymentRateBurst = defaultPaymentRateBurst
	}
	if c.PaymentRatePerSecond == 0 {
		c.PaymentRatePerSecond = defaultPaymentRatePerSecond
	}
}
