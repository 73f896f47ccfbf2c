// Package config loads and validates the TOML configuration file.
package config

import (
	"net/url"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Server is the HTTP server configuration.
type Server struct {
	// BindAddress is the interface to listen on, "*" for all.
	BindAddress string `toml:"bind_address"`
	// Port is the port to listen on.
	Port int `toml:"port"`
	// PublicURL is the URL this instance is reachable at, used to build
	// absolute download links in feeds.
	PublicURL string `toml:"public_url"`
}

// Cache configures the provider response cache.
type Cache struct {
	// TTL is how long successful provider responses are reused.
	TTL Duration `toml:"ttl"`
}

// Tokens holds provider API credentials.
type Tokens struct {
	// YouTube Data API key.
	// See https://developers.google.com/youtube/registering_an_application
	YouTube string `toml:"youtube"`
}

// Config is the root configuration.
type Config struct {
	Server Server `toml:"server"`
	Cache  Cache  `toml:"cache"`
	Tokens Tokens `toml:"tokens"`
}

// LoadConfig reads, defaults and validates the configuration at path.
func LoadConfig(path string) (*Config, error) {
	config := Config{}
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, errors.Wrapf(err, "failed to load config file: %s", path)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	var result *multierror.Error

	if c.Server.PublicURL == "" {
		result = multierror.Append(result, errors.New("server.public_url is required"))
	} else if _, err := url.ParseRequestURI(c.Server.PublicURL); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "server.public_url is not a valid URL"))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, errors.Errorf("invalid port: %d", c.Server.Port))
	}

	if c.Cache.TTL.Duration <= 0 {
		result = multierror.Append(result, errors.New("cache.ttl must be positive"))
	}

	return result.ErrorOrNil()
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}

	if c.Server.BindAddress == "" {
		c.Server.BindAddress = "*"
	}

	if c.Cache.TTL.Duration == 0 {
		c.Cache.TTL = Duration{24 * time.Hour}
	}
}
