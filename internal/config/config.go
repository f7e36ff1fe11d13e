package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port               string        `env:"PORT" envDefault:"8080"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	AgentEndpoint      string        `env:"AGENT_ENDPOINT"`
	AgentTimeout       time.Duration `env:"AGENT_TIMEOUT" envDefault:"10s"`
	AgentHealthTimeout time.Duration `env:"AGENT_HEALTH_TIMEOUT" envDefault:"5s"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat          string        `env:"LOG_FORMAT" envDefault:"json"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses the process environment into a Config and validates it.
func Load() (Config, error) {
	return LoadFrom(env.ToMap(os.Environ()))
}

func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	for i, o := range cfg.CORSAllowedOrigins {
		cfg.CORSAllowedOrigins[i] = strings.TrimSpace(o)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// PvEEnabled reports whether an agent endpoint is configured.
func (c Config) PvEEnabled() bool { return c.AgentEndpoint != "" }

func (c Config) Addr() string { return ":" + c.Port }

func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if len(c.CORSAllowedOrigins) == 0 {
		return errors.New("CORS_ALLOWED_ORIGINS must list at least one origin")
	}
	for _, o := range c.CORSAllowedOrigins {
		if o == "*" {
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS: invalid origin %q", o)
		}
	}
	if c.AgentEndpoint != "" {
		u, err := url.Parse(c.AgentEndpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("AGENT_ENDPOINT: invalid url %q", c.AgentEndpoint)
		}
	}
	if c.AgentTimeout <= 0 {
		return errors.New("AGENT_TIMEOUT must be positive")
	}
	if c.AgentHealthTimeout <= 0 {
		return errors.New("AGENT_HEALTH_TIMEOUT must be positive")
	}
	return nil
}

// OriginHosts returns the host[:port] part of every allowed origin, the form
// websocket origin patterns are matched against.
func (c Config) OriginHosts() []string {
	hosts := make([]string, 0, len(c.CORSAllowedOrigins))
	for _, o := range c.CORSAllowedOrigins {
		if o == "*" {
			hosts = append(hosts, "*")
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
