package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.AgentTimeout)
	assert.False(t, cfg.PvEEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PORT":                 "9000",
		"CORS_ALLOWED_ORIGINS": "http://localhost:5173, https://quarto.example.com",
		"AGENT_ENDPOINT":       "http://agent:8000",
		"AGENT_TIMEOUT":        "2s",
	})
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, []string{"http://localhost:5173", "https://quarto.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, []string{"localhost:5173", "quarto.example.com"}, cfg.OriginHosts())
	assert.True(t, cfg.PvEEnabled())
	assert.Equal(t, 2*time.Second, cfg.AgentTimeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := LoadFrom(map[string]string{"AGENT_TIMEOUT": "soon"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"AGENT_ENDPOINT": "not a url"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:               "8080",
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		AgentTimeout:       time.Second,
		AgentHealthTimeout: time.Second,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing port", func(c *Config) { c.Port = "" }},
		{"no origins", func(c *Config) { c.CORSAllowedOrigins = nil }},
		{"bad origin", func(c *Config) { c.CORSAllowedOrigins = []string{"localhost"} }},
		{"bad agent url", func(c *Config) { c.AgentEndpoint = "ftp://agent" }},
		{"zero timeout", func(c *Config) { c.AgentTimeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			c.CORSAllowedOrigins = append([]string(nil), valid.CORSAllowedOrigins...)
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
