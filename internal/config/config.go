package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Engine    EngineConfig    `yaml:"engine"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// EngineConfig tunes the impact engine. An empty RulesPath uses the
// embedded movement table.
type EngineConfig struct {
	RulesPath         string             `yaml:"rules_path"`
	DefaultLevel      float64            `yaml:"default_level"`
	EliteLevel        float64            `yaml:"elite_level"`
	CapacityBaselines map[string]float64 `yaml:"capacity_baselines"`
}

// Enabled reports whether a snapshot database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix WODPULSE_ and underscore-separated paths:
//
//	WODPULSE_SERVER_HOST, WODPULSE_SERVER_PORT,
//	WODPULSE_DB_HOST, WODPULSE_DB_PORT, WODPULSE_DB_NAME,
//	WODPULSE_DB_USER, WODPULSE_DB_PASSWORD, WODPULSE_DB_SSLMODE,
//	WODPULSE_AUTH_API_KEY,
//	WODPULSE_TAILSCALE_ENABLED, WODPULSE_TAILSCALE_HOSTNAME, WODPULSE_TAILSCALE_STATE_DIR,
//	WODPULSE_ENGINE_RULES_PATH, WODPULSE_ENGINE_DEFAULT_LEVEL, WODPULSE_ENGINE_ELITE_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WODPULSE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("WODPULSE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WODPULSE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("WODPULSE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("WODPULSE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("WODPULSE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("WODPULSE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("WODPULSE_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("WODPULSE_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("WODPULSE_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("WODPULSE_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("WODPULSE_TAILSCALE_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := os.Getenv("WODPULSE_ENGINE_RULES_PATH"); v != "" {
		cfg.Engine.RulesPath = v
	}
	if v := os.Getenv("WODPULSE_ENGINE_DEFAULT_LEVEL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.DefaultLevel = f
		}
	}
	if v := os.Getenv("WODPULSE_ENGINE_ELITE_LEVEL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.EliteLevel = f
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Engine.DefaultLevel == 0 {
		c.Engine.DefaultLevel = 1
	}
	if c.Engine.EliteLevel == 0 {
		c.Engine.EliteLevel = 50
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = "wodpulse"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Enabled() {
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
		if c.Auth.APIKey == "" {
			return fmt.Errorf("auth.api_key is required when a database is configured")
		}
	}
	if c.Engine.DefaultLevel < 1 {
		return fmt.Errorf("engine.default_level must be at least 1")
	}
	if c.Engine.EliteLevel < 1 {
		return fmt.Errorf("engine.elite_level must be at least 1")
	}
	for k, v := range c.Engine.CapacityBaselines {
		if v <= 0 {
			return fmt.Errorf("engine.capacity_baselines.%s must be positive", k)
		}
	}
	return nil
}
