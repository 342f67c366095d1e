package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vaultrun/netcode/internal/gateway"
	"github.com/vaultrun/netcode/internal/session"
	"github.com/vaultrun/netcode/wire"
)

// Config is the server configuration. YAML overlays the built-in defaults;
// a few deploy-time settings override from the environment in main.
type Config struct {
	Server struct {
		Port               string   `yaml:"port"`
		AllowedOrigins     []string `yaml:"allowed_origins"`
		ShutdownTimeoutSec int      `yaml:"shutdown_timeout_sec"`
	} `yaml:"server"`
	Session struct {
		MaxOccupancy        int         `yaml:"max_occupancy"`
		CountdownTicks      int         `yaml:"countdown_ticks"`
		CountdownIntervalMS int         `yaml:"countdown_interval_ms"`
		PatchRateHz         int         `yaml:"patch_rate_hz"`
		SkinCount           int         `yaml:"skin_count"`
		SpawnPoints         []wire.Vec3 `yaml:"spawn_points"`
	} `yaml:"session"`
	Transport struct {
		SendQueueSize   int   `yaml:"send_queue_size"`
		PingIntervalSec int   `yaml:"ping_interval_sec"`
		ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
		WriteTimeoutSec int   `yaml:"write_timeout_sec"`
		MaxMessageBytes int64 `yaml:"max_message_bytes"`
	} `yaml:"transport"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func defaultConfig() *Config {
	var config Config
	config.Server.Port = "8080"
	config.Server.AllowedOrigins = []string{"*"}
	config.Server.ShutdownTimeoutSec = 10

	sess := session.DefaultConfig()
	config.Session.MaxOccupancy = sess.MaxOccupancy
	config.Session.CountdownTicks = sess.CountdownTicks
	config.Session.CountdownIntervalMS = int(sess.CountdownInterval / time.Millisecond)
	config.Session.PatchRateHz = int(time.Second / sess.PatchInterval)
	config.Session.SkinCount = sess.SkinCount
	config.Session.SpawnPoints = sess.SpawnPoints

	conn := gateway.DefaultConnConfig()
	config.Transport.SendQueueSize = conn.SendQueueSize
	config.Transport.PingIntervalSec = int(conn.PingInterval / time.Second)
	config.Transport.ReadTimeoutSec = int(conn.ReadTimeout / time.Second)
	config.Transport.WriteTimeoutSec = int(conn.WriteTimeout / time.Second)
	config.Transport.MaxMessageBytes = conn.MaxMessageSize
	return &config
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

func (c *Config) sessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.MaxOccupancy = c.Session.MaxOccupancy
	cfg.CountdownTicks = c.Session.CountdownTicks
	cfg.CountdownInterval = time.Duration(c.Session.CountdownIntervalMS) * time.Millisecond
	if c.Session.PatchRateHz > 0 {
		cfg.PatchInterval = time.Second / time.Duration(c.Session.PatchRateHz)
	}
	cfg.SkinCount = c.Session.SkinCount
	if len(c.Session.SpawnPoints) > 0 {
		cfg.SpawnPoints = c.Session.SpawnPoints
	}
	return cfg
}

func (c *Config) connConfig() gateway.ConnConfig {
	cfg := gateway.DefaultConnConfig()
	cfg.SendQueueSize = c.Transport.SendQueueSize
	cfg.PingInterval = time.Duration(c.Transport.PingIntervalSec) * time.Second
	cfg.ReadTimeout = time.Duration(c.Transport.ReadTimeoutSec) * time.Second
	cfg.WriteTimeout = time.Duration(c.Transport.WriteTimeoutSec) * time.Second
	cfg.MaxMessageSize = c.Transport.MaxMessageBytes
	return cfg
}

func (c *Config) shutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}
