package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"rovernav/grid"
	"rovernav/navigation"
	"rovernav/reactive"
)

// Config is the top-level application configuration.
type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Rover      RoverConfig      `yaml:"rover"`
	Navigation NavigationConfig `yaml:"navigation"`
	Web        WebConfig        `yaml:"web"`
	Messaging  MessagingConfig  `yaml:"messaging"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig is optional; an empty address disables the live state cache.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RoverConfig defines the rover simulation API connection.
type RoverConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// NavigationConfig holds the mission tunables.
type NavigationConfig struct {
	GridWidth        int           `yaml:"grid_width"`
	GridHeight       int           `yaml:"grid_height"`
	MaxCells         int           `yaml:"max_cells"`
	StepInterval     time.Duration `yaml:"step_interval"`
	ReachedDistance  float64       `yaml:"reached_distance"`
	ObstacleRange    float64       `yaml:"obstacle_range"`
	MinBattery       float64       `yaml:"min_battery"`
	ChargeAttempts   int           `yaml:"charge_attempts"`
	ReactiveFallback bool          `yaml:"reactive_fallback"`
}

type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

// MessagingConfig defines the messaging backend.
type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "mqtt", "kafka" or "" for none
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	TelemetryTopic      string        `yaml:"telemetry_topic"`
	CommandTopic        string        `yaml:"command_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	StationID           string        `yaml:"station_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "rovernav.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "rovernav",
				User:     "rovernav",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address: "",
			DB:      0,
		},
		Rover: RoverConfig{
			BaseURL:      "http://localhost:5000",
			Timeout:      10 * time.Second,
			Retries:      3,
			RetryBackoff: 500 * time.Millisecond,
			PollInterval: 5 * time.Second,
		},
		Navigation: NavigationConfig{
			GridWidth:       20,
			GridHeight:      20,
			MaxCells:        1000000,
			StepInterval:    time.Second,
			ReachedDistance: 5,
			ObstacleRange:   2.0,
			MinBattery:      20,
			ChargeAttempts:  5,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8085,
			SessionSecret: "change-me-in-production",
		},
		Messaging: MessagingConfig{
			Backend: "",
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
			},
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "rovernav",
			},
			TelemetryTopic:      "rovernav/telemetry",
			CommandTopic:        "rovernav/commands",
			OutboxDrainInterval: 5 * time.Second,
			StationID:           "rover-1",
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	n := c.Navigation
	if n.GridWidth <= 0 || n.GridHeight <= 0 {
		return fmt.Errorf("navigation: grid must be positive, got %dx%d", n.GridWidth, n.GridHeight)
	}
	if n.MaxCells <= 0 || n.MaxCells > grid.MaxCells {
		return fmt.Errorf("navigation: max_cells must be in 1..%d, got %d", grid.MaxCells, n.MaxCells)
	}
	if n.GridWidth > n.MaxCells/n.GridHeight {
		return fmt.Errorf("navigation: grid %dx%d exceeds max_cells %d", n.GridWidth, n.GridHeight, n.MaxCells)
	}
	if n.ReachedDistance < 0 || n.ObstacleRange < 0 {
		return fmt.Errorf("navigation: distances must not be negative")
	}
	if n.StepInterval <= 0 {
		return fmt.Errorf("navigation: step_interval must be positive")
	}
	switch c.Messaging.Backend {
	case "", "mqtt", "kafka":
	default:
		return fmt.Errorf("messaging: unknown backend %q", c.Messaging.Backend)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Session converts the navigation section into session tunables.
func (c *Config) Session() navigation.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.Navigation
	return navigation.Config{
		Width:            n.GridWidth,
		Height:           n.GridHeight,
		MaxCells:         n.MaxCells,
		Thresholds:       reactive.Thresholds{ReachedDistance: n.ReachedDistance},
		MinBattery:       n.MinBattery,
		ObstacleRange:    n.ObstacleRange,
		ReactiveFallback: n.ReactiveFallback,
	}
}

func (c *Config) Lock()    { c.mu.Lock() }
func (c *Config) Unlock()  { c.mu.Unlock() }
func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }
