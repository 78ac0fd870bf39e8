package config

import (
	"fmt"
	"math"
	"os"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"neurax/internal/network"
	"neurax/internal/neuron"
)

// RedisURLEnv overrides exchange.redis_url when set.
const RedisURLEnv = "NEURAX_REDIS_URL"

const currentVersion = "1.0"

// Config is the top-level structure of a neurax.yml file.
type Config struct {
	Version  string         `yaml:"version"`
	Mesh     MeshConfig     `yaml:"mesh"`
	Neuron   NeuronConfig   `yaml:"neuron"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Storage  StorageConfig  `yaml:"storage"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type MeshConfig struct {
	Nodes         int     `yaml:"nodes"`
	Steps         int     `yaml:"steps"`
	Topology      string  `yaml:"topology"`
	InitialWeight float64 `yaml:"initial_weight"`
	Workers       int     `yaml:"workers,omitempty"` // 0 = GOMAXPROCS
	Seed          int64   `yaml:"seed"`
}

type NeuronConfig struct {
	Size      int           `yaml:"size"`
	TimeSteps int           `yaml:"time_steps"`
	Intensity float64       `yaml:"intensity"`
	Params    neuron.Params `yaml:"params"`
}

type ExchangeConfig struct {
	Backend  string `yaml:"backend"` // memory or redis
	RedisURL string `yaml:"redis_url,omitempty"`
	Instance string `yaml:"instance,omitempty"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // memory or sqlite
	Path    string `yaml:"path,omitempty"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir"`
	StateDir string `yaml:"state_dir,omitempty"`
}

type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Version: currentVersion,
		Mesh: MeshConfig{
			Nodes:         3,
			Steps:         10,
			Topology:      string(network.TopologyFull),
			InitialWeight: neuron.DefaultInitialWeight,
			Seed:          42,
		},
		Neuron: NeuronConfig{
			Size:      neuron.DefaultSize,
			TimeSteps: neuron.DefaultTimeSteps,
			Intensity: neuron.DefaultIntensity,
			Params:    neuron.DefaultParams(),
		},
		Exchange: ExchangeConfig{Backend: "memory", Instance: "default"},
		Storage:  StorageConfig{Backend: "memory", Path: "neurax.db"},
		Output:   OutputConfig{Dir: "runs"},
	}
}

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	if c.Version == "" {
		c.Version = currentVersion
	}
	if c.Version != currentVersion {
		return fmt.Errorf("unsupported version: %s (expected: %s)", c.Version, currentVersion)
	}

	if c.Mesh.Nodes < 1 {
		return fmt.Errorf("mesh.nodes must be >= 1, got %d", c.Mesh.Nodes)
	}
	if c.Mesh.Steps < 1 {
		return fmt.Errorf("mesh.steps must be >= 1, got %d", c.Mesh.Steps)
	}
	if _, err := network.ParseTopology(c.Mesh.Topology); err != nil {
		return fmt.Errorf("mesh.topology: %w", err)
	}
	if c.Mesh.InitialWeight < 0.01 || c.Mesh.InitialWeight > 1 {
		return fmt.Errorf("mesh.initial_weight must be within [0.01, 1], got %g", c.Mesh.InitialWeight)
	}
	if c.Mesh.Workers < 0 {
		return fmt.Errorf("mesh.workers must be >= 0 (0 = all CPUs), got %d", c.Mesh.Workers)
	}

	if c.Neuron.Size < 2 {
		return fmt.Errorf("neuron.size must be >= 2, got %d", c.Neuron.Size)
	}
	if c.Neuron.TimeSteps < 1 {
		return fmt.Errorf("neuron.time_steps must be >= 1, got %d", c.Neuron.TimeSteps)
	}
	if !finite(c.Neuron.Intensity) || c.Neuron.Intensity < 0 {
		return fmt.Errorf("neuron.intensity must be a finite value >= 0, got %g", c.Neuron.Intensity)
	}
	p := c.Neuron.Params
	for name, v := range map[string]float64{"p0": p.P0, "beta1": p.Beta1, "beta2": p.Beta2, "beta3": p.Beta3} {
		if !finite(v) {
			return fmt.Errorf("neuron.params.%s must be finite", name)
		}
	}

	switch c.Exchange.Backend {
	case "", "memory":
		c.Exchange.Backend = "memory"
	case "redis":
		if c.Exchange.RedisURL == "" {
			return fmt.Errorf("exchange.redis_url is required for the redis backend (or set %s)", RedisURLEnv)
		}
		if _, err := redis.ParseURL(c.Exchange.RedisURL); err != nil {
			return fmt.Errorf("exchange.redis_url: %w", err)
		}
		if c.Exchange.Instance == "" {
			return fmt.Errorf("exchange.instance is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown exchange backend '%s' (valid: 'memory' or 'redis')", c.Exchange.Backend)
	}

	switch c.Storage.Backend {
	case "", "memory":
		c.Storage.Backend = "memory"
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend '%s' (valid: 'memory' or 'sqlite')", c.Storage.Backend)
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	return nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if url := os.Getenv(RedisURLEnv); url != "" {
		c.Exchange.RedisURL = url
	}
}

// RedisOptions parses the configured Redis URL.
func (c *Config) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.Exchange.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return opts, nil
}

// Load reads neurax.yml from path on top of Default, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
