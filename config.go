package kafkanet

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the producer core's configuration surface (spec §6), loadable
// from YAML with environment overrides in the teacher's applyDefaults
// style.
type Config struct {
	// MaximumMessageBuffer is the ingress queue's capacity. -1 means
	// unbounded.
	MaximumMessageBuffer int `yaml:"maximum_message_buffer"`

	// BatchSize is the max submissions taken per dispatch cycle.
	BatchSize int `yaml:"batch_size"`

	// BatchDelayTime is the max wait for a batch to fill once the first
	// item has arrived.
	BatchDelayTime time.Duration `yaml:"batch_delay_time"`

	// MaxDisposeWait caps how long a graceful Stop(true) waits for the
	// dispatch loop to drain.
	MaxDisposeWait time.Duration `yaml:"max_dispose_wait"`

	// DefaultAcks, DefaultTimeout, and DefaultCodec are applied by Send
	// to every submission, then replaced by any WithAcks, WithTimeout, or
	// WithCodec option the caller passes (including a zero value such as
	// WithAcks(0)).
	DefaultAcks    int16         `yaml:"default_acks"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	DefaultCodec   string        `yaml:"default_codec"`
}

// DefaultConfig returns the configuration spec.md §6 names as defaults.
func DefaultConfig() Config {
	return Config{
		MaximumMessageBuffer: 100,
		BatchSize:            10,
		BatchDelayTime:       100 * time.Millisecond,
		MaxDisposeWait:       30 * time.Second,
		DefaultAcks:          1,
		DefaultTimeout:       1000 * time.Millisecond,
		DefaultCodec:         "none",
	}
}

// LoadConfig reads configFile (if non-empty) as YAML, then fills any
// unset field with its default and applies KAFKANET_-prefixed environment
// overrides, in that precedence order.
func LoadConfig(configFile string) (Config, error) {
	config := Config{}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return Config{}, fmt.Errorf("kafkanet: read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("kafkanet: parse config file: %w", err)
		}
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validateConfig(config); err != nil {
		return Config{}, fmt.Errorf("kafkanet: invalid configuration: %w", err)
	}

	return config, nil
}

func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.MaximumMessageBuffer == 0 {
		config.MaximumMessageBuffer = defaults.MaximumMessageBuffer
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.BatchDelayTime <= 0 {
		config.BatchDelayTime = defaults.BatchDelayTime
	}
	if config.MaxDisposeWait <= 0 {
		config.MaxDisposeWait = defaults.MaxDisposeWait
	}
	if config.DefaultAcks == 0 {
		config.DefaultAcks = defaults.DefaultAcks
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = defaults.DefaultTimeout
	}
	if config.DefaultCodec == "" {
		config.DefaultCodec = defaults.DefaultCodec
	}
}

func applyEnvironmentOverrides(config *Config) {
	if v := os.Getenv("KAFKANET_MAXIMUM_MESSAGE_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.MaximumMessageBuffer = n
		}
	}
	if v := os.Getenv("KAFKANET_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.BatchSize = n
		}
	}
	if v := os.Getenv("KAFKANET_BATCH_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.BatchDelayTime = d
		}
	}
	if v := os.Getenv("KAFKANET_MAX_DISPOSE_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.MaxDisposeWait = d
		}
	}
}

func validateConfig(config Config) error {
	if config.MaximumMessageBuffer < -1 || config.MaximumMessageBuffer == 0 {
		return fmt.Errorf("maximum_message_buffer must be -1 (unbounded) or a positive capacity, got %d", config.MaximumMessageBuffer)
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", config.BatchSize)
	}
	if config.BatchDelayTime <= 0 {
		return fmt.Errorf("batch_delay_time must be positive, got %s", config.BatchDelayTime)
	}
	return nil
}
