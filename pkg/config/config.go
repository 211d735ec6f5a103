package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// Config holds the configuration for a sleep tracker agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Service configuration
	ServiceName string
	HealthPort  int
	LogLevel    string

	// Tracking configuration
	Location           string
	SampleTopic        string
	MovementThreshold  float64
	VeryRestfulBelow   int64
	FairlyRestfulBelow int64
	StatusIntervalMs   int
	AutoStart          bool

	// Replay configuration (empty ReplayFile means live MQTT samples)
	ReplayFile string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:         "localhost",
		MQTTPort:           1883,
		RedisHost:          "localhost",
		RedisPort:          6379,
		RedisDB:            0,
		ServiceName:        "sleep-agent",
		HealthPort:         8080,
		LogLevel:           "info",
		Location:           "bedroom",
		SampleTopic:        "",
		MovementThreshold:  0.07,
		VeryRestfulBelow:   10,
		FairlyRestfulBelow: 50,
		StatusIntervalMs:   5000,
		AutoStart:          false,
	}
}

// LoadFromEnv loads configuration from environment variables with SLEEP_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("SLEEP_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("SLEEP_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("SLEEP_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("SLEEP_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("SLEEP_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("SLEEP_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("SLEEP_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("SLEEP_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("SLEEP_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Service configuration
	if v := os.Getenv("SLEEP_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("SLEEP_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("SLEEP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Tracking configuration
	if v := os.Getenv("SLEEP_LOCATION"); v != "" {
		c.Location = v
	}
	if v := os.Getenv("SLEEP_SAMPLE_TOPIC"); v != "" {
		c.SampleTopic = v
	}
	if v := os.Getenv("SLEEP_MOVEMENT_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			c.MovementThreshold = threshold
		}
	}
	if v := os.Getenv("SLEEP_VERY_RESTFUL_BELOW"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.VeryRestfulBelow = n
		}
	}
	if v := os.Getenv("SLEEP_FAIRLY_RESTFUL_BELOW"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.FairlyRestfulBelow = n
		}
	}
	if v := os.Getenv("SLEEP_STATUS_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.StatusIntervalMs = ms
		}
	}
	if v := os.Getenv("SLEEP_AUTO_START"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			c.AutoStart = enable
		}
	}
	if v := os.Getenv("SLEEP_REPLAY_FILE"); v != "" {
		c.ReplayFile = v
	}
}

// RegisterFlags registers command-line flags on the given flag set.
// Current values become the flag defaults, so call it after LoadFromEnv.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Tracking flags
	fs.StringVar(&c.Location, "location", c.Location, "Location the accelerometer is placed in")
	fs.StringVar(&c.SampleTopic, "sample-topic", c.SampleTopic, "MQTT topic carrying accelerometer samples (default derived from location)")
	fs.Float64Var(&c.MovementThreshold, "movement-threshold", c.MovementThreshold, "Deviation from 1g that counts as a movement")
	fs.Int64Var(&c.VeryRestfulBelow, "very-restful-below", c.VeryRestfulBelow, "Movement count below which a session is very restful")
	fs.Int64Var(&c.FairlyRestfulBelow, "fairly-restful-below", c.FairlyRestfulBelow, "Movement count below which a session is fairly restful")
	fs.IntVar(&c.StatusIntervalMs, "status-interval-ms", c.StatusIntervalMs, "Minimum time between live status publishes (ms)")
	fs.BoolVar(&c.AutoStart, "auto-start", c.AutoStart, "Start a session as soon as the agent is connected")
	fs.StringVar(&c.ReplayFile, "replay-file", c.ReplayFile, "YAML replay file used instead of live MQTT samples")
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	c.RegisterFlags(pflag.CommandLine)
	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.Location == "" {
		return fmt.Errorf("location is required")
	}
	if c.MovementThreshold <= 0 {
		return fmt.Errorf("movement threshold must be positive, got %v", c.MovementThreshold)
	}
	if c.VeryRestfulBelow < 0 || c.FairlyRestfulBelow < c.VeryRestfulBelow {
		return fmt.Errorf("quality thresholds must satisfy 0 <= very-restful-below (%d) <= fairly-restful-below (%d)",
			c.VeryRestfulBelow, c.FairlyRestfulBelow)
	}
	if c.StatusIntervalMs < 0 {
		return fmt.Errorf("status interval must not be negative")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
