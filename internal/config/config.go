// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Influx  InfluxConfig
	Server  ServerConfig
	Logging LoggingConfig
}

type InfluxConfig struct {
	Host        string
	Org         string
	Token       string
	Bucket      string
	Measurement string
}

type ServerConfig struct {
	Port           int
	Password       string
	StaticDir      string
	CacheSize      int
	RateLimit      float64
	RateLimitBurst int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, after sourcing a .env file
// if one is present. Store credentials and the HTTP password have no sane
// defaults and are required.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Influx: InfluxConfig{
			Host:        v.GetString("INFLUXDB_HOST"),
			Org:         v.GetString("INFLUXDB_ORG"),
			Token:       v.GetString("INFLUXDB_TOKEN"),
			Bucket:      v.GetString("INFLUXDB_BUCKET"),
			Measurement: v.GetString("INFLUXDB_MEASUREMENT"),
		},
		Server: ServerConfig{
			Port:           v.GetInt("HTTP_PORT"),
			Password:       v.GetString("HTTP_PASSWORD"),
			StaticDir:      v.GetString("STATIC_DIR"),
			CacheSize:      v.GetInt("CACHE_SIZE"),
			RateLimit:      v.GetFloat64("RATE_LIMIT"),
			RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	var missing []string
	for key, val := range map[string]string{
		"INFLUXDB_HOST":  cfg.Influx.Host,
		"INFLUXDB_ORG":   cfg.Influx.Org,
		"INFLUXDB_TOKEN": cfg.Influx.Token,
		"HTTP_PASSWORD":  cfg.Server.Password,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("INFLUXDB_BUCKET", "Temperature")
	v.SetDefault("INFLUXDB_MEASUREMENT", "aht10")

	v.SetDefault("HTTP_PORT", 3000)
	v.SetDefault("STATIC_DIR", "./static")
	v.SetDefault("CACHE_SIZE", 1000)
	v.SetDefault("RATE_LIMIT", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}
