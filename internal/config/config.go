// Package config loads service settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"field-visit-service/internal/domain"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig               `yaml:"http"`
	Database DatabaseConfig           `yaml:"database"`
	Redis    RedisConfig              `yaml:"redis"`
	MQTT     MQTTConfig               `yaml:"mqtt"`
	Geocode  GeocodeConfig            `yaml:"geocode"`
	Travel   TravelConfig             `yaml:"travel"`
	Schedule ScheduleConfig           `yaml:"schedule"`
	Stages   []domain.StageDefinition `yaml:"stages"`
	Log      LogConfig                `yaml:"log"`
}

type HTTPConfig struct {
	Port              string        `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
}

type DatabaseConfig struct {
	// Driver is "pgx" or "sqlite".
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	SeedPath string `yaml:"seed_path"`
}

// RedisConfig configures the visit state store. An empty Addr keeps state
// in memory.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	Stream    string `yaml:"stream"`
}

// MQTTConfig configures the live position feed. An empty Broker uses the
// in-process relay.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// GeocodeConfig selects the location resolver. With no ORS key, visits are
// placed synthetically around the centre.
type GeocodeConfig struct {
	ORSAPIKey  string  `yaml:"ors_api_key"`
	ORSBaseURL string  `yaml:"ors_base_url"`
	Country    string  `yaml:"country"`
	CenterLat  float64 `yaml:"center_lat"`
	CenterLon  float64 `yaml:"center_lon"`
	RadiusKm   float64 `yaml:"radius_km"`
}

type TravelConfig struct {
	AverageSpeedKmh     float64 `yaml:"average_speed_kmh"`
	TrafficFactor       float64 `yaml:"traffic_factor"`
	MovementThresholdKm float64 `yaml:"movement_threshold_km"`
	TimeZone            string  `yaml:"time_zone"`
}

// ScheduleConfig is the working-day grid used to list free slots.
type ScheduleConfig struct {
	DayStart    string `yaml:"day_start"`
	DayEnd      string `yaml:"day_end"`
	StepMinutes int    `yaml:"step_minutes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. A missing file yields defaults plus environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		data = nil
	} else if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the environment variable key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// applyEnv lets environment variables override file values.
func (c *Config) applyEnv() {
	str := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(dst *float64, key string) {
		if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
			*dst = v
		}
	}

	str(&c.HTTP.Port, "PORT")
	str(&c.Database.Driver, "DB_DRIVER")
	str(&c.Database.DSN, "DB_DSN")
	str(&c.Database.DSN, "DB_PATH")
	str(&c.Database.SeedPath, "SEED_PATH")
	str(&c.Redis.Addr, "REDIS_ADDR")
	str(&c.Redis.Password, "REDIS_PASSWORD")
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		c.Redis.DB = v
	}
	str(&c.Redis.KeyPrefix, "REDIS_KEY_PREFIX")
	str(&c.MQTT.Broker, "MQTT_BROKER")
	str(&c.MQTT.ClientID, "MQTT_CLIENT_ID")
	str(&c.MQTT.Username, "MQTT_USERNAME")
	str(&c.MQTT.Password, "MQTT_PASSWORD")
	str(&c.MQTT.TopicPrefix, "MQTT_TOPIC_PREFIX")
	str(&c.Geocode.ORSAPIKey, "ORS_API_KEY")
	num(&c.Geocode.CenterLat, "GEOCODE_CENTER_LAT")
	num(&c.Geocode.CenterLon, "GEOCODE_CENTER_LON")
	num(&c.Geocode.RadiusKm, "GEOCODE_RADIUS_KM")
	num(&c.Travel.AverageSpeedKmh, "AVERAGE_SPEED_KMH")
	num(&c.Travel.TrafficFactor, "TRAFFIC_FACTOR")
	num(&c.Travel.MovementThresholdKm, "MOVEMENT_THRESHOLD_KM")
	str(&c.Travel.TimeZone, "TIME_ZONE")
	str(&c.Log.Level, "LOG_LEVEL")
	str(&c.Log.Format, "LOG_FORMAT")
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.HTTP.Port == "" {
		c.HTTP.Port = "8080"
	}
	if c.HTTP.ReadHeaderTimeout == 0 {
		c.HTTP.ReadHeaderTimeout = 5 * time.Second
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 60 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "data/app.db"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "fieldvisits:"
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = c.Redis.KeyPrefix + "timeline"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "field-visit-service"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "fieldvisits"
	}
	if c.Geocode.CenterLat == 0 && c.Geocode.CenterLon == 0 {
		c.Geocode.CenterLat, c.Geocode.CenterLon = 33.4484, -112.0740
	}
	if c.Geocode.RadiusKm == 0 {
		c.Geocode.RadiusKm = 25
	}
	if c.Travel.AverageSpeedKmh == 0 {
		c.Travel.AverageSpeedKmh = 40
	}
	if c.Travel.TrafficFactor == 0 {
		c.Travel.TrafficFactor = 1
	}
	if c.Travel.MovementThresholdKm == 0 {
		c.Travel.MovementThresholdKm = 0.1
	}
	if c.Travel.TimeZone == "" {
		c.Travel.TimeZone = "UTC"
	}
	if c.Schedule.DayStart == "" {
		c.Schedule.DayStart = "08:00"
	}
	if c.Schedule.DayEnd == "" {
		c.Schedule.DayEnd = "18:00"
	}
	if c.Schedule.StepMinutes == 0 {
		c.Schedule.StepMinutes = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "pgx", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be pgx or sqlite", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}
	if c.Geocode.RadiusKm < 0 {
		errs = append(errs, "geocode.radius_km must be positive")
	}
	if c.Travel.AverageSpeedKmh < 0 {
		errs = append(errs, "travel.average_speed_kmh must be positive")
	}
	if c.Travel.TrafficFactor < 0 {
		errs = append(errs, "travel.traffic_factor must be positive")
	}
	if _, err := time.LoadLocation(c.Travel.TimeZone); err != nil {
		errs = append(errs, fmt.Sprintf("travel.time_zone %q: %v", c.Travel.TimeZone, err))
	}
	if c.Schedule.StepMinutes < 0 {
		errs = append(errs, "schedule.step_minutes must be positive")
	}
	seen := make(map[string]bool, len(c.Stages))
	for i, s := range c.Stages {
		if strings.TrimSpace(s.ID) == "" {
			errs = append(errs, fmt.Sprintf("stages[%d].id is required", i))
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Sprintf("stages[%d].id %q is duplicated", i, s.ID))
		}
		seen[s.ID] = true
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("stages[%d].name is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the configured scheduling time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Travel.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
