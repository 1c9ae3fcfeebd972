package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "DB_DRIVER", "DB_DSN", "DB_PATH", "SEED_PATH",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_KEY_PREFIX",
	"MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_TOPIC_PREFIX",
	"ORS_API_KEY", "GEOCODE_CENTER_LAT", "GEOCODE_CENTER_LON", "GEOCODE_RADIUS_KM",
	"AVERAGE_SPEED_KMH", "TRAFFIC_FACTOR", "MOVEMENT_THRESHOLD_KM", "TIME_ZONE",
	"LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestParseDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadHeaderTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/app.db", cfg.Database.DSN)
	assert.Equal(t, "fieldvisits:", cfg.Redis.KeyPrefix)
	assert.Equal(t, "fieldvisits:timeline", cfg.Redis.Stream)
	assert.Equal(t, 40.0, cfg.Travel.AverageSpeedKmh)
	assert.Equal(t, 1.0, cfg.Travel.TrafficFactor)
	assert.Equal(t, 0.1, cfg.Travel.MovementThresholdKm)
	assert.Equal(t, "08:00", cfg.Schedule.DayStart)
	assert.Equal(t, "18:00", cfg.Schedule.DayEnd)
	assert.Equal(t, 30, cfg.Schedule.StepMinutes)
	assert.Equal(t, 25.0, cfg.Geocode.RadiusKm)
	assert.Empty(t, cfg.Stages)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestParseYAML(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte(`
http:
  port: "9000"
  write_timeout: 2m
database:
  driver: pgx
  dsn: postgres://visits@localhost/visits
redis:
  addr: localhost:6379
  key_prefix: "fv:"
schedule:
  day_start: "07:00"
  step_minutes: 15
stages:
  - id: travel
    name: Travel
    estimated_minutes: 20
  - id: work
    name: Work
    estimated_minutes: 90
`))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTP.Port)
	assert.Equal(t, 2*time.Minute, cfg.HTTP.WriteTimeout)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "fv:timeline", cfg.Redis.Stream)
	assert.Equal(t, "07:00", cfg.Schedule.DayStart)
	assert.Equal(t, 15, cfg.Schedule.StepMinutes)
	require.Len(t, cfg.Stages, 2)
	assert.Equal(t, "work", cfg.Stages[1].ID)
	assert.Equal(t, 90, cfg.Stages[1].EstimatedMinutes)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7070")
	t.Setenv("DB_PATH", "/tmp/visits.db")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("AVERAGE_SPEED_KMH", "55.5")
	t.Setenv("ORS_API_KEY", "secret")

	cfg, err := Parse([]byte("http:\n  port: \"9000\"\ntravel:\n  average_speed_kmh: 30\n"))
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.HTTP.Port)
	assert.Equal(t, "/tmp/visits.db", cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 55.5, cfg.Travel.AverageSpeedKmh)
	assert.Equal(t, "secret", cfg.Geocode.ORSAPIKey)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	tests := map[string]string{
		"driver":       "database:\n  driver: mysql\n",
		"postgres dsn": "database:\n  driver: pgx\n",
		"time zone":    "travel:\n  time_zone: Mars/Olympus\n",
		"stage id":     "stages:\n  - name: Travel\n",
		"duplicate":    "stages:\n  - id: a\n    name: A\n  - id: a\n    name: B\n",
		"stage name":   "stages:\n  - id: a\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorContains(t, err, "validation failed")
		})
	}

	_, err := Parse([]byte("http: ["))
	assert.ErrorContains(t, err, "config: parse")
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTP.Port)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestGet(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, "config.yaml", Get("CONFIG_PATH", "config.yaml"))
	t.Setenv("CONFIG_PATH", "/etc/visits.yaml")
	assert.Equal(t, "/etc/visits.yaml", Get("CONFIG_PATH", "config.yaml"))
}
