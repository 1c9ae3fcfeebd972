package main

import (
	"context"
	"path/filepath"
	"testing"

	"field-visit-service/internal/adapters/geocode"
	"field-visit-service/internal/adapters/repositories"
	"field-visit-service/internal/config"
	"field-visit-service/internal/platform/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildResolverFallsBackToHash(t *testing.T) {
	cfg := &config.Config{Geocode: config.GeocodeConfig{CenterLat: 33.45, CenterLon: -112.07, RadiusKm: 10}}

	r, err := buildResolver(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &geocode.HashResolver{}, r)
}

func TestBuildResolverCachesORS(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: db.DriverSQLite},
		Geocode:  config.GeocodeConfig{ORSAPIKey: "key"},
	}

	r, err := buildResolver(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &geocode.CachedResolver{}, r)
}

func TestInitAndSeed(t *testing.T) {
	conn, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	core, logs := observer.New(zap.InfoLevel)
	ctx := context.Background()
	seed := filepath.Join("..", "..", "data", "seeds", "jobs.json")

	require.NoError(t, initAndSeed(ctx, conn, db.DriverSQLite, seed, zap.New(core)))
	require.NoError(t, initAndSeed(ctx, conn, db.DriverSQLite, "", zap.New(core)))

	entries := logs.FilterMessage("seeded jobs").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 4, entries[0].ContextMap()["count"])

	jobs, err := repositories.NewSQLJobRepository(conn, db.DriverSQLite, nil).ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 4)

	err = initAndSeed(ctx, conn, db.DriverSQLite, filepath.Join(t.TempDir(), "none.json"), zap.New(core))
	assert.ErrorContains(t, err, "init and seed")
}
