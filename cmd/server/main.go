package main

import (
	"context"
	"database/sql"
	"errors"
	"field-visit-service/internal/adapters/cache"
	"field-visit-service/internal/adapters/events"
	"field-visit-service/internal/adapters/geocode"
	"field-visit-service/internal/adapters/repositories"
	"field-visit-service/internal/adapters/store"
	"field-visit-service/internal/adapters/tracking"
	"field-visit-service/internal/api"
	"field-visit-service/internal/api/handlers"
	"field-visit-service/internal/config"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/platform/db"
	"field-visit-service/internal/platform/logger"
	"field-visit-service/internal/ports"
	"field-visit-service/internal/services"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// main is the application composition root.
// It wires concrete adapters (SQL, Redis, MQTT, geocoding) behind ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load(config.Get("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format, "field-visit-service")
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Initialize schema and seed demo data on startup for local runs.
	if err := initAndSeed(ctx, conn, cfg.Database.Driver, cfg.Database.SeedPath, log); err != nil {
		return err
	}

	jobs := repositories.NewSQLJobRepository(conn, cfg.Database.Driver, log)

	resolver, err := buildResolver(cfg, conn, log)
	if err != nil {
		return err
	}

	var (
		states ports.VisitStateStore = store.NewMemoryVisitStateStore()
		sink   ports.TimelineSink
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}

		states = store.NewRedisVisitStateStore(rdb, cfg.Redis.KeyPrefix, log)
		sink = events.NewRedisTimelinePublisher(rdb, cfg.Redis.Stream, 0, log)
		log.Info("visit state in redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		log.Info("visit state in memory")
	}

	svc := services.NewVisitService(services.ServiceDeps{
		Jobs:      jobs,
		JobWriter: jobs,
		States:    states,
		Resolver:  resolver,
		Sink:      sink,
		Stages:    cfg.Stages,
		Estimator: services.NewDistanceEstimator(cfg.Travel.AverageSpeedKmh, cfg.Travel.TrafficFactor),
		Threshold: cfg.Travel.MovementThresholdKm,
		Grid: services.SlotGrid{
			Start:       cfg.Schedule.DayStart,
			End:         cfg.Schedule.DayEnd,
			StepMinutes: cfg.Schedule.StepMinutes,
		},
		TimeZone: cfg.Location(),
		Log:      log,
	})

	var (
		source ports.PositionSource
		relay  handlers.PositionRelay
	)
	if cfg.MQTT.Broker != "" {
		mq, err := tracking.NewMQTTPositionSource(tracking.MQTTOptions{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		}, log)
		if err != nil {
			return err
		}
		defer mq.Close()
		source = mq
	} else {
		ch := tracking.NewChannelSource()
		source, relay = ch, ch
	}

	sessions := services.NewTrackingManager(source, func(ctx context.Context, visitID string, sample domain.LocationCoordinates) error {
		_, err := svc.IngestLocation(ctx, visitID, sample, services.Actor{})
		return err
	}, log)
	defer sessions.StopAll()

	router := api.NewRouter(api.RouterDeps{
		Visits:   svc,
		Tracking: sessions,
		Relay:    relay,
		Log:      log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildResolver picks OpenRouteService, behind the persistent geocode
// cache, when a key is configured and the synthetic hash resolver otherwise.
func buildResolver(cfg *config.Config, conn *sql.DB, log *zap.Logger) (ports.LocationResolver, error) {
	if cfg.Geocode.ORSAPIKey == "" {
		hash, err := geocode.NewHashResolver(
			domain.Coordinates{Lat: cfg.Geocode.CenterLat, Lon: cfg.Geocode.CenterLon},
			cfg.Geocode.RadiusKm,
		)
		if err != nil {
			return nil, err
		}
		return hash, nil
	}

	ors, err := geocode.NewORSResolver(geocode.ORSOptions{
		APIKey:  cfg.Geocode.ORSAPIKey,
		BaseURL: cfg.Geocode.ORSBaseURL,
		Country: cfg.Geocode.Country,
	}, log)
	if err != nil {
		return nil, err
	}

	gc := cache.NewSQLGeocodeCache(conn, cfg.Database.Driver, log)
	return geocode.NewCachedResolver(ors, gc, log), nil
}

func initAndSeed(ctx context.Context, conn *sql.DB, driver, seedPath string, log *zap.Logger) error {
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}
	if seedPath == "" {
		return nil
	}

	n, err := repositories.SeedFromJSON(ctx, conn, driver, seedPath)
	if err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}
	log.Info("seeded jobs", zap.Int("count", n), zap.String("path", seedPath))
	return nil
}
