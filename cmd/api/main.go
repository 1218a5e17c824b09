package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"example.com/ecotrack/internal/api"
	"example.com/ecotrack/internal/auth"
	"example.com/ecotrack/internal/config"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/emission"
	"example.com/ecotrack/internal/live"
	"example.com/ecotrack/internal/logging"
	"example.com/ecotrack/internal/observability"
	"example.com/ecotrack/internal/outbox"
	"example.com/ecotrack/internal/persistence/memory"
	"example.com/ecotrack/internal/persistence/postgres"
	httptransport "example.com/ecotrack/internal/transport/http"
)

type store interface {
	domain.ActivityRepository
	domain.CommunityRepository
}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With().Str("service", "ecotrack-api").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	estimator, err := buildEstimator(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load emission factors")
	}

	var (
		repo       store
		dispatcher *outbox.Dispatcher
	)
	if cfg.UsesMemoryStore() {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		repo = memory.NewRepository(memory.WithScoreOnCreate(), memory.WithChallenges(seedChallenge(time.Now().UTC())))
	} else {
		if cfg.RunMigrations {
			if err := postgres.Migrate(cfg.PostgresURL); err != nil {
				logger.Fatal().Err(err).Msg("failed to apply migrations")
			}
		}

		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pool.Close()
		repo = postgres.NewRepository(pool)

		if cfg.OutboxEnabled {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer producer.Close()

			registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
			dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize,
				outbox.WithLogger(logging.Component(logger, "outbox")))
			go dispatcher.Start(ctx)
		}
	}

	bus, err := buildBus(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect change bus")
	}
	defer bus.Close()

	service := domain.NewService(repo, repo, estimator,
		domain.WithNotifier(live.NewNotifier(bus, logging.Component(logger, "notifier"))),
		domain.WithLogger(logging.Component(logger, "domain")))

	hub := live.NewHub(logging.Component(logger, "live"), live.WithAllowedOrigin(cfg.CORSOrigin))
	recomputer := live.NewRecomputer(service, hub, logging.Component(logger, "recomputer"))
	hub.SetJoinHook(recomputer.Trigger)
	if err := bus.StartForwarder(ctx, recomputer.OnChange); err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe to footprint changes")
	}

	handler := api.NewHandler(service,
		api.WithLiveHandler(http.HandlerFunc(hub.ServeWS)),
		api.WithLogger(logging.Component(logger, "api")))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	publicPaths := auth.PublicPaths("/healthz", "/metrics")
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	authMiddleware.Skipper = httptransport.SkipPreflight(publicPaths)

	middlewares := []httptransport.Middleware{
		httptransport.RequestID(),
		httptransport.AccessLog(logging.Component(logger, "http")),
		httptransport.CORS(cfg.CORSOrigin),
		authMiddleware.Wrap,
	}
	if cfg.RateLimitEnabled {
		limiter := httptransport.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		go limiter.RunJanitor(ctx, time.Minute)
		middlewares = append(middlewares, limiter.Middleware(publicPaths))
	}

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux, middlewares...))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info().
			Str("address", cfg.HTTPAddress).
			Str("store", cfg.StoreDriver).
			Str("estimate_policy", estimator.Policy().String()).
			Msg("ecotrack api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-shutdownCh
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	recomputer.Wait()
	if dispatcher != nil {
		dispatcher.Wait()
	}
}

func buildEstimator(cfg config.Config, logger zerolog.Logger) (*emission.Estimator, error) {
	table := emission.DefaultFactors()
	if cfg.FactorsPath != "" {
		loaded, err := emission.LoadFactors(cfg.FactorsPath)
		if err != nil {
			return nil, err
		}
		table = loaded
		logger.Info().Str("path", cfg.FactorsPath).Msg("emission factors loaded")
	}
	return emission.NewEstimator(table,
		emission.WithPolicy(emission.ParsePolicy(cfg.EstimatePolicy)),
		emission.WithObserver(observability.EstimatorObserver(logging.Component(logger, "estimator"))),
	), nil
}

func buildBus(ctx context.Context, cfg config.Config, logger zerolog.Logger) (live.Bus, error) {
	if cfg.RedisAddr == "" {
		return live.NewLocalBus(), nil
	}
	return live.NewRedisBus(ctx, cfg.RedisAddr, cfg.RedisChannel, logging.Component(logger, "bus"))
}

// seedChallenge gives local development a challenge to show and join.
func seedChallenge(now time.Time) domain.Challenge {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return domain.Challenge{
		ID:          "car-free-month",
		Title:       "Car-free month",
		Description: "Replace car trips with walking, cycling or public transport.",
		StartDate:   start,
		EndDate:     &end,
	}
}
