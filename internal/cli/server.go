package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"survey-flow-service/internal/app"
	"survey-flow-service/internal/config"
	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
	"survey-flow-service/internal/infra/memory"
	mongostore "survey-flow-service/internal/infra/mongo"
	pgstore "survey-flow-service/internal/infra/postgres"
	redisstore "survey-flow-service/internal/infra/redis"
	"survey-flow-service/internal/metrics"
	transport "survey-flow-service/internal/transport/http"
)

// surveyStore is the authoring backend: the cache's loader and the service's writer.
type surveyStore interface {
	LoadSurvey(ctx context.Context, surveyID string) (domain.Survey, error)
	app.SurveyWriter
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the survey flow server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	responseTTL := config.TTLDuration(cfg.Response.TTL, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))

	var (
		store   surveyStore
		archive app.ResponseArchive
	)
	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewSurveyStore(pool)

		db := openBun(cfg.Postgres.URL)
		defer db.Close()
		archive = pgstore.NewResponseArchive(db)
	case cfg.Mongo.URI != "":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = client.Ping(pingCtx, nil)
		cancel()
		if err != nil {
			return err
		}
		database := cfg.Mongo.Database
		if database == "" {
			database = "survey_flow"
		}
		store = mongostore.NewSurveyStore(client.Database(database))
	default:
		logger.Info("no survey backend configured, serving sample surveys from memory")
		store = memory.NewSurveyStore(sampleSurveys()...)
	}

	surveyTTL := config.TTLDuration(cfg.Survey.TTL, 10*time.Minute)
	var surveys app.SurveyRepository
	if redisClient != nil {
		surveys = redisstore.NewSurveyRepository(redisClient, store, surveyTTL)
	} else {
		surveys = memory.NewSurveyRepository(store, surveyTTL)
	}

	var responses app.ResponseStore
	if redisClient != nil {
		responses = redisstore.NewResponseStore(redisClient, responseTTL)
	} else {
		mem := memory.NewResponseStore(responseTTL)
		go sweep(ctx, mem, logger)
		responses = mem
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	opts := []app.ServiceOption{
		app.WithLogger(logger),
		app.WithEngine(flow.NewEngine(logger, flow.WithObserver(m))),
		app.WithIdleTimeout(config.TTLDuration(cfg.Response.IdleTimeout, 0)),
		app.WithValidationHook(m.ObserveValidation),
	}
	if archive != nil {
		opts = append(opts, app.WithArchive(archive))
	}
	service := app.NewFlowService(surveys, store, responses, opts...)

	router := transport.NewRouter(
		transport.NewHandler(service),
		transport.NewWSHandler(service, logger),
		metrics.Handler(reg),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting survey flow service", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", slog.Any("error", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sweep drops expired in-memory responses once a minute.
func sweep(ctx context.Context, store *memory.ResponseStore, logger *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				logger.Debug("swept expired responses", slog.Int("count", n))
			}
		}
	}
}
