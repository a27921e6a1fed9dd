package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teamdesk/teamdesk/internal/config"
	"github.com/teamdesk/teamdesk/internal/directory"
	"github.com/teamdesk/teamdesk/internal/httpmw"
	"github.com/teamdesk/teamdesk/internal/notify"
	"github.com/teamdesk/teamdesk/internal/policy"
	"github.com/teamdesk/teamdesk/internal/realtime"
	"github.com/teamdesk/teamdesk/internal/workdata"
	"github.com/teamdesk/teamdesk/pkg/besteffort"
	"github.com/teamdesk/teamdesk/pkg/database"
	"github.com/teamdesk/teamdesk/pkg/jsonutil"
	"github.com/teamdesk/teamdesk/pkg/messaging"
	"github.com/teamdesk/teamdesk/pkg/observability"
	"github.com/teamdesk/teamdesk/pkg/secrets"
)

const scanLeaseTTL = 30 * time.Minute

// hubEmitter adapts the realtime hub to the dispatcher's Emitter interface.
type hubEmitter struct {
	hub *realtime.Hub
}

func (e *hubEmitter) Emit(userID string, n *notify.Notification) {
	e.hub.Emit(userID, n)
}

func main() {
	logger := observability.NewLogger("notify")

	cfg, err := config.Load(os.Getenv("NOTIFY_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "notify",
		ServiceVersion: "0.1.0",
		Endpoint:       cfg.OTLPEndpoint,
		Environment:    cfg.Environment,
	})
	if err != nil {
		logger.Warn("failed to init tracer", "error", err)
	} else {
		defer shutdownTracer(context.Background())
	}

	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn, err = secrets.FetchString(ctx, cfg.DatabaseSecretARN)
		if err != nil {
			logger.Error("failed to fetch database secret", "error", err)
			os.Exit(1)
		}
	}

	db, err := database.Connect(dsn)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(dsn, cfg.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, scan leases degraded", "error", err)
		}
		defer rdb.Close()
	}

	var rabbit *messaging.RabbitClient
	if cfg.RabbitURL != "" {
		rabbit, err = messaging.NewRabbitClient(messaging.DefaultRabbitConfig(cfg.RabbitURL))
		if err != nil {
			logger.Warn("rabbitmq unreachable, queue consumption disabled", "error", err)
			rabbit = nil
		} else {
			defer rabbit.Close()
		}
	}

	var producer *messaging.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = messaging.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	notifRepo := notify.NewRepository(db)
	workRepo := workdata.NewRepository(db)
	dirRepo := directory.NewRepository(db)

	hub := realtime.NewHub(logger)
	defer hub.Close()
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "notify_realtime_connections",
		Help: "Current number of live websocket connections.",
	}, func() float64 { return float64(hub.Connections()) }))

	dispatcherCfg := notify.DispatcherConfig{
		Store:     notifRepo,
		Prefs:     notifRepo,
		Validator: policy.NewTenantValidator(dirRepo, logger),
		Emitter:   &hubEmitter{hub: hub},
		Users:     dirRepo,
		Logger:    logger,
	}
	if cfg.ResendAPIKey != "" {
		dispatcherCfg.Mailer = notify.NewEmailService(cfg.ResendAPIKey)
	}
	if producer != nil {
		dispatcherCfg.Stream = producer
	}
	dispatcher := notify.NewDispatcher(dispatcherCfg)
	consumer := notify.NewConsumer(dispatcher, logger)

	var eventQueue notify.EventQueue
	if rabbit != nil {
		if _, err := rabbit.DeclareQueue(cfg.RabbitQueue); err != nil {
			logger.Warn("failed to declare event queue", "queue", cfg.RabbitQueue, "error", err)
		} else {
			eventQueue = rabbit
			besteffort.Go(ctx, logger, "rabbit.consume", func(ctx context.Context) error {
				return rabbit.Consume(ctx, cfg.RabbitQueue, func(body []byte) error {
					return consumer.HandleMessage(ctx, body)
				})
			})
		}
	}

	lock := notify.NewScanLock(rdb, scanLeaseTTL, logger)
	deadlines := notify.NewDeadlineChecker(workRepo, dispatcher, lock, cfg.ScanStartDelay, cfg.ScanInterval, logger)
	followUps := notify.NewFollowUpChecker(workRepo, dispatcher, lock, cfg.ScanStartDelay, cfg.ScanInterval, logger)
	deadlines.Start()
	followUps.Start()
	defer followUps.Stop()
	defer deadlines.Stop()

	handler := notify.NewHandler(notifRepo, consumer, eventQueue, cfg.RabbitQueue, logger)

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]any{
			"status":  "active",
			"service": "notify",
			"queue":   rabbit != nil && rabbit.IsHealthy(),
		}
		jsonutil.WriteJSON(w, http.StatusOK, status)
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(httpmw.JWTAuth(cfg.JWTSecret, logger))
	handler.RegisterRoutes(api)
	api.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		id, ok := httpmw.IdentityFrom(req.Context())
		if !ok {
			jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		hub.ServeWS(w, req, id.UserID)
	}).Methods(http.MethodGet)

	internal := r.PathPrefix("/internal/v1").Subrouter()
	internal.Use(httpmw.ServiceKeyAuth(cfg.ServiceKeySecret, cfg.ServiceKeyHashes, logger))
	handler.RegisterInternalRoutes(internal)

	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics server starting", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, metricsMux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(r, "notify-request"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("notify service starting", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("notify service stopped")
}
