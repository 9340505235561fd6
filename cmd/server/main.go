package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pappertech/dispatch-core/internal/adapter/handler"
	"github.com/pappertech/dispatch-core/internal/adapter/storage"
	"github.com/pappertech/dispatch-core/internal/audit"
	"github.com/pappertech/dispatch-core/internal/config"
	"github.com/pappertech/dispatch-core/internal/core/bus"
	"github.com/pappertech/dispatch-core/internal/core/domain"
	"github.com/pappertech/dispatch-core/internal/core/service"
	"github.com/pappertech/dispatch-core/internal/metrics"
	"github.com/pappertech/dispatch-core/internal/port"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	metrics.Register()
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.RateLimit, cfg.RateLimitWindow)

	// Audit writes go through a buffered queue so a slow database never
	// stalls the request path.
	auditSink := audit.NewAsyncSink(mysqlAdapter, cfg.AuditQueueSize, cfg.AuditWorkers, logger)

	// Core services
	riskEngine := service.NewRiskEngine(redisAdapter, redisAdapter, auditSink, cfg.Risk, logger)
	lifecycle := service.NewLifecycleManager(mysqlAdapter, mysqlAdapter, logger)

	// Notification fan-out. The default subscribers log per role; dashboard
	// push channels subscribe here once the websocket gateway lands.
	notifications := bus.New(logger)
	for _, role := range []domain.Role{domain.RoleCustomer, domain.RoleSeller, domain.RoleDelivery, domain.RoleAdmin} {
		role := role
		notifications.Subscribe(role, func(event domain.NotificationEvent) {
			logger.Info("notification",
				zap.String("role", string(role)),
				zap.String("type", string(event.Type)),
				zap.String("order_id", event.OrderID),
				zap.String("message", event.Message))
		})
	}

	// Credential verification is owned by the accounts service; this binary
	// only gates the attempt. Until the accounts client is wired in, every
	// login past the gate is rejected.
	authenticator := port.AuthenticatorFunc(func(ctx context.Context, email, password string) (string, error) {
		return "", port.ErrInvalidCredentials
	})

	httpHandler := handler.NewHTTPHandler(lifecycle, riskEngine, notifications, redisAdapter, authenticator, logger)

	r := chi.NewRouter()
	r.Use(instrument)
	httpHandler.Routes(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	// Drain pending audit writes before closing connections.
	auditSink.Close()
	logger.Info("audit queue drained")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

// instrument records request counts and latency per method.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(wrapped.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
