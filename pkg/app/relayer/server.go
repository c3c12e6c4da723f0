// Package relayer implements app.Runner for the relayer process.
package relayer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	playground "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/omnivault/intent-relayer/pkg/app/http"
	"github.com/omnivault/intent-relayer/pkg/app/httpserver"
	"github.com/omnivault/intent-relayer/pkg/assets"
	"github.com/omnivault/intent-relayer/pkg/auth"
	"github.com/omnivault/intent-relayer/pkg/config"
	"github.com/omnivault/intent-relayer/pkg/custody"
	"github.com/omnivault/intent-relayer/pkg/execution"
	"github.com/omnivault/intent-relayer/pkg/intent"
	"github.com/omnivault/intent-relayer/pkg/pgutil"
	"github.com/omnivault/intent-relayer/pkg/queue"
	"github.com/omnivault/intent-relayer/pkg/relayer"
	"github.com/omnivault/intent-relayer/pkg/settlement"
	"github.com/omnivault/intent-relayer/pkg/status"
)

const (
	defaultHTTPMiddlewareTimeout = 60 * time.Second
	defaultHTTPReadTimeout       = 15 * time.Second
	defaultHTTPWriteTimeout      = 15 * time.Second
	defaultHTTPIdleTimeout       = 60 * time.Second
)

// Server holds configuration for the relayer process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new relayer Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the relayer engine and the intent API server.
// It blocks until an OS shutdown signal is received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting intent relayer", zap.String("chain", string(cfg.Chain.Served)))

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect status db: %w", err)
	}
	defer func() { _ = db.Close() }()
	statusStore := status.NewStore(db)
	logger.Info("Database connection established")

	q, err := queue.NewRedisQueue(queue.RedisConfig{
		Address:           cfg.Redis.Address,
		Password:          cfg.Redis.Password,
		DB:                cfg.Redis.DB,
		KeyPrefix:         cfg.Redis.KeyPrefix,
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	logger.Info("Queue connection established")

	registry, err := s.loadRegistry(logger)
	if err != nil {
		return err
	}

	signer := custody.NewHTTPSigner(cfg.Signer.BaseURL, cfg.Signer.Timeout, logger)
	executor := execution.NewHTTPClient(cfg.Execution.BaseURL, signer, cfg.Signer.KeyType, cfg.Execution.Timeout, logger)
	settlementClient := settlement.NewHTTPClient(cfg.Settlement.BaseURL, cfg.Settlement.Timeout, logger)

	swap := relayer.NewChainSwapFlow(settlementClient, executor, signer, cfg.Signer.BasePath, logger)
	deposit := relayer.NewLendingDepositFlow(swap, executor, logger)
	withdraw := relayer.NewLendingWithdrawFlow(swap, executor, logger)
	router := relayer.NewRouter(logger, deposit, withdraw, swap)

	processor := relayer.NewProcessor(q, statusStore, router, cfg.Queue.MaxAttempts, cfg.Queue.Backoff(), logger)
	poller := relayer.NewPoller(statusStore, q, settlementClient, cfg.Poller.Interval, cfg.Poller.MaxWait, logger)

	engine := relayer.NewEngine(q, processor, poller, cfg.Queue.Concurrency, logger)
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start relayer engine: %w", err)
	}
	defer engine.Stop()

	handler := s.newRouter(&api{
		validator: intent.NewValidator(cfg.Chain.Served, registry),
		registry:  registry,
		check:     playground.New(),
		store:     statusStore,
		queue:     q,
		logger:    logger,
	}, engine, logger)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := newHTTPServer(serverAddr, handler)

	return httpserver.ServeAndWait(ctx, logger, httpServer, cfg.Shutdown.Timeout)
}

// loadRegistry reads the asset registry. An empty path disables the asset
// gate; a configured path that fails to load is fatal, a half-read
// registry would silently widen what the relayer is willing to move.
func (s *Server) loadRegistry(logger *zap.Logger) (*assets.Registry, error) {
	path := s.cfg.Assets.RegistryPath
	if path == "" {
		logger.Warn("No asset registry configured, accepting all assets")
		return nil, nil
	}
	registry, err := assets.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load asset registry: %w", err)
	}
	logger.Info("Asset registry loaded", zap.Int("assets", registry.Len()))
	return registry, nil
}

func (s *Server) newRouter(a *api, engine *relayer.Engine, logger *zap.Logger) http.Handler {
	cfg := s.cfg

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultHTTPMiddlewareTimeout))

	// NOTE: chi's middleware.Logger logs to stdlib.
	// Keep it temporarily if access logs are useful; replace with zap-based middleware later.
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !engine.IsReady() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	jwtValidator := auth.NewJWTValidator(cfg.JWKS.URL, cfg.JWKS.Issuer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/intents", apphttp.HandleError(a.submitIntent))
		r.Get("/intents/{id}", apphttp.HandleError(a.getIntent))

		r.Route("/admin", func(r chi.Router) {
			if jwtValidator.IsConfigured() {
				r.Use(jwtValidator.Middleware)
			} else {
				logger.Warn("JWKS not configured, admin routes are unauthenticated")
			}
			r.Get("/dead-letters", apphttp.HandleError(a.listDeadLetters))
		})
	})

	return r
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  defaultHTTPReadTimeout,
		WriteTimeout: defaultHTTPWriteTimeout,
		IdleTimeout:  defaultHTTPIdleTimeout,
	}
}
