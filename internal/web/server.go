package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elys-network/flywheel/internal/eventlog"
	"github.com/elys-network/flywheel/internal/flywheel"
	"github.com/elys-network/flywheel/internal/logger"
	"github.com/elys-network/flywheel/internal/types"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultEventLimit = 20
	shutdownTimeout   = 10 * time.Second
)

// Service is the flywheel surface the web server drives.
type Service interface {
	Config(ctx context.Context) (*types.FlywheelConfig, uint64, error)
	Initialize(ctx context.Context, params types.InitParams) (*types.FlywheelConfig, error)
	UpdateConfig(ctx context.Context, caller solana.PublicKey, params types.UpdateParams) (*types.FlywheelConfig, error)
	Deposit(ctx context.Context, depositor solana.PublicKey, amount uint64) (*types.DepositReceipt, error)
	Execute(ctx context.Context, executor solana.PublicKey) (*types.ExecutionResult, error)
	EmergencyWithdraw(ctx context.Context, caller, recipient solana.PublicKey) (*types.WithdrawReceipt, error)
	Phase() flywheel.Phase
	Ping(ctx context.Context) error
}

// InitDefaults fill initialization fields a request leaves out.
type InitDefaults struct {
	TokenMint  solana.PublicKey
	FeeVault   solana.PublicKey
	EpochStart int64
	EpochEnd   int64
}

// Config holds the configuration for creating a new WebServer
type Config struct {
	Service  Service
	Events   *eventlog.Cache
	Defaults InitDefaults
	Port     string

	// MaxEventLimit caps the limit query parameter of the events endpoint.
	MaxEventLimit int

	// RatePerMinute and RateBurst bound mutating requests per client IP. Zero disables limiting.
	RatePerMinute int
	RateBurst     int
}

// WebServer serves the flywheel dashboard API and the admin endpoints
type WebServer struct {
	router   *mux.Router
	service  Service
	events   *eventlog.Cache
	defaults InitDefaults
	port     string
	maxLimit int
	limiter  *RateLimiter
	logger   zerolog.Logger
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) (*WebServer, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if cfg.Events == nil {
		return nil, fmt.Errorf("event cache cannot be nil")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.MaxEventLimit <= 0 {
		cfg.MaxEventLimit = eventlog.DefaultRetention
	}

	server := &WebServer{
		router:   mux.NewRouter(),
		service:  cfg.Service,
		events:   cfg.Events,
		defaults: cfg.Defaults,
		port:     cfg.Port,
		maxLimit: cfg.MaxEventLimit,
		logger:   logger.GetForComponent("web_server"),
	}
	if cfg.RatePerMinute > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		server.limiter = NewRateLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), burst)
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods(http.MethodGet)
	ws.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Dashboard reads
	ws.router.HandleFunc("/api/health", ws.handleHealth).Methods(http.MethodGet)
	ws.router.HandleFunc("/api/config", ws.handleGetConfig).Methods(http.MethodGet, http.MethodOptions)
	ws.router.HandleFunc("/api/events", ws.handleGetEvents).Methods(http.MethodGet, http.MethodOptions)

	// Mutations
	ws.router.Handle("/api/initialize", ws.rateLimited(ws.handleInitialize)).Methods(http.MethodPost, http.MethodOptions)
	ws.router.Handle("/api/update-config", ws.rateLimited(ws.handleUpdateConfig)).Methods(http.MethodPost, http.MethodOptions)
	ws.router.Handle("/api/deposit", ws.rateLimited(ws.handleDeposit)).Methods(http.MethodPost, http.MethodOptions)
	ws.router.Handle("/api/execute", ws.rateLimited(ws.handleExecute)).Methods(http.MethodPost, http.MethodOptions)
	ws.router.Handle("/api/withdraw", ws.rateLimited(ws.handleWithdraw)).Methods(http.MethodPost, http.MethodOptions)

	ws.router.MethodNotAllowedHandler = http.HandlerFunc(ws.handleMethodNotAllowed)
	ws.router.NotFoundHandler = http.HandlerFunc(ws.handleNotFound)

	ws.router.Use(ws.metricsMiddleware)
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler exposes the router, e.g. for httptest.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Run(ctx context.Context) error {
	ws.logger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		ws.logger.Info().Msg("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
