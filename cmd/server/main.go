package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/agentname"
	"github.com/dennisdiepolder/monti/frontdesk/internal/aggregator"
	"github.com/dennisdiepolder/monti/frontdesk/internal/api"
	"github.com/dennisdiepolder/monti/frontdesk/internal/auth"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cache"
	"github.com/dennisdiepolder/monti/frontdesk/internal/cdr"
	"github.com/dennisdiepolder/monti/frontdesk/internal/config"
	"github.com/dennisdiepolder/monti/frontdesk/internal/event"
	"github.com/dennisdiepolder/monti/frontdesk/internal/ingestion"
	"github.com/dennisdiepolder/monti/frontdesk/internal/metrics"
	"github.com/dennisdiepolder/monti/frontdesk/internal/storage"
	"github.com/dennisdiepolder/monti/frontdesk/internal/websocket"
	"github.com/dennisdiepolder/monti/frontdesk/internal/weekly"
	"github.com/dennisdiepolder/monti/frontdesk/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("timezone", cfg.Timezone).
		Int("authorized_agents", len(cfg.AuthorizedAgents)).
		Msg("starting frontdesk server")

	if len(cfg.AuthorizedAgents) == 0 {
		log.Warn().Msg("no authorized agents configured, every front office call will count as ABSYS")
	}

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Durable weekly counters
	storeCfg := storage.LoadConfig()
	kv, err := storage.NewStore(ctx, storeCfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("mode", string(storeCfg.Mode)).Msg("failed to open weekly store")
	}
	if closer, ok := kv.(interface{ Close() }); ok {
		defer closer.Close()
	}
	weeklyStore := weekly.NewStore(kv, cfg.KeepWeeks, log.Logger)

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Feed parsing and ingestion
	resolver := agentname.NewResolver(cfg.AuthorizedAgents, cfg.Denylist)
	parser := cdr.NewParser(resolver, cfg.OutboundMarker, log.Logger)
	recordCache := cache.NewRecordCache()
	processor := ingestion.NewDefaultProcessor(parser, recordCache, weeklyStore, cfg.Location, log.Logger)

	// Create aggregator
	aggregatorService := aggregator.NewService(recordCache, weeklyStore, hub, aggregator.Options{
		Interval: cfg.AggregationInterval,
		Span:     cfg.WindowSpan,
		Location: cfg.Location,
	}, log.Logger)

	if cfg.FeedFile != "" {
		if err := replayFeed(ctx, cfg.FeedFile, processor); err != nil {
			log.Error().Err(err).Str("file", cfg.FeedFile).Msg("failed to replay feed file")
		}
	}

	go aggregatorService.Start(ctx)

	// Create authenticator
	authenticator := auth.NewAuthenticator(auth.Options{
		SkipAuth:        cfg.SkipAuth,
		VerifySignature: cfg.VerifySignature(),
		Issuer:          cfg.OIDCIssuer,
	}, log.Logger)
	if cfg.SkipAuth {
		log.Warn().Msg("SKIP_AUTH enabled, bypassing authentication")
	} else if cfg.VerifySignature() {
		if err := authenticator.InitJWKS(); err != nil {
			log.Error().Err(err).Msg("failed to load JWKS, will retry on first request")
		}
	}

	r := newRouter(cfg, routes{
		auth:      authenticator,
		receiver:  event.NewReceiver(processor, processor, log.Logger),
		feed:      websocket.NewFeedHandler(processor, cfg, log.Logger),
		dashboard: api.NewDashboardHandler(aggregatorService, weeklyStore, log.Logger),
		admin:     api.NewAdminHandler(cfg.SimURL, aggregatorService, weeklyStore, log.Logger),
		ws:        websocket.NewHandler(hub, cfg, log.Logger),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the aggregation loop
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// routes groups the handlers mounted by newRouter
type routes struct {
	auth      *auth.Authenticator
	receiver  *event.Receiver
	feed      http.Handler
	dashboard *api.DashboardHandler
	admin     *api.AdminHandler
	ws        http.Handler
}

func newRouter(cfg *config.Config, h routes) http.Handler {
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Internal routes (no auth - telephony feed and simulator)
	r.Route("/internal", func(r chi.Router) {
		r.Post("/cdr", h.receiver.HandleLines)
		r.Post("/cdr/deltas", h.receiver.HandleDeltas)
		r.Get("/cdr/stats", h.receiver.GetStats)
		r.Get("/feed", h.feed.ServeHTTP)
	})

	// Protected dashboard routes
	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)
		r.Get("/ws", h.ws.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Get("/dashboard", h.dashboard.GetDashboard)
			r.Get("/agents/{name}", h.dashboard.GetAgent)
			r.Get("/weekly", h.dashboard.GetWeekly)

			r.Route("/admin", func(r chi.Router) {
				r.Use(api.RequireAdmin)
				r.Post("/reset-window", h.admin.ResetWindow)
				r.Delete("/weekly", h.admin.WipeWeekly)
				r.Get("/sim/status", h.admin.GetSimStatus)
				r.Post("/sim/start", h.admin.StartSim)
				r.Post("/sim/stop", h.admin.StopSim)
				r.Post("/sim/rate", h.admin.SetSimRate)
			})
		})
	})

	return r
}

// replayFeed loads a recorded feed into the record window
func replayFeed(ctx context.Context, path string, processor ingestion.RecordProcessor) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return ingestion.NewReaderSource(f, log.Logger).Start(ctx, processor)
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"frontdesk"}`)
}
