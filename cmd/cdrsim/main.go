package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/cdr"
	"github.com/dennisdiepolder/monti/frontdesk/internal/simulator"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	// CLI flags
	var (
		controlPort = flag.String("control-port", "8081", "Control API port")
		backendURL  = flag.String("backend-url", "http://localhost:8080", "Backend URL")
		agents      = flag.String("agents", envOr("AUTHORIZED_AGENTS", "Jane Doe,John Smith,Marie Curie"), "Comma-separated agent names")
		rate        = flag.Float64("rate", 6, "Calls per minute")
		timezone    = flag.String("timezone", envOr("TIMEZONE", "Europe/Paris"), "Timezone of the generated timestamps")
		marker      = flag.String("outbound-marker", envOr("OUTBOUND_MARKER", cdr.DefaultOutboundMarker), "Caller prefix of outbound calls")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		autoStart   = flag.Bool("auto-start", false, "Automatically start simulation")
		backfill    = flag.Int("backfill", 0, "Lines to send once at startup, spread over the last hour")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	// Setup logger
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "cdrsim").
		Logger()

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", *timezone).Msg("invalid timezone")
	}

	roster := splitNames(*agents)
	logger.Info().Int("agents", len(roster)).Msg("starting cdr simulator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	generator := simulator.NewGenerator(*seed, roster, *marker)
	sender := simulator.NewHTTPSender(*backendURL)
	sim := simulator.New(generator, sender, *rate, loc, logger)
	controlAPI := simulator.NewAPI(ctx, sim, logger)

	// Start control API
	go func() {
		addr := fmt.Sprintf(":%s", *controlPort)
		if err := controlAPI.Start(ctx, addr); err != nil {
			logger.Error().Err(err).Msg("control API stopped")
		}
	}()

	if *backfill > 0 {
		start := time.Now().In(loc).Add(-time.Hour)
		step := time.Hour / time.Duration(*backfill)
		lines := make([]string, 0, *backfill)
		for i := 0; i < *backfill; i++ {
			lines = append(lines, generator.Line(start.Add(time.Duration(i)*step)))
		}
		if err := sender.Send(ctx, lines); err != nil {
			logger.Error().Err(err).Msg("failed to send backfill")
		} else {
			logger.Info().Int("lines", len(lines)).Msg("backfill sent")
		}
	}

	// Auto-start if requested
	if *autoStart {
		if err := sim.Start(ctx, *rate); err != nil {
			logger.Error().Err(err).Msg("failed to auto-start simulation")
		}
	}

	logger.Info().
		Str("control_api", fmt.Sprintf("http://localhost:%s", *controlPort)).
		Str("backend_url", *backendURL).
		Msg("cdrsim ready")

	printUsage(*controlPort)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down cdrsim")
	if sim.Status().Running {
		sim.Stop()
	}
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitNames(value string) []string {
	var names []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

func printUsage(port string) {
	fmt.Println()
	fmt.Println("cdrsim control API")
	fmt.Println()
	fmt.Println("Available endpoints:")
	fmt.Printf("  GET  http://localhost:%s/health  - Health check\n", port)
	fmt.Printf("  GET  http://localhost:%s/status  - Simulation status\n", port)
	fmt.Printf("  POST http://localhost:%s/start   - Start simulation\n", port)
	fmt.Printf("  POST http://localhost:%s/stop    - Stop simulation\n", port)
	fmt.Printf("  POST http://localhost:%s/rate    - Change calls per minute\n", port)
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  curl http://localhost:%s/status\n", port)
	fmt.Printf("  curl -X POST http://localhost:%s/start -d '{\"callsPerMin\":30}'\n", port)
	fmt.Printf("  curl -X POST http://localhost:%s/stop\n", port)
	fmt.Println()
}
