package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/agent"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/api"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/config"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/detector"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/engagement"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/events"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/intel"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/lifecycle"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/openai"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/reporter"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// No .env in production images; environment variables rule.
		slog.Info("no .env file found, using environment variables")
	}
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("honeypot starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session store: Postgres when configured, in-memory otherwise.
	var store session.Store
	if cfg.DatabaseURL != "" {
		pg, err := session.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		store = pg
		slog.Info("database connected")
		go expireLoop(ctx, pg, cfg.SessionTTL, cfg.SweepEvery)
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory session store")
		store = session.NewMemoryStore(cfg.SessionTTL, cfg.SweepEvery, slog.Default())
	}
	defer store.Close()

	if cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY not set, running with keyword detection and fallback replies only")
	}
	detectLLM := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIDetectionModel, cfg.LLMTimeout)
	extractLLM := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIExtractionModel, cfg.LLMTimeout)
	replyLLM := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.LLMTimeout)

	det := detector.New(detectLLM, cfg.LLMTimeout, slog.Default())
	ext := intel.New(extractLLM, cfg.LLMTimeout, slog.Default())
	ag := agent.New(replyLLM, cfg.LLMTimeout, slog.Default())
	lc := lifecycle.New(cfg.MaxTurns, cfg.IntelThreshold, cfg.ScamThreshold)

	rep := reporter.New(cfg.CallbackURL, cfg.CallbackTimeout, cfg.CallbackRetries, cfg.CallbackBackoff, slog.Default())
	rep.Start(ctx)

	// NATS events are optional; the honeypot works without a broker.
	var ev *events.Client
	if cfg.NatsURL != "" {
		var err error
		ev, err = events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer ev.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured, running without event publishing")
	}

	pipeline := engagement.New(store, det, ext, ag, lc, rep, ev, cfg.ScamThreshold, slog.Default())

	srv := api.NewServer(cfg.Port, cfg.APIKey, cfg.MaxBodyBytes, pipeline, store, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("honeypot ready", "port", cfg.Port, "max_turns", cfg.MaxTurns, "intel_threshold", cfg.IntelThreshold)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	rep.Wait()
	slog.Info("honeypot stopped")
}

// expireLoop periodically drops sessions idle past the TTL. The in-memory
// store runs its own janitor; Postgres needs this external sweep.
func expireLoop(ctx context.Context, store session.Store, ttl, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Expire(ctx, ttl)
			if err != nil {
				slog.Warn("session expiry sweep failed", "error", err)
			} else if n > 0 {
				slog.Info("expired sessions", "count", n)
			}
		}
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
