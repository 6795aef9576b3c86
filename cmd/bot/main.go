package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/goal-relay/internal/agent/broadcaster"
	"github.com/goal-relay/internal/agent/watcher"
	"github.com/goal-relay/internal/classify"
	"github.com/goal-relay/internal/config"
	"github.com/goal-relay/internal/feed"
	"github.com/goal-relay/internal/feed/reddit"
	"github.com/goal-relay/internal/feed/rss"
	"github.com/goal-relay/internal/resolver"
	"github.com/goal-relay/internal/schedule"
	"github.com/goal-relay/internal/storage"
	"github.com/goal-relay/internal/storage/sqlite"
	"github.com/goal-relay/internal/telegram"
	"github.com/goal-relay/pkg/logger"
	"github.com/goal-relay/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "goal-relay",
		Short: "Subreddit goal alert relay for Telegram",
		Long: `Polls a subreddit for new goal posts, resolves the clip behind each one
and broadcasts alerts to a Telegram channel, attaching the video in the
linked discussion group.`,
		RunE: runBot,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Str("subreddit", cfg.Reddit.Subreddit).Msg("Starting goal relay")

	// Open the queue; the process entry point owns its lifecycle
	queue, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer queue.Close()

	if err := queue.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Start health check and metrics server
	go startHealthServer(queue)

	// Initialize rate limiter
	limiter := ratelimit.NewDefaultLimiter()

	// Pick the feed source: the API when credentials are configured, the
	// public RSS feed otherwise (degraded: no flair, no native video)
	var source feed.Source
	if cfg.Reddit.HasCredentials() {
		source = reddit.New(cfg.Reddit, limiter, log)
	} else {
		log.Warn().Msg("No Reddit credentials, falling back to RSS feed")
		source = rss.New(cfg.Reddit, log)
	}

	classifier, err := classify.New(cfg.Classify.ScorePattern)
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}

	videoResolver := resolver.New(cfg.Resolver, limiter, log)
	messenger := telegram.NewClient(cfg.Telegram.BotToken, limiter, log)

	// Create agents
	watchAgent := watcher.NewAgent(source, classifier, queue, cfg.Reddit.FetchLimit, log)
	broadcastAgent := broadcaster.NewAgent(queue, videoResolver, messenger, cfg.Telegram, cfg.Scheduler.ForwardGrace, log)

	// Nightly maintenance: deep purge plus queue stats
	c := cron.New(cron.WithLogger(cronLogger{log}))
	_, err = c.AddFunc(cfg.Scheduler.MaintenanceCron, func() {
		runMaintenance(queue)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance job: %w", err)
	}
	c.Start()
	defer c.Stop()
	log.Info().Str("cron", cfg.Scheduler.MaintenanceCron).Msg("Maintenance job scheduled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = runLoop(ctx, watchAgent, broadcastAgent, queue)
	log.Info().Msg("Shutting down")
	return err
}

// runLoop alternates fetch and drain phases until the context is cancelled
func runLoop(ctx context.Context, watchAgent *watcher.Agent, broadcastAgent *broadcaster.Agent, queue storage.Queue) error {
	for {
		if _, err := watchAgent.Run(ctx); err != nil {
			// fetch failures never crash the loop, just retry next cycle
			log.Error().Err(err).Msg("Fetch phase failed")
		}

		if err := sleepCtx(ctx, cfg.Scheduler.FetchPause); err != nil {
			return nil
		}

		broadcastAgent.Drain(ctx, cfg.Queue.Workers)

		if _, err := queue.PurgeOld(ctx, cfg.Queue.Retention); err != nil {
			log.Error().Err(err).Msg("Queue purge failed")
		}

		interval := schedule.RefreshInterval(time.Now())
		log.Debug().Dur("interval", interval).Msg("Sleeping until next cycle")
		if err := sleepCtx(ctx, interval); err != nil {
			return nil
		}
	}
}

// sleepCtx sleeps for d or until the context is cancelled
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runMaintenance purges old rows and logs queue stats
func runMaintenance(queue storage.Queue) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := queue.PurgeOld(ctx, cfg.Queue.Retention)
	if err != nil {
		log.Error().Err(err).Msg("Maintenance purge failed")
		return
	}
	pending, processed, err := queue.Stats(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Maintenance stats failed")
		return
	}
	log.Info().
		Int64("purged", removed).
		Int64("pending", pending).
		Int64("processed", processed).
		Msg("Maintenance completed")
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}

// startHealthServer serves liveness and Prometheus metrics
func startHealthServer(queue storage.Queue) {
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Health.Port
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := queue.Stats(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "queue unavailable: %v", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	log.Info().Str("port", port).Msg("Health check server starting")
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
