package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/quoteboard/internal/api"
	"github.com/wonny/quoteboard/internal/api/handlers"
	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/internal/quotes/universe"
	"github.com/wonny/quoteboard/internal/realtime/feed"
	"github.com/wonny/quoteboard/internal/realtime/hub"
	"github.com/wonny/quoteboard/internal/realtime/publish"
	"github.com/wonny/quoteboard/internal/scheduler"
	"github.com/wonny/quoteboard/internal/scheduler/jobs"
	"github.com/wonny/quoteboard/pkg/logger"
	"github.com/wonny/quoteboard/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quote engine, feed and API server",
	Long: `Starts the quote board:
- quote source (simulator or replay) feeding the engine
- websocket hub and optional redis/kafka publishers
- feed watchdog and status report jobs
- REST API

Endpoints:
  GET  /health
  GET  /api/quotes, /api/quotes/{symbol}
  POST /api/quotes
  GET  /api/rankings, /api/rankings/gainers, /api/rankings/losers
  GET  /api/sort-mode, PUT /api/sort-mode
  GET  /api/status, /api/feed/stats, /api/jobs
  GET  /ws

Example:
  go run ./cmd/quoteboard serve
  go run ./cmd/quoteboard serve --port 9000
  go run ./cmd/quoteboard serve --replay testdata/session.yaml`,
	RunE: runServe,
}

var (
	servePort   string
	serveReplay string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (overrides PORT)")
	serveCmd.Flags().StringVar(&serveReplay, "replay", "", "replay quotes from a YAML file instead of simulating")
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort != "" {
		cfg.Port = servePort
	}
	if serveReplay != "" {
		cfg.Feed.Source = "replay"
		cfg.Feed.ReplayFile = serveReplay
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Universe and engine
	u, err := universe.Load(cfg.Feed.UniverseFile)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	engine := quotes.NewEngine(quotes.Options{
		HistoryLimit: cfg.Quotes.HistoryLimit,
		RankingSize:  cfg.Quotes.RankingSize,
	}, log)

	src, err := buildSource(cfg, u, log)
	if err != nil {
		return fmt.Errorf("build source: %w", err)
	}

	// 4. Publishers
	ws := hub.NewHub(engine, log)
	publishers := []feed.Publisher{ws}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rc, err := redis.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer rc.Close()

	var limiter api.Limiter
	if rc.Enabled() {
		cache := redis.NewCache(rc, cfg.Redis.Prefix)
		publishers = append(publishers, publish.NewRedisPublisher(rc, cache, redis.QuotesChannel(cfg.Redis.Prefix), cfg.Redis.TTL, log))
		limiter = redis.NewRateLimiter(rc, cfg.Redis.Prefix, cfg.Redis.IngestLimit, cfg.Redis.IngestWindow)
		log.Info("Redis publisher enabled")
	}

	if cfg.Kafka.Enabled {
		kp := publish.NewKafkaPublisher(publish.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), log)
		defer kp.Close()
		publishers = append(publishers, kp)
		log.WithField("topic", cfg.Kafka.Topic).Info("Kafka publisher enabled")
	}

	// 5. Feed manager
	manager := feed.NewManager(engine, src, feed.DefaultConfig(), log, publishers...)

	// 6. Scheduler
	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewFeedWatchdogJob(engine, manager, cfg.Feed.StaleAfter, log)); err != nil {
		return err
	}
	if err := sched.AddJob(jobs.NewStatusReportJob(engine, log)); err != nil {
		return err
	}

	// 7. Router and server
	router := api.NewRouter(api.Handlers{
		Quotes:        handlers.NewQuoteHandler(engine, manager, ws, u, log),
		Status:        handlers.NewStatusHandler(engine, manager, sched, log),
		WebSocket:     ws,
		IngestLimiter: limiter,
	}, log)
	server := api.New(cfg, log, router)

	// 8. Start everything
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start feed: %w", err)
	}
	sched.Start()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.WithFields(map[string]interface{}{
		"port":    cfg.Port,
		"source":  src.Name(),
		"symbols": u.Symbols(),
	}).Info("Quoteboard started")
	fmt.Printf("\n✅ Quoteboard running on http://localhost:%s (source: %s)\n", cfg.Port, src.Name())
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-serverErr:
		if runErr != nil {
			log.WithError(runErr).Error("API server failed")
		}
	}

	log.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	manager.Stop()
	sched.Stop()
	ws.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Quoteboard stopped")
	return runErr
}
