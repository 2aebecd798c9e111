package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"robotbridge/internal/config"
	"robotbridge/internal/device/sim"
	"robotbridge/internal/executor"
	"robotbridge/internal/journal"
	"robotbridge/internal/logsink"
	"robotbridge/internal/microservices/http-api/handler"
	"robotbridge/internal/microservices/http-api/middleware"
	"robotbridge/internal/microservices/tcp"
	"robotbridge/internal/queue"
)

func main() {
	if err := run(); err != nil {
		slog.Error("robot_server_failed", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Every record also goes to the attached log client.
	logs := logsink.NewSwitch()
	logger := slog.New(logsink.NewHandler(newConsoleHandler(cfg), logs, cfg.SlogLevel()))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, startWriter, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	// the batch writer outlives the signal context; j.Close stops it after the
	// task handlers have recorded their last commands
	defer j.Close()
	if startWriter != nil {
		go startWriter(context.Background())
	}

	robot := sim.New(cfg.SimMotionLatency, logger)
	q := queue.New()
	consumer := executor.NewConsumer(q, robot, robot, logger, executor.Options{
		PollInterval: cfg.QueuePollInterval,
		PulseWidth:   cfg.IOPulseWidth,
	})

	server := tcp.NewServer(tcp.Options{
		Host:            cfg.BindHost,
		TaskPort:        cfg.TaskPort,
		LogPort:         cfg.LogPort,
		AckTimeout:      cfg.AckTimeout,
		CancelOnTimeout: cfg.CancelOnTimeout(),
		GateRetryDelay:  cfg.GateRetryDelay,
		IdleTimeout:     cfg.IdleTimeout,
		MaxFrameSize:    cfg.MaxFrameSize,
		RateLimit:       cfg.RateLimit,
		RateBurst:       cfg.RateBurst,
		ReplyErrors:     cfg.ReplyErrors,
	}, q, logs, j, logger)

	// binding failure is fatal
	if err := server.Listen(); err != nil {
		return err
	}

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumer.Run(ctx)
	}()

	if err := server.Serve(); err != nil {
		return err
	}

	var status *http.Server
	if cfg.StatusPort != 0 {
		status = startStatusServer(cfg, server, q, consumer, j, logger)
	}

	logger.Info("robot_server_ready",
		"env", cfg.GoEnv,
		"task_port", cfg.TaskPort,
		"log_port", cfg.LogPort,
		"status_port", cfg.StatusPort,
		"journal", cfg.JournalBackend(),
		"ack_timeout_policy", cfg.AckTimeoutPolicy,
	)

	<-ctx.Done()
	logger.Info("received_shutdown_signal")

	if status != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := status.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status_api_shutdown_failed", "error", err)
		}
		cancel()
	}
	if err := server.Stop(cfg.ShutdownTimeout); err != nil {
		logger.Warn("tcp_server_stop_incomplete", "error", err)
	}
	q.Close()

	select {
	case <-consumerDone:
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("consumer_still_running")
	}
	logger.Info("server_stopped_gracefully")
	return nil
}

func newConsoleHandler(cfg *config.Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

// openJournal picks the journal backend. The returned writer, when not nil,
// must run for the lifetime of the process.
func openJournal(cfg *config.Config, logger *slog.Logger) (journal.Journal, func(context.Context), error) {
	switch cfg.JournalBackend() {
	case config.JournalRedis:
		r, err := journal.NewRedis(cfg.RedisURL, cfg.RedisPassword, cfg.JournalSize)
		if err != nil {
			return nil, nil, err
		}
		return r, nil, nil
	case config.JournalPostgres:
		p, err := journal.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return p, nil, nil
	case config.JournalHybrid:
		r, err := journal.NewRedis(cfg.RedisURL, cfg.RedisPassword, cfg.JournalSize)
		if err != nil {
			return nil, nil, err
		}
		p, err := journal.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			r.Close()
			return nil, nil, err
		}
		h := journal.NewHybrid(r, p, cfg.JournalFlushInterval, logger)
		return h, h.StartBatchWriter, nil
	default:
		return journal.NewMemory(cfg.JournalSize), nil, nil
	}
}

func startStatusServer(cfg *config.Config, server *tcp.Server, q *queue.Queue, consumer *executor.Consumer, j journal.Journal, logger *slog.Logger) *http.Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(
		handler.NewStatusHandler(server.Manager, q, consumer, j),
		middleware.RequestLogger(logger),
		middleware.RequireGET(),
	)
	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindHost, strconv.Itoa(cfg.StatusPort)),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status_api_listening", "component", "http", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status_api_failed", "component", "http", "error", err)
		}
	}()
	return srv
}
