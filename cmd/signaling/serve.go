package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	cli "github.com/mossy-p/webrtc-call/cmd"
	"github.com/mossy-p/webrtc-call/config"
	"github.com/mossy-p/webrtc-call/internal/handlers"
	"github.com/mossy-p/webrtc-call/internal/redis"
	"github.com/mossy-p/webrtc-call/internal/relay"
)

func commandServe() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve [...args]",
		Short: "Start the relay and listen for requests",
		Run: func(cmd *cobra.Command, args []string) {
			if err := serve(cmd, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("listen", "", "TCP listen address (default \":$PORT\")")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "Allowed request origins (default $ALLOWED_ORIGINS)")
	serveCmd.Flags().String("redis-addr", "", "Redis address host:port (default $REDIS_HOST:$REDIS_PORT)")
	serveCmd.Flags().Int("send-queue-size", 0, "Outbound message queue size per participant (default $SEND_QUEUE_SIZE)")
	serveCmd.Flags().Bool("log-timestamp", true, "Prefix each log line with timestamp")
	serveCmd.Flags().String("log-level", "", "Log level (one of panic, fatal, error, warn, info or debug)")
	serveCmd.Flags().Bool("with-metrics", true, "Expose prometheus metrics on /metrics")
	serveCmd.Flags().Bool("with-deadlock-detector", false, "Enable deadlock detection")

	return serveCmd
}

func serve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	logTimestamp, _ := cmd.Flags().GetBool("log-timestamp")
	logger, err := cli.NewLogger(!logTimestamp, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Infoln("serve start")

	cli.ConfigureDeadlockDetector(cfg.DeadlockDetection, logger)

	store, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.WithField("addr", cfg.Redis.Host+":"+cfg.Redis.Port).Infoln("redis connection established")

	var metrics *relay.Metrics
	withMetrics, _ := cmd.Flags().GetBool("with-metrics")
	reg := prometheus.NewPedanticRegistry()
	if withMetrics {
		reg.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
		metrics = relay.NewMetrics(reg)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestLogger(logger))

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if withMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	registry := relay.NewRegistry(logger, metrics)
	handlers.New(store, registry, logger, cfg.JWTSecret, cfg.SendQueueSize).Register(router)

	srv := &http.Server{
		Addr:    cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("listenAddr", srv.Addr).Infoln("starting http listener")
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err = <-errCh:
	case reason := <-signalCh:
		logger.WithField("signal", reason).Warnln("received signal")
	}

	logger.Infoln("clean server shutdown start")
	shutDownCtx, shutDownCtxCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutDownCtxCancel()
	if shutdownErr := srv.Shutdown(shutDownCtx); shutdownErr != nil {
		logger.WithError(shutdownErr).Warnln("clean server shutdown failed")
	}

	return err
}

// applyFlags lets explicitly set flags override the environment. The
// resulting Port is a full listen address.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	cfg.Port = ":" + cfg.Port
	if listen, _ := flags.GetString("listen"); listen != "" {
		cfg.Port = listen
	}
	if flags.Changed("allowed-origins") {
		cfg.AllowedOrigins, _ = flags.GetStringSlice("allowed-origins")
	}
	if addr, _ := flags.GetString("redis-addr"); addr != "" {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("invalid redis-addr: %w", err)
		}
		cfg.Redis.Host, cfg.Redis.Port = host, port
	}
	if size, _ := flags.GetInt("send-queue-size"); size > 0 {
		cfg.SendQueueSize = size
	}
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if flags.Changed("with-deadlock-detector") {
		cfg.DeadlockDetection, _ = flags.GetBool("with-deadlock-detector")
	}
	return nil
}
