package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RoseWrightdev/chatroomd/internal/v1/config"
	"github.com/RoseWrightdev/chatroomd/internal/v1/health"
	"github.com/RoseWrightdev/chatroomd/internal/v1/listener"
	"github.com/RoseWrightdev/chatroomd/internal/v1/logging"
	"github.com/RoseWrightdev/chatroomd/internal/v1/pool"
	"github.com/RoseWrightdev/chatroomd/internal/v1/rooms"
	"github.com/RoseWrightdev/chatroomd/internal/v1/users"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, relying on environment variables")
	}

	cfg, err := config.Load(config.DefaultConfig)
	if err != nil {
		slog.Error("Configuration failed", "error", err)
		return 1
	}

	if err := logging.Initialize(cfg.GoEnv == "development"); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		return 1
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		slog.Error("Failed to load TLS key pair", "cert", cfg.CertFile, "key", cfg.KeyFile, "error", err)
		return 1
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	// SIGPIPE would otherwise kill the process when a peer vanishes
	// mid-write.
	signal.Ignore(syscall.SIGPIPE)

	// --- Directories ---
	userDir := users.NewDirectory("users.txt", cfg.MaxClients)
	if err := userDir.Load(); err != nil {
		slog.Error("Failed to load user directory", "error", err)
		return 1
	}

	roomDir := rooms.NewDirectory("rooms", cfg.MaxRooms)
	if err := roomDir.Init(); err != nil {
		slog.Error("Failed to initialize room directory", "error", err)
		return 1
	}

	// One worker per admitted client plus one slot of slack for a connection
	// that is being turned away.
	workers := pool.New(cfg.MaxClients + 1)

	// --- Shutdown plumbing ---
	// SIGINT/SIGTERM cancel the context; the accept loop and every session
	// observe it within their read timeouts.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		slog.Info("Shutting down", "signal", sig.String())
		cancel()
	}()

	srv := listener.New(cfg, userDir, roomDir, workers, tlsConfig)

	// --- Metrics / health side server (optional) ---
	var side *http.Server
	if cfg.MetricsAddr != "" {
		if cfg.GoEnv != "development" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := gin.Default()
		router.Use(gin.Recovery())

		router.GET("/metrics", gin.WrapH(promhttp.Handler()))

		healthHandler := health.NewHandler(srv, workers)
		router.GET("/health/live", healthHandler.Liveness)
		router.GET("/health/ready", healthHandler.Readiness)

		side = &http.Server{Addr: cfg.MetricsAddr, Handler: router}
		go func() {
			slog.Info("Metrics server starting", "addr", cfg.MetricsAddr)
			if err := side.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// --- Serve ---
	runErr := srv.Run(ctx, cancel)

	// Drain in-flight sessions, then tear the shared state down.
	workers.Destroy(pool.Wait)

	if side != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := side.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server forced to shut down", "error", err)
		}
		shutdownCancel()
	}

	if err := roomDir.Teardown(); err != nil {
		slog.Error("Failed to remove room directory", "error", err)
	}

	if runErr != nil {
		slog.Error("Listener failed", "error", runErr)
		return 1
	}
	slog.Info("Server exiting")
	return 0
}
