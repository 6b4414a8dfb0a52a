// ABOUTME: Main entry point for the PHP integrator socket server
// ABOUTME: Loads configuration, registers commands and starts the socket, WebSocket, HTTP and management listeners

package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/harper/php-integrator/internal/command"
	"github.com/harper/php-integrator/internal/command/builtin"
	"github.com/harper/php-integrator/internal/config"
	"github.com/harper/php-integrator/internal/db"
	rpchttp "github.com/harper/php-integrator/internal/http"
	"github.com/harper/php-integrator/internal/logger"
	"github.com/harper/php-integrator/internal/management"
	"github.com/harper/php-integrator/internal/metrics"
	"github.com/harper/php-integrator/internal/server"
	"github.com/harper/php-integrator/internal/session"
	"github.com/harper/php-integrator/internal/websocket"
	"github.com/harper/php-integrator/internal/xdg"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default "+xdg.DefaultConfigFile()+" when present)")
	envFile := flag.String("env", ".env", "dotenv file with PHP_INTEGRATOR_* overrides")
	verbose := flag.Bool("v", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("php-integrator %s (built %s)\n", version, buildTime)
		return
	}

	if err := run(*configPath, *envFile, *verbose); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func loadConfig(path, envFile string) (*config.Config, error) {
	if err := godotenv.Load(envFile); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	if path == "" {
		if _, err := os.Stat(xdg.DefaultConfigFile()); err == nil {
			path = xdg.DefaultConfigFile()
		}
	}
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func buildRegistry(cfg *config.Config) (*command.MapRegistry, error) {
	reg := command.NewMapRegistry()
	builtin.Version = version
	if err := builtin.Register(reg); err != nil {
		return nil, fmt.Errorf("failed to register built-in commands: %w", err)
	}
	for alias, target := range cfg.Dispatch.Aliases {
		if err := reg.Alias(alias, target); err != nil {
			return nil, err
		}
	}
	reg.Seal()
	return reg, nil
}

func openTrafficLog(path string) (*db.DB, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return db.Open(path)
}

func run(configPath, envFile string, verbose bool) error {
	cfg, err := loadConfig(configPath, envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetVerbose(verbose || cfg.Logging.Verbose)

	reg, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	database, err := openTrafficLog(cfg.Database.Path)
	if err != nil {
		return err
	}
	var traffic session.TrafficLog
	if database != nil {
		defer database.Close()
		traffic = database
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(promReg)
	metrics.SetBuildInfo(version)

	mgr := session.NewManager(session.ManagerConfig{
		MaxContentLength:      cfg.Limits.MaxContentLength,
		MaxConcurrentCommands: int64(cfg.Limits.MaxConcurrentCommands),
		MaxConnections:        cfg.Limits.MaxConnections,
	}, command.NewDispatcher(reg), traffic)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := server.New(cfg.Server.Network(), cfg.Server.ListenAddress(), mgr)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	var httpServers []*http.Server
	serve := func(name, host string, port int, handler http.Handler) {
		if port == 0 {
			return
		}
		hs := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		httpServers = append(httpServers, hs)
		go func() {
			logger.Info("%s listening on %s", name, hs.Addr)
			if err := hs.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				logger.Error("%s server error: %v", name, err)
				cancel()
			}
		}()
	}

	serve("WebSocket", cfg.Server.WebSocketHost, cfg.Server.WebSocketPort, websocket.NewServer(ctx, mgr))
	serve("HTTP", cfg.Server.HTTPHost, cfg.Server.HTTPPort, rpchttp.NewServer(mgr, cfg.Limits.MaxContentLength))
	serve("Management API", cfg.Server.ManagementHost, cfg.Server.ManagementPort,
		management.NewServer(cfg, mgr, reg, database, promReg, version))

	logger.Info("php-integrator %s ready (%d command slots, commands: %v)",
		version, cfg.Limits.MaxConcurrentCommands, reg.Methods())

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, hs := range httpServers {
		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown: %v", err)
		}
	}

	if err := srv.Stop(); err != nil {
		logger.Warn("listener shutdown: %v", err)
	}
	mgr.CloseAll()
	return nil
}
