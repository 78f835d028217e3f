package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/termchat/internal/config"
	"github.com/Tyrowin/termchat/internal/logger"
	"github.com/Tyrowin/termchat/internal/server"
	"github.com/Tyrowin/termchat/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chat server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.NewConfigFromEnv()

	fs := flag.NewFlagSet("server", flag.ExitOnError)
	fs.StringVar(&cfg.Address, "addr", cfg.Address, "TCP address for chat clients")
	fs.StringVar(&cfg.HTTPAddress, "http", cfg.HTTPAddress, "HTTP address for the health check and WebSocket transport (empty disables)")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "maximum concurrent connections")
	fs.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "time a client has to log in")
	fs.BoolVar(&cfg.StrictUsernames, "strict-usernames", cfg.StrictUsernames, "allow only letters and spaces in usernames")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "sqlite file recording logins (empty disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "log file (default stderr)")
	_ = fs.Parse(os.Args[1:])

	cfg = config.Sanitize(cfg)

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath, os.Stderr); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Global().Close()

	logger.Info("Starting chat server...")

	var opts []server.Option
	if cfg.DatabasePath != "" {
		db, err := store.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, server.WithLoginRecorder(db), server.WithUserDirectory(db))
		logger.Info("Recording logins in %s", cfg.DatabasePath)
	}

	srv := server.NewServer(cfg, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	var httpSrv *http.Server
	if cfg.HTTPAddress != "" {
		httpSrv = server.CreateHTTPServer(cfg.HTTPAddress, server.NewHTTPHandler(srv))
		go func() {
			logger.Info("HTTP server listening on %s", cfg.HTTPAddress)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		if !errors.Is(err, server.ErrServerClosed) {
			runErr = err
		}
	}

	if httpSrv != nil {
		_ = server.ShutdownHTTPServer(httpSrv, shutdownTimeout)
	}
	if err := srv.Shutdown(shutdownTimeout); err != nil {
		logger.Warn("Shutdown did not complete: %v", err)
	}
	return runErr
}
