// Command atlaschat-server runs the HTTP/WebSocket transport (internal/server)
// in front of one App, the way the teacher's cmd/opencode-server/main.go runs
// its own HTTP transport in front of one provider/tool/storage set.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlaschat/core/internal/app"
	"github.com/atlaschat/core/internal/config"
	"github.com/atlaschat/core/internal/logging"
	"github.com/atlaschat/core/internal/server"
)

var (
	port      = flag.Int("port", 0, "listen port (overrides config)")
	directory = flag.String("directory", "", "project directory to load .atlaschat/ config from")
	version   = flag.Bool("version", false, "print version and exit")
)

const (
	versionString = "0.1.0"
	buildTime     = "dev"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("atlaschat-server %s (%s)\n", versionString, buildTime)
		os.Exit(0)
	}

	workDir := *directory
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "atlaschat-server:", err)
			os.Exit(1)
		}
		workDir = wd
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "atlaschat-server: load config:", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	})
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build app")
	}
	defer a.Close()

	srvConfig := server.DefaultConfig()
	srvConfig.Host = cfg.Server.Host
	srvConfig.Port = cfg.Server.Port

	srv := server.New(srvConfig, a)

	go func() {
		logging.Info().Str("host", srvConfig.Host).Int("port", srvConfig.Port).Msg("atlaschat-server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown error")
	}
}
