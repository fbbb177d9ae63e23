package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/relaybot/internal/api"
	"github.com/kalambet/relaybot/internal/config"
	"github.com/kalambet/relaybot/internal/relay"
	"github.com/kalambet/relaybot/internal/storage"
	"github.com/kalambet/relaybot/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(cmd.Context(), withMCP)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show relay server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
}

func runServer(ctx context.Context, withMCP bool) error {
	fmt.Fprintf(os.Stderr, "relaybot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logCloser := newLogger(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Each run starts from an empty reading table.
	purged, err := store.Purge(ctx)
	if err != nil {
		return fmt.Errorf("clearing previous run: %w", err)
	}
	logger.Info("database cleared, new run started", "purged", purged, "data_dir", cfg.Storage.DataDir)

	var fwd *relay.Forwarder
	var forwarder telemetry.Forwarder
	if cfg.Forward.Enabled() {
		timeout, err := cfg.Forward.TimeoutDuration()
		if err != nil {
			logger.Warn("invalid forward timeout, using default 2s", "value", cfg.Forward.Timeout, "error", err)
			timeout = 2 * time.Second
		}
		fwd, err = relay.New(relay.Options{
			PeerURL:     cfg.Forward.PeerURL,
			Token:       cfg.Forward.PeerToken,
			Timeout:     timeout,
			MaxInFlight: cfg.Forward.MaxInFlight,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("configuring forwarder: %w", err)
		}
		forwarder = fwd
		logger.Info("forwarding readings", "peer", fwd.Endpoint())
	} else {
		logger.Info("forwarding disabled")
	}

	svc := telemetry.NewService(store, forwarder, logger)
	srv := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewHandler(api.Deps{
			Telemetry: svc,
			Health:    store,
			Token:     cfg.Server.IngestToken,
			Logger:    logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("relaybot listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(api.MCPDeps{
			Telemetry: svc,
			Version:   version,
		}))
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp stdio server: %w", err)
			}
			return nil
		})
		logger.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		if fwd != nil {
			if cerr := fwd.Close(shutdownCtx); cerr != nil {
				logger.Warn("forwards still in flight at shutdown", "error", cerr)
			}
			st := fwd.Stats()
			logger.Info("forward stats", "sent", st.Sent, "failed", st.Failed, "dropped", st.Dropped)
		}
		return err
	})

	return g.Wait()
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	if err := client.health(ctx); err != nil {
		printStatus("Server", "%s (%v)", colorize(colorRed, "unavailable"), err)
	} else {
		printStatus("Server", "%s at %s", colorize(colorGreen, "running"), client.baseURL)
	}

	printStatus("Listen", "%s", cfg.Server.Addr())
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	if cfg.Forward.Enabled() {
		printStatus("Forward", "%s (timeout %s, max in flight %d)", cfg.Forward.PeerURL, cfg.Forward.Timeout, cfg.Forward.MaxInFlight)
	} else {
		printStatus("Forward", "disabled")
	}
	printStatus("Ingest auth", "%s", enabledLabel(cfg.Server.IngestToken != ""))
	printStatus("Log level", "%s", cfg.Log.Level)
	printStatus("Config file", "%s", config.ConfigFilePath())
	return nil
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
