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

	"github.com/andy6609/roomchat-server/internal/chat"
	"github.com/andy6609/roomchat-server/internal/chatlog"
	"github.com/andy6609/roomchat-server/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "roomchat-server",
		Short:         "Line-oriented TCP chat server with rooms and private messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, usedPath, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel, cfg.LogFormat, cmd.OutOrStdout())
			if usedPath != "" {
				logger.Info("config loaded", "path", usedPath)
			}
			return run(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a yaml config file")
	config.RegisterFlags(cmd.Flags())

	cmd.AddCommand(newConfigCmd())
	return cmd
}

func newConfigCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the default configuration as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path, force); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config written")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

// run wires the journal, registry, chat server and metrics endpoint, and
// blocks until ctx is cancelled or a server fails.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	sink, err := chatlog.Open(chatlog.Options{
		Backend:    cfg.Journal.Backend,
		Dir:        cfg.Journal.Dir,
		SQLitePath: cfg.Journal.SQLitePath,
		BadgerPath: cfg.Journal.BadgerPath,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	journal := chatlog.NewJournal(sink, cfg.Journal.Buffer, logger.With("component", "journal"))
	defer func() {
		if err := journal.Close(); err != nil {
			logger.Warn("failed to close journal", "error", err)
		}
	}()

	reg := chat.NewRegistry(
		chat.WithLobby(cfg.Lobby),
		chat.WithRecorder(journal),
		chat.WithLogger(logger),
	)

	opts := chat.SessionOptions{
		Logger:            logger,
		OutboundBuffer:    cfg.OutboundBuffer,
		MaxNicknameLength: cfg.MaxNicknameLength,
		MaxRoomNameLength: cfg.MaxRoomNameLength,
		MaxMessageLength:  cfg.MaxMessageLength,
		HistoryLimit:      cfg.HistoryLimit,
	}
	if history, ok := journal.History(); ok {
		opts.History = history
	}

	srv := chat.NewServer(cfg.Addr, reg, opts)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start chat server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	var metrics *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metrics = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics server started", "addr", cfg.MetricsAddr)
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		srv.Stop()
		if metrics != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metrics.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics shutdown failed", "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}
