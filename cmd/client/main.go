package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// closeWait bounds how long the client waits for the server to hang up
// after /exit.
const closeWait = 2 * time.Second

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
	var (
		addr     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:           "roomchat-client",
		Short:         "Terminal client for roomchat-server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: parseLevel(logLevel),
			}))
			return run(cmd.Context(), addr, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "localhost:5000", "server address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

// run connects to addr, prints every server line to out and sends every line
// of in. /exit or /quit, or the end of in, sends /exit and waits for the
// server to close the connection.
func run(ctx context.Context, addr string, in io.Reader, out io.Writer, logger *slog.Logger) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	logger.Info("connected", "addr", addr)

	received := make(chan error, 1)
	go func() {
		_, err := io.Copy(out, conn)
		received <- err
	}()
	defer func() {
		_ = conn.Close()
		<-received
		logger.Info("disconnected")
	}()

	stopInput := make(chan struct{})
	defer close(stopInput)
	lines := readInput(in, stopInput)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-received:
			// Put the result back for the deferred cleanup.
			received <- err
			if err != nil && !errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("read from server: %w", err)
			}
			logger.Info("server closed the connection")
			return nil
		case line, ok := <-lines:
			if !ok || isExit(line) {
				if _, err := io.WriteString(conn, "/exit\n"); err != nil {
					return fmt.Errorf("send: %w", err)
				}
				waitClosed(received, logger)
				return nil
			}
			if _, err := io.WriteString(conn, line+"\n"); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}

// readInput feeds the lines of in to the returned channel, which is closed
// at the end of in.
func readInput(in io.Reader, stop <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop:
				return
			}
		}
	}()
	return lines
}

func waitClosed(received chan error, logger *slog.Logger) {
	select {
	case err := <-received:
		received <- err
	case <-time.After(closeWait):
		logger.Warn("server did not close the connection after /exit")
	}
}

func isExit(line string) bool {
	cmd := strings.TrimSpace(line)
	return strings.EqualFold(cmd, "/exit") || strings.EqualFold(cmd, "/quit")
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
