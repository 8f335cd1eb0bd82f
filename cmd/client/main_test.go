package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/andy6609/roomchat-server/internal/chat"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*chat.Registry, string) {
	t.Helper()
	reg := chat.NewRegistry()
	srv := chat.NewServer("127.0.0.1:0", reg, chat.SessionOptions{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return reg, srv.Addr().String()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_SendsInputAndExitsOnEOF(t *testing.T) {
	req := require.New(t)
	reg, addr := startServer(t)

	var out bytes.Buffer
	in := strings.NewReader("NICK alice\n/users\n")
	req.NoError(run(context.Background(), addr, in, &out, quietLogger()))

	got := out.String()
	req.Contains(got, "SERVER: Welcome!")
	req.Contains(got, "SERVER: Your nickname is alice.")
	req.Contains(got, "SERVER: Users in #lobby: alice")
	req.Contains(got, "SERVER: Closing connection...")

	req.Eventually(func() bool { return reg.Online() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRun_QuitCommandStopsReadingInput(t *testing.T) {
	req := require.New(t)
	_, addr := startServer(t)

	var out bytes.Buffer
	in := strings.NewReader("NICK bob\n/QUIT\nhello after quit\n")
	req.NoError(run(context.Background(), addr, in, &out, quietLogger()))

	req.Contains(out.String(), "SERVER: Closing connection...")
}

func TestRun_ReturnsWhenServerStops(t *testing.T) {
	reg := chat.NewRegistry()
	srv := chat.NewServer("127.0.0.1:0", reg, chat.SessionOptions{Logger: quietLogger()})
	require.NoError(t, srv.Start())

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	done := make(chan error, 1)
	go func() {
		done <- run(context.Background(), srv.Addr().String(), pr, io.Discard, quietLogger())
	}()

	_, err := io.WriteString(pw, "NICK carol\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return reg.Online() == 1 }, time.Second, 10*time.Millisecond)

	srv.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the server going away")
	}
}

func TestRun_ConnectFailure(t *testing.T) {
	err := run(context.Background(), "127.0.0.1:1", strings.NewReader(""), io.Discard, quietLogger())
	require.ErrorContains(t, err, "connect")
}

func TestIsExit(t *testing.T) {
	require.True(t, isExit("/exit"))
	require.True(t, isExit(" /Quit "))
	require.False(t, isExit("/exits"))
	require.False(t, isExit("exit"))
}
