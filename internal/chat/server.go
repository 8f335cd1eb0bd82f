package chat

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
)

// Server accepts TCP connections and runs one Session per connection.
type Server struct {
	addr     string
	logger   *slog.Logger
	reg      *Registry
	opts     SessionOptions
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(addr string, reg *Registry, opts SessionOptions) *Server {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		logger: opts.Logger,
		reg:    reg,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.logger.Info("server started", "addr", ln.Addr().String(), "lobby", s.reg.Lobby())
	return nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every live connection, then waits until all
// sessions have finished their cleanup.
func (s *Server) Stop() {
	s.logger.Info("shutting down")

	if s.listener != nil {
		s.listener.Close()
	}
	s.cancel()
	s.wg.Wait()

	s.logger.Info("shutdown complete")
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error("accept failed", "error", err)
			}
			return
		}

		s.logger.Info("client connected", "addr", conn.RemoteAddr().String())

		session := NewSession(conn, s.reg, s.opts)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			session.Serve(s.ctx)
		}()
	}
}
