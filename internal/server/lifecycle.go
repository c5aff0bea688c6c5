package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rsclarke/aiconnect/internal/logging"
)

// ServerConfig describes one listener.
type ServerConfig struct {
	Name              string
	Addr              string
	Handler           http.Handler
	TLSConfig         *tls.Config
	Logger            *zap.Logger
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
}

// DefaultServerConfig returns a listener config. The write timeout leaves
// room for a provider call bounded by providerTimeout.
func DefaultServerConfig(name, addr string, handler http.Handler, providerTimeout time.Duration, logger *zap.Logger) ServerConfig {
	return ServerConfig{
		Name:              name,
		Addr:              addr,
		Handler:           handler,
		Logger:            logger,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      providerTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

// ManagedServer is an http.Server that binds synchronously and reports
// serve failures on a channel.
type ManagedServer struct {
	server   *http.Server
	logger   *zap.Logger
	name     string
	listener net.Listener
	errCh    chan error
}

// NewManagedServer wraps cfg in a ManagedServer. Nothing is bound until Start.
func NewManagedServer(cfg ServerConfig) *ManagedServer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	errLog, _ := zap.NewStdLogAt(cfg.Logger.Named(cfg.Name), zapcore.ErrorLevel)

	return &ManagedServer{
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           cfg.Handler,
			TLSConfig:         cfg.TLSConfig,
			ErrorLog:          errLog,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		logger: cfg.Logger,
		name:   cfg.Name,
		errCh:  make(chan error, 1),
	}
}

// Start binds the listener and serves in the background. A bind failure is
// returned directly.
func (m *ManagedServer) Start() error {
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return fmt.Errorf("%s listen on %s: %w", m.name, m.server.Addr, err)
	}
	m.listener = ln

	mode := "plain"
	if m.server.TLSConfig != nil {
		mode = "tls"
	}
	m.logger.Info("listening", logging.Component(m.name), logging.Addr(ln.Addr().String()), logging.TLSMode(mode))

	go func() {
		var err error
		if m.server.TLSConfig != nil {
			err = m.server.ServeTLS(ln, "", "")
		} else {
			err = m.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.errCh <- fmt.Errorf("%s: %w", m.name, err)
		}
		close(m.errCh)
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (m *ManagedServer) Addr() string {
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return m.server.Addr
}

// Err yields a serve failure and is closed once the server stops.
func (m *ManagedServer) Err() <-chan error {
	return m.errCh
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (m *ManagedServer) Shutdown(ctx context.Context) {
	if m.listener == nil {
		return
	}
	if err := m.server.Shutdown(ctx); err != nil {
		m.logger.Warn("shutdown error", logging.Component(m.name), zap.Error(err))
	}
}
