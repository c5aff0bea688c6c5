// Package acme handles automatic TLS certificate management via ACME.
package acme

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"

	"github.com/caddyserver/certmagic"
	certmagicsqlite "github.com/rsclarke/certmagic-sqlite"
	"go.uber.org/zap"
)

// Manager obtains and renews the gateway certificate. Challenges are solved
// over HTTP-01 on the plain listener or TLS-ALPN-01 on the HTTPS listener.
type Manager struct {
	Domain  string
	Email   string
	Staging bool
	Logger  *zap.Logger

	config *certmagic.Config
	issuer *certmagic.ACMEIssuer
}

// SetLogger configures the global certmagic loggers.
// Call this before starting any HTTP servers that handle ACME challenges.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	certmagic.Default.Logger = logger
	certmagic.DefaultACME.Logger = logger
}

// NewManager prepares certificate storage in db and the ACME issuer. The
// HTTP challenge handler is usable as soon as it returns, before Manage.
func NewManager(domain, email string, db *sql.DB, staging bool, logger *zap.Logger) (*Manager, error) {
	if domain == "" {
		return nil, errors.New("acme: domain is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	SetLogger(logger)

	hostname, _ := os.Hostname()
	storage, err := certmagicsqlite.NewWithDB(db, certmagicsqlite.WithOwnerID(hostname))
	if err != nil {
		return nil, fmt.Errorf("create certmagic storage: %w", err)
	}

	cfg := certmagic.NewDefault()
	cfg.Storage = storage
	cfg.Logger = logger

	caURL := certmagic.LetsEncryptProductionCA
	if staging {
		caURL = certmagic.LetsEncryptStagingCA
	}
	issuer := certmagic.NewACMEIssuer(cfg, certmagic.ACMEIssuer{
		CA:     caURL,
		Email:  email,
		Agreed: true,
		Logger: logger,
	})
	cfg.Issuers = []certmagic.Issuer{issuer}

	return &Manager{
		Domain:  domain,
		Email:   email,
		Staging: staging,
		Logger:  logger,
		config:  cfg,
		issuer:  issuer,
	}, nil
}

// Manage obtains the certificate for the domain, or loads it from storage,
// and keeps it renewed in the background.
// The plain HTTP listener should already be serving HTTPChallengeHandler.
func (m *Manager) Manage(ctx context.Context) error {
	if err := m.config.ManageSync(ctx, []string{m.Domain}); err != nil {
		return fmt.Errorf("manage certificate for %s: %w", m.Domain, err)
	}
	return nil
}

// HTTPChallengeHandler answers HTTP-01 challenges and passes every other
// request to next.
func (m *Manager) HTTPChallengeHandler(next http.Handler) http.Handler {
	return m.issuer.HTTPChallengeHandler(next)
}

// TLSConfig returns a TLS configuration that serves the managed certificate
// and answers TLS-ALPN challenges.
func (m *Manager) TLSConfig() *tls.Config {
	cfg := m.config.TLSConfig()
	for _, proto := range []string{"h2", "http/1.1"} {
		if !slices.Contains(cfg.NextProtos, proto) {
			cfg.NextProtos = append(cfg.NextProtos, proto)
		}
	}
	return cfg
}
