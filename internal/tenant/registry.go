package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rsclarke/aiconnect/internal/db"
	"github.com/rsclarke/aiconnect/internal/logging"
)

// Lister returns the tenants whose databases should be opened.
type Lister interface {
	ListTenants(ctx context.Context) ([]Info, error)
}

// StaticLister serves a fixed list of tenant codes.
type StaticLister []string

func (s StaticLister) ListTenants(context.Context) ([]Info, error) {
	out := make([]Info, 0, len(s))
	for _, code := range s {
		out = append(out, Info{Code: code, Name: code})
	}
	return out, nil
}

type registryEntry struct {
	db   *sql.DB
	info Info
}

// Registry holds one knowledge-base database per tenant. It is built
// once by OpenRegistry and read-only afterwards.
type Registry struct {
	entries map[string]registryEntry
}

// OpenRegistry opens <dir>/<prefix>_<code>.db for every listed tenant in
// parallel. Tenants whose database fails to open are logged and skipped.
func OpenRegistry(ctx context.Context, lister Lister, dir, prefix string, logger *zap.Logger) (*Registry, error) {
	tenants, err := lister.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create tenant db dir: %w", err)
	}

	var mu sync.Mutex
	entries := make(map[string]registryEntry, len(tenants))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, t := range tenants {
		code := strings.ToLower(strings.TrimSpace(t.Code))
		if code == "" || strings.ContainsAny(code, `/\.`) {
			logger.Warn("skipping tenant with invalid code", zap.String("code", t.Code))
			continue
		}
		g.Go(func() error {
			path := filepath.Join(dir, fmt.Sprintf("%s_%s.db", prefix, code))
			database, err := db.OpenTenant(path)
			if err != nil {
				logger.Error("tenant database connection failed", logging.Tenant(code), zap.Error(err))
				return nil
			}
			mu.Lock()
			entries[code] = registryEntry{db: database, info: t}
			mu.Unlock()
			logger.Debug("connected tenant database", logging.Tenant(code))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("tenant databases connected", zap.Int("count", len(entries)), zap.Int("listed", len(tenants)))
	return &Registry{entries: entries}, nil
}

// DB returns the database for code, matched case-insensitively.
func (r *Registry) DB(code string) (*sql.DB, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.entries[strings.ToLower(code)]
	return e.db, ok
}

// Info returns the backend record for code.
func (r *Registry) Info(code string) (Info, bool) {
	if r == nil {
		return Info{}, false
	}
	e, ok := r.entries[strings.ToLower(code)]
	return e.info, ok
}

// Len returns the number of open tenant databases.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Close closes every tenant database.
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, e := range r.entries {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
