// Package capability implements the gated AI routes on top of the provider
// dispatch tables, the result cache and the tenant knowledge-base databases.
package capability

import (
	"database/sql"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/cache"
	"github.com/rsclarke/aiconnect/internal/config"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/provider"
	"github.com/rsclarke/aiconnect/internal/tenant"
)

// Tenants resolves the per-tenant knowledge-base database.
type Tenants interface {
	DB(code string) (*sql.DB, bool)
	Info(code string) (tenant.Info, bool)
}

// Service serves every capability route.
type Service struct {
	cfg       *config.Config
	providers *provider.Registry
	cache     *cache.Cache
	tenants   Tenants
	http      *http.Client
	logger    *zap.Logger

	now         func() time.Time
	pollBackOff func() backoff.BackOff
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Config     *config.Config
	Providers  *provider.Registry
	Cache      *cache.Cache
	Tenants    Tenants
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New creates a Service.
func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: d.Config.ProviderTimeout}
	}
	return &Service{
		cfg:       d.Config,
		providers: d.Providers,
		cache:     d.Cache,
		tenants:   d.Tenants,
		http:      d.HTTPClient,
		logger:    d.Logger.Named("capability"),
		now:       time.Now,
		pollBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// upstream converts a dispatch error into the failure envelope of a capability.
// Unsupported platforms are reported as such; anything else is a 502.
func upstream(err error, message, code string, req envelope.Request) error {
	if errors.Is(err, provider.ErrUnsupportedPlatform) {
		return envelope.Fail(http.StatusBadRequest, envelope.MsgPlatformUnsupported, envelope.CodePlatformUnsupported, req).WithCause(err)
	}
	return envelope.Fail(http.StatusBadGateway, message, code, req).WithCause(err)
}

func internalFault(err error, message string, req envelope.Request) error {
	return envelope.Fail(http.StatusInternalServerError, message, envelope.CodeInternalServerError, req).WithCause(err)
}

var fence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// stripFences removes a surrounding markdown code fence from model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fence.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
