// Package logging provides structured logging configuration.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration options.
type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|console
}

// New creates a new configured zap logger.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(strings.ToLower(cfg.Level)); err != nil {
			return nil, err
		}
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "json"
	}

	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.LevelKey = "level"
	zcfg.EncoderConfig.MessageKey = "msg"
	zcfg.EncoderConfig.CallerKey = "caller"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build(zap.AddCaller(), zap.AddCallerSkip(0))
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("service", "aiconnect"))

	return logger, nil
}

// Sync flushes any buffered log entries.
func Sync(logger *zap.Logger) {
	_ = logger.Sync()
}

// FromEnv creates a Config from environment variables.
func FromEnv() Config {
	return Config{
		Level:  getenv("AICONNECT_LOG_LEVEL", "info"),
		Format: getenv("AICONNECT_LOG_FORMAT", "json"),
	}
}

func getenv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Component returns a zap field for the component name.
func Component(name string) zap.Field { return zap.String("component", name) }

// Port returns a zap field for the port number.
func Port(port int) zap.Field { return zap.Int("port", port) }

// Addr returns a zap field for an address.
func Addr(addr string) zap.Field { return zap.String("addr", addr) }

// Domain returns a zap field for a domain name.
func Domain(domain string) zap.Field { return zap.String("domain", domain) }

// Method returns a zap field for an HTTP method.
func Method(method string) zap.Field { return zap.String("method", method) }

// Path returns a zap field for a URL path.
func Path(path string) zap.Field { return zap.String("path", path) }

// Status returns a zap field for an HTTP status code.
func Status(code int) zap.Field { return zap.Int("status", code) }

// TLSMode returns a zap field for TLS mode.
func TLSMode(mode string) zap.Field { return zap.String("tls_mode", mode) }

// Platform returns a zap field for an AI platform identifier.
func Platform(p string) zap.Field { return zap.String("platform", p) }

// ServiceID returns a zap field for a capability service identifier.
func ServiceID(sid string) zap.Field { return zap.String("service_id", sid) }

// Tenant returns a zap field for a tenant code.
func Tenant(code string) zap.Field { return zap.String("tenant", code) }

// ReqID returns a zap field for a client request id.
func ReqID(id string) zap.Field { return zap.String("req_id", id) }

// ReqCode returns a zap field for a client request code.
func ReqCode(code string) zap.Field { return zap.String("req_code", code) }

// RequestID returns a zap field for the per-request id set by the router.
func RequestID(id string) zap.Field { return zap.String("request_id", id) }

// Namespace returns a zap field for a cache namespace.
func Namespace(ns string) zap.Field { return zap.String("namespace", ns) }

// CacheKey returns a zap field for a cache fingerprint.
func CacheKey(key string) zap.Field { return zap.String("cache_key", key) }

// Capability returns a zap field for a provider capability.
func Capability(name string) zap.Field { return zap.String("capability", name) }
