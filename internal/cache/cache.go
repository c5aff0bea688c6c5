// Package cache memoizes provider results keyed by a content fingerprint.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/logging"
)

// Namespace partitions cache entries by capability.
type Namespace string

const (
	Sentiment         Namespace = "sentiment"
	AutoDisposition   Namespace = "autodisposition"
	LangTrans         Namespace = "langtrans"
	TTS               Namespace = "tts"
	Insight           Namespace = "insight"
	SentimentTextChat Namespace = "sentimenttextchat"
	Assistant         Namespace = "assistant"
	Thread            Namespace = "thread"
)

var namespaces = []Namespace{Sentiment, AutoDisposition, LangTrans, TTS, Insight, SentimentTextChat, Assistant, Thread}

var ErrUnknownNamespace = errors.New("unknown cache namespace")

// Namespaces returns every namespace in Redis database order.
func Namespaces() []Namespace {
	return append([]Namespace(nil), namespaces...)
}

// ParseNamespace validates name.
func ParseNamespace(name string) (Namespace, error) {
	for _, ns := range namespaces {
		if string(ns) == strings.ToLower(name) {
			return ns, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNamespace, name)
}

// DB returns the Redis logical database backing ns.
func (ns Namespace) DB() int {
	for i, n := range namespaces {
		if n == ns {
			return i
		}
	}
	return -1
}

// Fingerprint builds capability:processCode:contextID:md5(content)[:12] followed
// by any extra dimensions.
func Fingerprint(capability, processCode, contextID, content string, extra ...string) string {
	sum := md5.Sum([]byte(content))
	parts := []string{capability, processCode, contextID, hex.EncodeToString(sum[:])[:12]}
	parts = append(parts, extra...)
	return strings.Join(parts, ":")
}

// EscapePattern quotes the glob metacharacters in s so it matches only
// itself in a Keys pattern. Redis SCAN and path.Match share the backslash
// escape.
func EscapePattern(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store is a namespaced key/value store with expiry.
type Store interface {
	Get(ctx context.Context, ns Namespace, key string) (string, bool, error)
	Set(ctx context.Context, ns Namespace, key, value string, ttl time.Duration) error
	Keys(ctx context.Context, ns Namespace, pattern string) ([]string, error)
	Flush(ctx context.Context, ns Namespace) error
	Close() error
}

// Record is the cached value.
type Record struct {
	Token       string          `json:"Token,omitempty"`
	TenantCode  string          `json:"TenantCode,omitempty"`
	ProcessCode string          `json:"ProcessCode,omitempty"`
	UXID        string          `json:"UXID,omitempty"`
	MessageID   string          `json:"MessageID,omitempty"`
	Meta        map[string]any  `json:"Meta,omitempty"`
	Response    json.RawMessage `json:"Response"`
	CachedAt    int64           `json:"CachedAt"`
}

// Decode unmarshals the cached response into out.
func (r *Record) Decode(out any) error {
	return json.Unmarshal(r.Response, out)
}

// Cache wraps a Store with Record encoding and a fixed TTL.
type Cache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a Cache.
func New(store Store, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, ttl: ttl, logger: logger.Named("cache")}
}

// Load returns the record under key. Store failures count as a miss.
func (c *Cache) Load(ctx context.Context, ns Namespace, key string) (*Record, bool) {
	raw, ok, err := c.store.Get(ctx, ns, key)
	if err != nil {
		c.logger.Warn("cache read failed", logging.Namespace(string(ns)), logging.CacheKey(key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		c.logger.Warn("cache record corrupt", logging.Namespace(string(ns)), logging.CacheKey(key), zap.Error(err))
		return nil, false
	}
	c.logger.Debug("cache hit", logging.Namespace(string(ns)), logging.CacheKey(key))
	return &rec, true
}

// Save stores response under key. Failures are logged.
func (c *Cache) Save(ctx context.Context, ns Namespace, key string, rec Record, response any) {
	body, err := json.Marshal(response)
	if err != nil {
		c.logger.Warn("cache encode failed", logging.Namespace(string(ns)), zap.Error(err))
		return
	}
	rec.Response = body
	rec.CachedAt = time.Now().Unix()

	raw, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn("cache encode failed", logging.Namespace(string(ns)), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, ns, key, string(raw), c.ttl); err != nil {
		c.logger.Warn("cache write failed", logging.Namespace(string(ns)), logging.CacheKey(key), zap.Error(err))
	}
}

// Scan returns the records whose keys match pattern, skipping unreadable ones.
func (c *Cache) Scan(ctx context.Context, ns Namespace, pattern string) []Record {
	keys, err := c.store.Keys(ctx, ns, pattern)
	if err != nil {
		c.logger.Warn("cache scan failed", logging.Namespace(string(ns)), zap.Error(err))
		return nil
	}
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		if rec, ok := c.Load(ctx, ns, k); ok {
			out = append(out, *rec)
		}
	}
	return out
}

// Keys lists keys in ns matching pattern.
func (c *Cache) Keys(ctx context.Context, ns Namespace, pattern string) ([]string, error) {
	return c.store.Keys(ctx, ns, pattern)
}

// Flush removes every entry in ns.
func (c *Cache) Flush(ctx context.Context, ns Namespace) error {
	return c.store.Flush(ctx, ns)
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
