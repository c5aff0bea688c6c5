package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("sentiment", "PC1", "M1", "hello", "acme")
	b := Fingerprint("sentiment", "PC1", "M1", "hello", "acme")
	if a != b {
		t.Errorf("expected deterministic fingerprint, got %s and %s", a, b)
	}
	if a != "sentiment:PC1:M1:5d41402abc4b:acme" {
		t.Errorf("unexpected fingerprint %s", a)
	}
	if c := Fingerprint("sentiment", "PC1", "M1", "hello!", "acme"); c == a {
		t.Error("expected content to change fingerprint")
	}
	if d := Fingerprint("sentiment", "PC1", "M1", "hello"); strings.Count(d, ":") != 3 {
		t.Errorf("expected no extra dimensions, got %s", d)
	}
}

func TestNamespaceDB(t *testing.T) {
	tests := map[Namespace]int{
		Sentiment: 0, AutoDisposition: 1, LangTrans: 2, TTS: 3,
		Insight: 4, SentimentTextChat: 5, Assistant: 6, Thread: 7,
	}
	for ns, want := range tests {
		if got := ns.DB(); got != want {
			t.Errorf("%s: expected db %d, got %d", ns, want, got)
		}
	}
	if _, err := ParseNamespace("bogus"); !errors.Is(err, ErrUnknownNamespace) {
		t.Errorf("expected ErrUnknownNamespace, got %v", err)
	}
	if ns, err := ParseNamespace("TTS"); err != nil || ns != TTS {
		t.Errorf("expected tts, got %s %v", ns, err)
	}
}

func setupRedis(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  setupRedis(t),
	}
}

func TestStoreGetSet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, ok, err := s.Get(ctx, Sentiment, "k"); ok || err != nil {
				t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
			}
			if err := s.Set(ctx, Sentiment, "k", "v", time.Hour); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			v, ok, err := s.Get(ctx, Sentiment, "k")
			if err != nil || !ok || v != "v" {
				t.Errorf("expected v, got %q ok=%v err=%v", v, ok, err)
			}
		})
	}
}

func TestStoreNamespaceIsolation(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := Fingerprint("x", "pc", "ctx", "content")
			if err := s.Set(ctx, Sentiment, key, "a", time.Hour); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			if _, ok, _ := s.Get(ctx, Insight, key); ok {
				t.Error("expected miss in other namespace")
			}
			if err := s.Flush(ctx, Insight); err != nil {
				t.Fatalf("Flush failed: %v", err)
			}
			if _, ok, _ := s.Get(ctx, Sentiment, key); !ok {
				t.Error("expected flush of other namespace to leave entry")
			}
			if err := s.Flush(ctx, Sentiment); err != nil {
				t.Fatalf("Flush failed: %v", err)
			}
			if _, ok, _ := s.Get(ctx, Sentiment, key); ok {
				t.Error("expected entry to be flushed")
			}
		})
	}
}

func TestStoreKeys(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, k := range []string{"sentiment:PC:m1:aaa:acme", "sentiment:PC:m2:bbb:acme", "sentiment:OTHER:m1:aaa:acme", "sentiment:PC:m3:ccc:globex"} {
				if err := s.Set(ctx, Sentiment, k, "{}", time.Hour); err != nil {
					t.Fatalf("Set failed: %v", err)
				}
			}
			keys, err := s.Keys(ctx, Sentiment, "sentiment:PC:*:*:acme")
			if err != nil {
				t.Fatalf("Keys failed: %v", err)
			}
			if len(keys) != 2 || keys[0] != "sentiment:PC:m1:aaa:acme" {
				t.Errorf("unexpected keys %v", keys)
			}
		})
	}
}

func TestEscapePattern(t *testing.T) {
	tests := map[string]string{
		"acme":  "acme",
		"*":     `\*`,
		"a?b":   `a\?b`,
		"[ab]":  `\[ab\]`,
		`back\`: `back\\`,
	}
	for in, want := range tests {
		if got := EscapePattern(in); got != want {
			t.Errorf("EscapePattern(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestStoreKeysEscapedSegments(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, k := range []string{"sentiment:PC:m1:aaa:acme", "sentiment:*:m2:bbb:*"} {
				if err := s.Set(ctx, Sentiment, k, "{}", time.Hour); err != nil {
					t.Fatalf("Set failed: %v", err)
				}
			}
			keys, err := s.Keys(ctx, Sentiment, "sentiment:"+EscapePattern("*")+":*:*:"+EscapePattern("*"))
			if err != nil {
				t.Fatalf("Keys failed: %v", err)
			}
			if len(keys) != 1 || keys[0] != "sentiment:*:m2:bbb:*" {
				t.Errorf("expected only the literal key, got %v", keys)
			}
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Set(ctx, TTS, "k", "v", time.Minute)
	now = now.Add(2 * time.Minute)

	if _, ok, _ := s.Get(ctx, TTS, "k"); ok {
		t.Error("expected entry to expire")
	}
	if keys, _ := s.Keys(ctx, TTS, "*"); len(keys) != 0 {
		t.Errorf("expected expired key to be dropped, got %v", keys)
	}
}

func TestRedisStoreSetsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Set(context.Background(), Insight, "k", "v", time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if ttl := mr.DB(Insight.DB()).TTL("k"); ttl != time.Hour {
		t.Errorf("expected ttl 1h, got %v", ttl)
	}
	mr.FastForward(2 * time.Hour)
	if _, ok, _ := s.Get(context.Background(), Insight, "k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisOptions{Addr: "127.0.0.1:1"})
	if err == nil {
		t.Error("expected ping failure")
	}
}

type brokenStore struct{ *MemoryStore }

func (*brokenStore) Get(context.Context, Namespace, string) (string, bool, error) {
	return "", false, errors.New("connection reset")
}

func TestCacheLoadSave(t *testing.T) {
	c := New(NewMemoryStore(), time.Hour, zap.NewNop())
	ctx := context.Background()

	c.Save(ctx, Sentiment, "k", Record{ProcessCode: "PC", UXID: "u1"}, map[string]float64{"OverallScore": 0.4})

	rec, ok := c.Load(ctx, Sentiment, "k")
	if !ok {
		t.Fatal("expected hit")
	}
	if rec.UXID != "u1" || rec.CachedAt == 0 {
		t.Errorf("unexpected record %+v", rec)
	}
	var resp map[string]float64
	if err := rec.Decode(&resp); err != nil || resp["OverallScore"] != 0.4 {
		t.Errorf("unexpected response %v %v", resp, err)
	}

	if recs := c.Scan(ctx, Sentiment, "*"); len(recs) != 1 {
		t.Errorf("expected 1 record, got %d", len(recs))
	}
}

func TestCacheErrorsAreMisses(t *testing.T) {
	c := New(&brokenStore{MemoryStore: NewMemoryStore()}, time.Hour, zap.NewNop())
	if _, ok := c.Load(context.Background(), Sentiment, "k"); ok {
		t.Error("expected store error to be a miss")
	}

	m := NewMemoryStore()
	_ = m.Set(context.Background(), Sentiment, "bad", "not json", time.Hour)
	c = New(m, time.Hour, zap.NewNop())
	if _, ok := c.Load(context.Background(), Sentiment, "bad"); ok {
		t.Error("expected corrupt record to be a miss")
	}
}
