package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rsclarke/aiconnect/internal/db"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/models"
	"github.com/rsclarke/aiconnect/internal/secret"
	"github.com/rsclarke/aiconnect/internal/token"
)

type fixture struct {
	gate   *Gate
	tokens *token.Service
	sealer *secret.Sealer
}

func allowOpenAI(p string) bool { return strings.EqualFold(p, "openai") }

func setupGate(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "gate.db"))
	if err != nil {
		t.Fatalf("db.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	sealer, err := secret.NewSealer("aes-key")
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	tokens := token.NewService("jwt-secret", token.NewSQLiteStore(database))
	return &fixture{
		gate:   NewGate(tokens, sealer, allowOpenAI, nil),
		tokens: tokens,
		sealer: sealer,
	}
}

func (f *fixture) issue(t *testing.T, platform, services, user string) string {
	t.Helper()
	sealed, err := f.sealer.Encrypt(user)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	res, err := f.tokens.Generate(context.Background(), token.Payload{
		Platform: platform, Services: services, User: sealed, Tenant: "ACME",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return res.Token
}

func expectFailure(t *testing.T, err error, status int, code string) {
	t.Helper()
	var e *envelope.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *envelope.Error, got %v", err)
	}
	if e.Status != status {
		t.Errorf("expected status %d, got %d", status, e.Status)
	}
	if e.Envelope.EvCode != code {
		t.Errorf("expected code %s, got %s", code, e.Envelope.EvCode)
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	f := setupGate(t)
	raw := f.issue(t, "OpenAI", SentimentDetection, `{"APISecretKey":"sk-1"}`)

	s, err := f.gate.Authenticate(context.Background(), raw, envelope.Request{})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if s.XPlatformID != "OpenAI" || s.XPlatformSID != SentimentDetection {
		t.Errorf("unexpected session %+v", s)
	}
	if s.XPlatformUA.APISecretKey != "sk-1" {
		t.Errorf("expected decrypted credentials, got %+v", s.XPlatformUA)
	}
	if s.TenantCode != "acme" {
		t.Errorf("expected lowercased tenant, got %s", s.TenantCode)
	}
	if s.Token != raw {
		t.Error("expected raw token on session")
	}
}

func TestAuthenticateFailures(t *testing.T) {
	f := setupGate(t)
	valid := f.issue(t, "openai", SentimentDetection, `{"APISecretKey":"sk-1"}`)

	foreign, _ := secret.NewSealer("other-key")
	foreignSealed, _ := foreign.Encrypt(`{"APISecretKey":"sk-1"}`)
	foreignUser, _ := f.tokens.Generate(context.Background(), token.Payload{Platform: "openai", User: foreignSealed})

	wrongSecret := token.NewService("other-secret", nil)
	forged, _ := wrongSecret.Generate(context.Background(), token.Payload{Platform: "openai", User: "x"})

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"platform": "openai",
		"exp":      time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("jwt-secret"))

	tests := []struct {
		name   string
		raw    string
		status int
		code   string
	}{
		{"missing", "", http.StatusForbidden, envelope.CodeMissingToken},
		{"garbage", "not-a-jwt", http.StatusUnauthorized, envelope.CodeTokenInvalid},
		{"expired", expired, http.StatusUnauthorized, envelope.CodeTokenInvalid},
		{"wrong signature", forged.Token, http.StatusUnauthorized, envelope.CodeUnauthorized},
		{"undecryptable user", foreignUser.Token, http.StatusUnauthorized, envelope.CodeUnauthorized},
		{"bad credential json", f.issue(t, "openai", OpenChat, "not json"), http.StatusUnauthorized, envelope.CodeUnauthorized},
		{"platform not allowed", f.issue(t, "azure", OpenChat, `{}`), http.StatusUnauthorized, envelope.CodePlatformIDMismatch},
		{"platform substring", f.issue(t, "open", OpenChat, `{}`), http.StatusUnauthorized, envelope.CodePlatformIDMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gate.Authenticate(context.Background(), tt.raw, envelope.Request{})
			expectFailure(t, err, tt.status, tt.code)
		})
	}

	if _, err := f.gate.Authenticate(context.Background(), valid, envelope.Request{}); err != nil {
		t.Errorf("expected valid token to pass, got %v", err)
	}
}

func TestAuthenticateRevoked(t *testing.T) {
	f := setupGate(t)
	raw := f.issue(t, "openai", KB, `{}`)

	if err := f.tokens.Revoke(context.Background(), raw); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	_, err := f.gate.Authenticate(context.Background(), raw, envelope.Request{})
	expectFailure(t, err, http.StatusUnauthorized, envelope.CodeUnauthorized)
}

type brokenStore struct{}

func (brokenStore) Revoke(context.Context, string, int64) error { return errors.New("io") }
func (brokenStore) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("io")
}
func (brokenStore) List(context.Context) ([]models.RevokedToken, error) { return nil, nil }
func (brokenStore) Prune(context.Context, int64) (int64, error)      { return 0, nil }

func TestAuthenticateFailsClosed(t *testing.T) {
	sealer, _ := secret.NewSealer("aes-key")
	tokens := token.NewService("jwt-secret", brokenStore{})
	g := NewGate(tokens, sealer, allowOpenAI, nil)

	sealed, _ := sealer.Encrypt(`{}`)
	res, _ := tokens.Generate(context.Background(), token.Payload{Platform: "openai", User: sealed})

	_, err := g.Authenticate(context.Background(), res.Token, envelope.Request{})
	expectFailure(t, err, http.StatusUnauthorized, envelope.CodeUnauthorized)
}

func TestAuthenticateMissingSecret(t *testing.T) {
	issuer := token.NewService("jwt-secret", nil)
	res, _ := issuer.Generate(context.Background(), token.Payload{Platform: "openai"})

	sealer, _ := secret.NewSealer("aes-key")
	g := NewGate(token.NewService("", nil), sealer, allowOpenAI, nil)

	_, err := g.Authenticate(context.Background(), res.Token, envelope.Request{ReqID: "r1"})
	expectFailure(t, err, http.StatusInternalServerError, envelope.CodeJWTSecretMissing)

	var e *envelope.Error
	errors.As(err, &e)
	if e.Envelope.ReqID != "r1" {
		t.Errorf("expected ReqId echoed, got %q", e.Envelope.ReqID)
	}
}

func TestAuthorize(t *testing.T) {
	s := &Session{XPlatformSID: "SentimentDetection, Summarization"}

	if err := s.Authorize(Summarization, envelope.Request{}); err != nil {
		t.Errorf("expected Summarization to be allowed, got %v", err)
	}
	expectFailure(t, s.Authorize(KB, envelope.Request{}), http.StatusBadRequest, envelope.CodeSidMismatch)
	expectFailure(t, s.Authorize("summarization", envelope.Request{}), http.StatusBadRequest, envelope.CodeSidMismatch)

	lower := &Session{XPlatformSID: "sentimentdetection"}
	expectFailure(t, lower.Authorize(SentimentDetection, envelope.Request{}), http.StatusBadRequest, envelope.CodeSidMismatch)
}

func TestRequireSession(t *testing.T) {
	_, err := RequireSession(context.Background(), KB, envelope.Request{})
	expectFailure(t, err, http.StatusInternalServerError, envelope.CodeInternalServerError)

	ctx := WithSession(context.Background(), &Session{XPlatformSID: KB})
	s, err := RequireSession(ctx, KB, envelope.Request{})
	if err != nil || s == nil {
		t.Errorf("expected session, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	f := setupGate(t)
	raw := f.issue(t, "openai", TextToSpeech, `{"APISecretKey":"sk"}`)

	var seen *Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	writeError := func(w http.ResponseWriter, _ *http.Request, err error) {
		e := envelope.FromError(err)
		w.WriteHeader(e.Status)
		_ = json.NewEncoder(w).Encode(e.Envelope)
	}
	h := f.gate.Middleware(next, writeError)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x?ReqId=abc", nil)
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without header, got %d", rec.Code)
	}
	var env envelope.Envelope
	_ = json.NewDecoder(rec.Body).Decode(&env)
	if env.ReqID != "abc" {
		t.Errorf("expected ReqId abc, got %q", env.ReqID)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderSession, raw)
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if seen == nil || seen.XPlatformUA.APISecretKey != "sk" {
		t.Errorf("expected session in context, got %+v", seen)
	}
}

func TestCorrelation(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		body     string
		wantID   string
		wantCode string
	}{
		{"query only", "/x?ReqId=q1&ReqCode=qc", "", "q1", "qc"},
		{"body only", "/x", `{"ReqId":"b1","ReqCode":"bc","Message":"hi"}`, "b1", "bc"},
		{"query wins", "/x?ReqId=q1", `{"ReqId":"b1","ReqCode":"bc"}`, "q1", "bc"},
		{"truncated body", "/x", `{"ReqId":"b1","Message":"` + strings.Repeat("a", correlationPeek) + `"}`, "b1", ""},
		{"not json", "/x", "ReqId=b1", "", ""},
		{"non-string id", "/x", `{"ReqId":7}`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			r := httptest.NewRequest(http.MethodPost, tt.target, body)
			got := correlation(r)
			if got.ReqID != tt.wantID || got.ReqCode != tt.wantCode {
				t.Errorf("expected %q/%q, got %q/%q", tt.wantID, tt.wantCode, got.ReqID, got.ReqCode)
			}
			rest, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if string(rest) != tt.body {
				t.Errorf("expected body restored (%d bytes), got %d bytes", len(tt.body), len(rest))
			}
		})
	}
}

func TestMiddlewareBodyCorrelation(t *testing.T) {
	f := setupGate(t)
	raw := f.issue(t, "openai", LanguageTranslation, `{"APISecretKey":"sk"}`)
	const payload = `{"ReqId":"body-1","ReqCode":"body-c","Message":"hello","To":"fr"}`

	var got []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	})
	writeError := func(w http.ResponseWriter, _ *http.Request, err error) {
		e := envelope.FromError(err)
		w.WriteHeader(e.Status)
		_ = json.NewEncoder(w).Encode(e.Envelope)
	}
	h := f.gate.Middleware(next, writeError)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/translate", strings.NewReader(payload)))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without header, got %d", rec.Code)
	}
	var env envelope.Envelope
	_ = json.NewDecoder(rec.Body).Decode(&env)
	if env.ReqID != "body-1" || env.ReqCode != "body-c" {
		t.Errorf("expected body-1/body-c, got %q/%q", env.ReqID, env.ReqCode)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/translate", strings.NewReader(payload))
	req.Header.Set(HeaderSession, raw)
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if string(got) != payload {
		t.Errorf("expected handler to read full body, got %q", got)
	}
}
