package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/provider"
	"github.com/rsclarke/aiconnect/internal/secret"
	"github.com/rsclarke/aiconnect/internal/token"
)

// HeaderSession carries the session token.
const HeaderSession = "sessionid"

// Gate authenticates requests against the token service.
type Gate struct {
	tokens  *token.Service
	sealer  *secret.Sealer
	allowed func(platform string) bool
	logger  *zap.Logger
}

// NewGate creates a gate. allowed reports whether a platform is on the allow-list.
func NewGate(tokens *token.Service, sealer *secret.Sealer, allowed func(string) bool, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{tokens: tokens, sealer: sealer, allowed: allowed, logger: logger.Named("gate")}
}

// Authenticate runs every gate step against raw and returns the session.
func (g *Gate) Authenticate(ctx context.Context, raw string, req envelope.Request) (*Session, error) {
	if raw == "" {
		return nil, envelope.Fail(http.StatusForbidden, envelope.MsgMissingToken, envelope.CodeMissingToken, req)
	}
	if g.tokens.IsTokenExpired(raw) {
		return nil, envelope.Fail(http.StatusUnauthorized, envelope.MsgTokenInvalid, envelope.CodeTokenInvalid, req)
	}
	if !g.tokens.HasSecret() {
		return nil, envelope.Fail(http.StatusInternalServerError, envelope.MsgJWTSecretMissing, envelope.CodeJWTSecretMissing, req)
	}

	unauthorized := envelope.Fail(http.StatusUnauthorized, envelope.MsgUnauthorized, envelope.CodeUnauthorized, req)

	claims, err := g.tokens.Verify(ctx, raw)
	if err != nil {
		if !errors.Is(err, token.ErrInvalidToken) && !errors.Is(err, token.ErrRevoked) {
			g.logger.Error("revocation lookup failed", zap.Error(err))
		}
		return nil, unauthorized.WithCause(err)
	}

	plain := g.sealer.Decrypt(claims.User)
	if plain == "" {
		return nil, unauthorized.WithCause(errors.New("user claim does not decrypt"))
	}
	creds, err := provider.ParseCredentials(plain)
	if err != nil {
		return nil, unauthorized.WithCause(err)
	}

	if g.allowed == nil || !g.allowed(claims.Platform) {
		return nil, envelope.Fail(http.StatusUnauthorized, envelope.MsgPlatformIDMismatch, envelope.CodePlatformIDMismatch, req)
	}

	return &Session{
		XPlatformID:  claims.Platform,
		XPlatformSID: claims.Services,
		XPlatformUA:  creds,
		TenantCode:   claims.Tenant,
		Token:        raw,
	}, nil
}

// Middleware authenticates the sessionid header and attaches the session.
// Failures are passed to writeError.
func (g *Gate) Middleware(next http.Handler, writeError func(http.ResponseWriter, *http.Request, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := correlation(r)
		s, err := g.Authenticate(r.Context(), r.Header.Get(HeaderSession), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// correlationPeek bounds how much of a request body the gate reads to find
// ReqId and ReqCode.
const correlationPeek = 64 << 10

// correlation returns the ReqId and ReqCode of r. The query string wins;
// blanks are filled from the leading part of a JSON body, which is put back
// for the handler.
func correlation(r *http.Request) envelope.Request {
	q := r.URL.Query()
	req := envelope.Request{
		ReqID:   strings.TrimSpace(q.Get("ReqId")),
		ReqCode: strings.TrimSpace(q.Get("ReqCode")),
	}
	if (req.ReqID != "" && req.ReqCode != "") || r.Body == nil || r.Body == http.NoBody {
		return req
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, correlationPeek))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil || len(buf) == 0 {
		return req
	}

	fields := gjson.GetManyBytes(buf, "ReqId", "ReqCode")
	if req.ReqID == "" && fields[0].Type == gjson.String {
		req.ReqID = strings.TrimSpace(fields[0].Str)
	}
	if req.ReqCode == "" && fields[1].Type == gjson.String {
		req.ReqCode = strings.TrimSpace(fields[1].Str)
	}
	return req
}
