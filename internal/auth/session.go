// Package auth validates session tokens on every gated request and carries
// the resulting session through the request context.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/provider"
)

// Service identifiers a token may be scoped to.
const (
	SentimentDetection  = "SentimentDetection"
	AutoDisposition     = "AutoDisposition"
	LanguageTranslation = "LanguageTranslation"
	TextToSpeech        = "TextToSpeech"
	SpeechToText        = "SpeechToText"
	Summarization       = "Summarization"
	OpenChat            = "OpenChat"
	KB                  = "KB"
)

// Session is the validated identity attached to a gated request.
type Session struct {
	XPlatformID  string
	XPlatformSID string
	XPlatformUA  provider.Credentials
	TenantCode   string
	Token        string
}

// Authorize checks that the session is scoped to sid. The token's service
// claim may list several identifiers separated by commas; matching is exact.
func (s *Session) Authorize(sid string, req envelope.Request) error {
	for _, svc := range strings.Split(s.XPlatformSID, ",") {
		if strings.TrimSpace(svc) == sid {
			return nil
		}
	}
	return envelope.Fail(http.StatusBadRequest, envelope.MsgSidMismatch, envelope.CodeSidMismatch, req)
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session attached by the gate.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}

// RequireSession returns the session for a gated handler, or an internal
// fault when the gate did not run.
func RequireSession(ctx context.Context, sid string, req envelope.Request) (*Session, error) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return nil, envelope.Fail(http.StatusInternalServerError, envelope.MsgInternalError, envelope.CodeInternalServerError, req)
	}
	if err := s.Authorize(sid, req); err != nil {
		return nil, err
	}
	return s, nil
}
