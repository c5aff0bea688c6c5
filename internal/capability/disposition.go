package capability

import (
	"context"
	"strings"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/cache"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/prompt"
	"github.com/rsclarke/aiconnect/internal/provider"
)

const (
	CodeAutoDispositionSuccess = "AutoDispositionSuccess"
	CodeAutoDispositionError   = "AutoDispositionError"

	MsgAutoDispositionSuccess = "Auto-disposition completed successfully"
	MsgAutoDispositionError   = "Auto-disposition failed"
)

// AutoDisposition classifies a conversation into one of the caller's dispositions.
func (s *Service) AutoDisposition(ctx context.Context, sess *auth.Session, b api.DispositionRequest) (*api.DispositionResponse, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	if err := envelope.Required(req, "UXID", b.UXID, "ProcessCode", b.ProcessCode, "Conversation", b.Conversation); err != nil {
		return nil, err
	}
	if len(b.DispositionList) == 0 {
		return nil, envelope.Invalid("DispositionList should not be empty", req)
	}

	key := cache.Fingerprint(string(cache.AutoDisposition), b.ProcessCode, b.UXID, "", sess.TenantCode)
	if rec, ok := s.cache.Load(ctx, cache.AutoDisposition, key); ok {
		var resp api.DispositionResponse
		if err := rec.Decode(&resp); err == nil {
			return &resp, nil
		}
	}

	reply, err := provider.Call(ctx, s.providers.Generators, sess.XPlatformID,
		func(ctx context.Context, g provider.Generator) (string, error) {
			return g.Generate(ctx, sess.XPlatformUA, prompt.AutoDisposition(b.Conversation, b.DispositionList))
		})
	if err != nil {
		return nil, upstream(err, MsgAutoDispositionError, CodeAutoDispositionError, req)
	}

	resp := api.DispositionResponse{Disposition: cleanLine(reply)}
	s.cache.Save(ctx, cache.AutoDisposition, key, cache.Record{
		Token:       sess.Token,
		TenantCode:  sess.TenantCode,
		ProcessCode: b.ProcessCode,
		UXID:        b.UXID,
		Meta:        map[string]any{"ConversationID": b.ConversationID},
	}, resp)
	return &resp, nil
}

// cleanLine joins a multi-line reply into one trimmed line.
func cleanLine(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
