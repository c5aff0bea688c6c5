package capability

import (
	"context"
	"strings"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/cache"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/provider"
)

const (
	CodeLanguageTranslationSuccess = "LanguageTranslationSuccess"
	CodeLanguageTranslationError   = "LanguageTranslationError"

	MsgLanguageTranslationSuccess = "Language translation completed successfully"
	MsgLanguageTranslationError   = "Language translation failed"
)

func (s *Service) Translate(ctx context.Context, sess *auth.Session, b api.TranslateRequest) (*api.TranslateResponse, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	if err := envelope.Required(req, "Message", b.Message, "MessageID", b.MessageID, "UXID", b.UXID, "ProcessCode", b.ProcessCode, "To", b.To); err != nil {
		return nil, err
	}

	key := cache.Fingerprint(string(cache.LangTrans), b.ProcessCode, b.MessageID, b.UXID, b.From, b.To, sess.TenantCode)
	if rec, ok := s.cache.Load(ctx, cache.LangTrans, key); ok {
		var resp api.TranslateResponse
		if err := rec.Decode(&resp); err == nil {
			return &resp, nil
		}
	}

	text, err := provider.Call(ctx, s.providers.Translators, sess.XPlatformID,
		func(ctx context.Context, t provider.Translator) (string, error) {
			return t.Translate(ctx, sess.XPlatformUA, provider.TranslateRequest{Text: b.Message, From: b.From, To: b.To})
		})
	if err != nil {
		return nil, upstream(err, MsgLanguageTranslationError, CodeLanguageTranslationError, req)
	}

	resp := api.TranslateResponse{TranslatedMessage: strings.TrimSpace(text), From: b.From, To: b.To}
	s.cache.Save(ctx, cache.LangTrans, key, cache.Record{
		Token:       sess.Token,
		TenantCode:  sess.TenantCode,
		ProcessCode: b.ProcessCode,
		UXID:        b.UXID,
		MessageID:   b.MessageID,
	}, resp)
	return &resp, nil
}
