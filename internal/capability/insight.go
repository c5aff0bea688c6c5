package capability

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/cache"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/prompt"
	"github.com/rsclarke/aiconnect/internal/provider"
)

const (
	CodeInsightSuccess = "InsightSuccess"
	CodeInsightError   = "InsightError"

	MsgInsightSuccess        = "Insight generated successfully"
	MsgInsightError          = "Insight generation failed"
	MsgInvalidAllowedInsight = "Invalid AllowedInsight"
)

var errInsightNotObject = errors.New("insight reply is not a JSON object")

// messageText returns a string Message unquoted and any other JSON value as
// its raw text.
func messageText(raw json.RawMessage) string {
	v := gjson.ParseBytes(raw)
	if v.Type == gjson.String {
		return v.String()
	}
	if v.Type == gjson.Null || !v.Exists() {
		return ""
	}
	return strings.TrimSpace(v.Raw)
}

// Insight extracts structured insights from a conversation.
func (s *Service) Insight(ctx context.Context, sess *auth.Session, b api.InsightRequest) (*api.InsightResponse, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	message := messageText(b.Message)
	if err := envelope.Required(req, "Message", message, "MessageID", b.MessageID, "UXID", b.UXID, "ProcessCode", b.ProcessCode); err != nil {
		return nil, err
	}
	for _, a := range b.AllowedInsights {
		if !slices.Contains(prompt.ValidInsights, a) {
			return nil, envelope.Invalid(MsgInvalidAllowedInsight, req)
		}
	}

	allowed := slices.Clone(b.AllowedInsights)
	sort.Strings(allowed)
	key := cache.Fingerprint(string(cache.Insight), b.ProcessCode, b.UXID, b.MessageID, strings.Join(allowed, ","), sess.TenantCode)
	if rec, ok := s.cache.Load(ctx, cache.Insight, key); ok {
		var resp api.InsightResponse
		if err := rec.Decode(&resp); err == nil {
			return &resp, nil
		}
	}

	qa := make([]prompt.QuestionAnswer, len(b.QuestionAnswer))
	for i, q := range b.QuestionAnswer {
		qa[i] = prompt.QuestionAnswer{Question: q.Question, Answers: q.Answers}
	}
	reply, err := provider.Call(ctx, s.providers.Generators, sess.XPlatformID,
		func(ctx context.Context, g provider.Generator) (string, error) {
			return g.Generate(ctx, sess.XPlatformUA, prompt.Insight(message, b.AllowedInsights, b.DispositionList, qa))
		})
	if err != nil {
		return nil, upstream(err, MsgInsightError, CodeInsightError, req)
	}

	body := stripFences(reply)
	if !gjson.Valid(body) || !gjson.Parse(body).IsObject() {
		return nil, upstream(errInsightNotObject, MsgInsightError, CodeInsightError, req)
	}
	var insight map[string]any
	if err := json.Unmarshal([]byte(body), &insight); err != nil {
		return nil, upstream(err, MsgInsightError, CodeInsightError, req)
	}

	resp := api.InsightResponse{Insight: insight}
	s.cache.Save(ctx, cache.Insight, key, cache.Record{
		Token:       sess.Token,
		TenantCode:  sess.TenantCode,
		ProcessCode: b.ProcessCode,
		UXID:        b.UXID,
		MessageID:   b.MessageID,
	}, resp)
	return &resp, nil
}
