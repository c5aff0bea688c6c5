package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/cache"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/prompt"
	"github.com/rsclarke/aiconnect/internal/provider"
)

const (
	CodeSentimentAnalysisCompleted = "SentimentAnalysisCompleted"
	CodeSentimentHistoryCompleted  = "SentimentHistoryCompleted"
	CodeSentimentHistoryFailed     = "SentimentHistoryFailed"

	MsgSentimentAnalysisCompleted = "Sentiment analysis completed successfully"
	MsgSentimentAnalysisFailed    = "Sentiment analysis failed"
	MsgSentimentHistoryCompleted  = "Sentiment history fetched successfully"
	MsgSentimentHistoryFailed     = "No sentiment history found"
)

// Label maps a score in [-1, 1] to its sentiment category. A nil score is Neutral.
func Label(score *float64) string {
	if score == nil {
		return "Neutral"
	}
	switch v := *score; {
	case v <= -0.5:
		return "Strongly Negative"
	case v <= -0.1:
		return "Slightly Negative"
	case v < 0.1:
		return "Neutral"
	case v < 0.5:
		return "Slightly Positive"
	default:
		return "Strongly Positive"
	}
}

var number = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseScore reads the first number in a model reply and clamps it to [-1, 1].
func parseScore(reply string) (float64, error) {
	m := number.FindString(reply)
	if m == "" {
		return 0, fmt.Errorf("no score in %q", reply)
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, err
	}
	return max(-1, min(1, v)), nil
}

// Sentiment scores one message, optionally per sentence, and reports the
// running average for the interaction.
func (s *Service) Sentiment(ctx context.Context, sess *auth.Session, q api.SentimentRequest) (*api.SentimentResponse, error) {
	req := envelope.Request{ReqID: q.ReqID, ReqCode: q.ReqCode}
	if err := envelope.Required(req, "Message", q.Message, "MessageID", q.MessageID, "UXID", q.UXID, "ProcessCode", q.ProcessCode); err != nil {
		return nil, err
	}

	key := cache.Fingerprint(string(cache.Sentiment), q.ProcessCode, q.MessageID, q.UXID, sess.TenantCode)
	if rec, ok := s.cache.Load(ctx, cache.Sentiment, key); ok {
		var resp api.SentimentResponse
		if err := rec.Decode(&resp); err == nil {
			resp.AverageScore = s.averageSentiment(ctx, q.ProcessCode, q.UXID, sess.TenantCode)
			return &resp, nil
		}
	}

	var resp api.SentimentResponse
	if q.OverallScore {
		reply, err := provider.Call(ctx, s.providers.Generators, sess.XPlatformID,
			func(ctx context.Context, g provider.Generator) (string, error) {
				return g.Generate(ctx, sess.XPlatformUA, prompt.Sentiment(q.Message))
			})
		if err != nil {
			return nil, upstream(err, MsgSentimentAnalysisFailed, envelope.CodeInternalServerError, req)
		}
		score, err := parseScore(reply)
		if err != nil {
			return nil, upstream(err, MsgSentimentAnalysisFailed, envelope.CodeInternalServerError, req)
		}
		resp.OverallScore = &score
		resp.OverallCategory = Label(&score)
	}
	if q.SentenceScore {
		reply, err := provider.Call(ctx, s.providers.Generators, sess.XPlatformID,
			func(ctx context.Context, g provider.Generator) (string, error) {
				return g.Generate(ctx, sess.XPlatformUA, prompt.SentenceSentiment(q.Message))
			})
		if err != nil {
			return nil, upstream(err, MsgSentimentAnalysisFailed, envelope.CodeInternalServerError, req)
		}
		sentences := map[string]api.SentenceScore{}
		if err := json.Unmarshal([]byte(stripFences(reply)), &sentences); err != nil {
			return nil, upstream(fmt.Errorf("decode sentence scores: %w", err), MsgSentimentAnalysisFailed, envelope.CodeInternalServerError, req)
		}
		resp.SentenceScore = sentences
	}

	s.cache.Save(ctx, cache.Sentiment, key, cache.Record{
		Token:       sess.Token,
		TenantCode:  sess.TenantCode,
		ProcessCode: q.ProcessCode,
		UXID:        q.UXID,
		MessageID:   q.MessageID,
		Meta:        map[string]any{"SentenceScore": q.SentenceScore, "OverallScore": q.OverallScore},
	}, resp)

	resp.AverageScore = s.averageSentiment(ctx, q.ProcessCode, q.UXID, sess.TenantCode)
	s.logger.Debug("sentiment analysed",
		zap.String("uxid", q.UXID),
		zap.String("category", resp.OverallCategory))
	return &resp, nil
}

func sentimentPattern(ns cache.Namespace, processCode, tenantCode string) string {
	return fmt.Sprintf("%s:%s:*:*:%s", ns, cache.EscapePattern(processCode), cache.EscapePattern(tenantCode))
}

// interactionRecords returns the cached records of one interaction. The
// record fields are checked as well as the key so a code containing the
// key separator cannot widen the match.
func (s *Service) interactionRecords(ctx context.Context, ns cache.Namespace, processCode, uxid, tenantCode string) []cache.Record {
	var out []cache.Record
	for _, rec := range s.cache.Scan(ctx, ns, sentimentPattern(ns, processCode, tenantCode)) {
		if rec.UXID != uxid || rec.ProcessCode != processCode || rec.TenantCode != tenantCode {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// averageSentiment is the mean OverallScore over the cached messages of one
// interaction. Messages scored without an overall score do not count.
func (s *Service) averageSentiment(ctx context.Context, processCode, uxid, tenantCode string) float64 {
	var sum float64
	var n int
	for _, rec := range s.interactionRecords(ctx, cache.Sentiment, processCode, uxid, tenantCode) {
		var r api.SentimentResponse
		if err := rec.Decode(&r); err != nil || r.OverallScore == nil {
			continue
		}
		sum += *r.OverallScore
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// SentimentTextChat scores a conversation per speaker.
func (s *Service) SentimentTextChat(ctx context.Context, sess *auth.Session, b api.SentimentTextChatRequest) (*api.SentimentTextChatResponse, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	if err := envelope.Required(req, "MessageID", b.MessageID, "UXID", b.UXID, "ProcessCode", b.ProcessCode); err != nil {
		return nil, err
	}
	if len(b.Message) == 0 {
		return nil, envelope.Invalid("Message should not be empty", req)
	}

	key := cache.Fingerprint(string(cache.SentimentTextChat), b.ProcessCode, b.MessageID, b.UXID, sess.TenantCode)
	if rec, ok := s.cache.Load(ctx, cache.SentimentTextChat, key); ok {
		var resp api.SentimentTextChatResponse
		if err := rec.Decode(&resp); err == nil {
			resp.AverageScore = s.averageTextChat(ctx, b.ProcessCode, b.UXID, sess.TenantCode)
			return &resp, nil
		}
	}

	reply, err := provider.Call(ctx, s.providers.Generators, sess.XPlatformID,
		func(ctx context.Context, g provider.Generator) (string, error) {
			return g.Generate(ctx, sess.XPlatformUA, prompt.SentimentTextChat(b.Message))
		})
	if err != nil {
		return nil, upstream(err, MsgSentimentAnalysisFailed, envelope.CodeInternalServerError, req)
	}
	speakers := map[string]api.SpeakerSentiment{}
	if err := json.Unmarshal([]byte(stripFences(reply)), &speakers); err != nil {
		return nil, upstream(fmt.Errorf("decode speaker sentiment: %w", err), MsgSentimentAnalysisFailed, envelope.CodeInternalServerError, req)
	}

	resp := api.SentimentTextChatResponse{Sentiment: speakers}
	s.cache.Save(ctx, cache.SentimentTextChat, key, cache.Record{
		Token:       sess.Token,
		TenantCode:  sess.TenantCode,
		ProcessCode: b.ProcessCode,
		UXID:        b.UXID,
		MessageID:   b.MessageID,
	}, resp)

	resp.AverageScore = s.averageTextChat(ctx, b.ProcessCode, b.UXID, sess.TenantCode)
	return &resp, nil
}

func (s *Service) averageTextChat(ctx context.Context, processCode, uxid, tenantCode string) float64 {
	var sum float64
	var n int
	for _, rec := range s.interactionRecords(ctx, cache.SentimentTextChat, processCode, uxid, tenantCode) {
		var r api.SentimentTextChatResponse
		if err := rec.Decode(&r); err != nil {
			continue
		}
		for _, sp := range r.Sentiment {
			sum += sp.OverallScore
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ErrNoHistory is returned when an interaction has no cached sentiment.
var ErrNoHistory = errors.New("no sentiment history")

// SentimentHistory lists the cached sentiment results of one interaction,
// oldest first.
func (s *Service) SentimentHistory(ctx context.Context, sess *auth.Session, b api.SentimentHistoryRequest) (*api.SentimentHistoryResponse, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	if err := envelope.Required(req, "UXID", b.UXID, "ProcessCode", b.ProcessCode); err != nil {
		return nil, err
	}

	var items []api.SentimentHistoryItem
	for _, rec := range s.interactionRecords(ctx, cache.Sentiment, b.ProcessCode, b.UXID, sess.TenantCode) {
		var r api.SentimentResponse
		if err := rec.Decode(&r); err != nil {
			continue
		}
		items = append(items, api.SentimentHistoryItem{MessageID: rec.MessageID, CachedAt: rec.CachedAt, SentimentResponse: r})
	}
	if len(items) == 0 {
		return nil, envelope.Fail(http.StatusNotFound, MsgSentimentHistoryFailed, CodeSentimentHistoryFailed, req).WithCause(ErrNoHistory)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CachedAt < items[j].CachedAt })

	return &api.SentimentHistoryResponse{
		History:      items,
		AverageScore: s.averageSentiment(ctx, b.ProcessCode, b.UXID, sess.TenantCode),
	}, nil
}
