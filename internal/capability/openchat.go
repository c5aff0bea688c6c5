package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/cache"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/logging"
	"github.com/rsclarke/aiconnect/internal/provider"
)

const (
	CodeOpenChatInitSuccess = "OpenChatInitSuccess"
	CodeOpenChatSuccess     = "OpenChatSuccess"
	CodeOpenChatFailed      = "OpenChatFailed"

	MsgOpenChatInitSuccess = "OpenChat initialization completed successfully"
	MsgOpenChatInitFailed  = "OpenChat initialization failed"
	MsgOpenChatSuccess     = "OpenChat completed successfully"
	MsgOpenChatFailed      = "OpenChat failed"
)

const (
	openChatAssistantName = "SessionBot"
	openChatInstructions  = "You are SessionBot. Assist in managing multi-turn conversations, tracking context, and providing helpful responses. Keep replies concise and actionable."
)

var errRunPending = errors.New("run still in progress")

// OpenChatInitialize returns the assistant and thread for a contact,
// creating and caching whichever does not exist yet.
func (s *Service) OpenChatInitialize(ctx context.Context, sess *auth.Session, b api.OpenChatInitRequest) (*api.OpenChatInitResponse, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	assistantKey := cache.Fingerprint(string(cache.Assistant), b.ProcessCode, b.ContactID, b.ReqCode, sess.XPlatformID, sess.TenantCode)
	threadKey := cache.Fingerprint(string(cache.Thread), b.ProcessCode, b.ContactID, b.ReqCode, sess.XPlatformID, sess.TenantCode)
	record := cache.Record{Token: sess.Token, TenantCode: sess.TenantCode, ProcessCode: b.ProcessCode, Meta: map[string]any{"ContactId": b.ContactID, "ReqCode": b.ReqCode}}

	assistantID := s.cachedID(ctx, cache.Assistant, assistantKey)
	if assistantID == "" {
		id, err := provider.Call(ctx, s.providers.Assistants, sess.XPlatformID,
			func(ctx context.Context, a provider.Assistants) (string, error) {
				return a.CreateAssistant(ctx, sess.XPlatformUA, provider.AssistantSpec{Name: openChatAssistantName, Instructions: openChatInstructions})
			})
		if err != nil {
			return nil, upstream(err, MsgOpenChatInitFailed, envelope.CodeInternalServerError, req)
		}
		assistantID = id
		s.cache.Save(ctx, cache.Assistant, assistantKey, record, id)
		s.logger.Info("openchat assistant created", zap.String("assistant_id", id), logging.CacheKey(assistantKey))
	}

	threadID := s.cachedID(ctx, cache.Thread, threadKey)
	if threadID == "" {
		id, err := provider.Call(ctx, s.providers.Assistants, sess.XPlatformID,
			func(ctx context.Context, a provider.Assistants) (string, error) {
				return a.CreateThread(ctx, sess.XPlatformUA)
			})
		if err != nil {
			return nil, upstream(err, MsgOpenChatInitFailed, envelope.CodeInternalServerError, req)
		}
		threadID = id
		s.cache.Save(ctx, cache.Thread, threadKey, record, id)
		s.logger.Info("openchat thread created", zap.String("thread_id", id), logging.CacheKey(threadKey))
	}

	return &api.OpenChatInitResponse{ThreadID: threadID, AssistantID: assistantID}, nil
}

func (s *Service) cachedID(ctx context.Context, ns cache.Namespace, key string) string {
	rec, ok := s.cache.Load(ctx, ns, key)
	if !ok {
		return ""
	}
	var id string
	if err := rec.Decode(&id); err != nil {
		return ""
	}
	return id
}

// OpenChat posts a message to the thread, runs the assistant and waits for
// the run to finish.
func (s *Service) OpenChat(ctx context.Context, sess *auth.Session, b api.OpenChatRequest) (*api.OpenChatResponse, error) {
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	if err := envelope.Required(req, "Message", b.Message, "AssistantId", b.AssistantID, "ThreadId", b.ThreadID); err != nil {
		return nil, err
	}

	reply, run, err := s.converse(ctx, sess, b.ThreadID, b.AssistantID, b.Message)
	if err != nil {
		return nil, upstream(err, MsgOpenChatFailed, CodeOpenChatFailed, req)
	}
	return &api.OpenChatResponse{Reply: reply, RunID: run.ID, Status: run.Status}, nil
}

// converse adds message to the thread, runs it to completion and returns the
// newest assistant reply.
func (s *Service) converse(ctx context.Context, sess *auth.Session, threadID, assistantID, message string) (string, provider.Run, error) {
	_, err := provider.Call(ctx, s.providers.Assistants, sess.XPlatformID,
		func(ctx context.Context, a provider.Assistants) (string, error) {
			return a.AddMessage(ctx, sess.XPlatformUA, threadID, message)
		})
	if err != nil {
		return "", provider.Run{}, err
	}
	run, err := provider.Call(ctx, s.providers.Assistants, sess.XPlatformID,
		func(ctx context.Context, a provider.Assistants) (provider.Run, error) {
			return a.CreateRun(ctx, sess.XPlatformUA, threadID, assistantID)
		})
	if err != nil {
		return "", provider.Run{}, err
	}

	run, err = s.waitRun(ctx, sess, threadID, run)
	if err != nil {
		return "", run, err
	}
	if run.Status != "completed" {
		return "", run, fmt.Errorf("run %s ended with status %s", run.ID, run.Status)
	}

	msgs, err := provider.Call(ctx, s.providers.Assistants, sess.XPlatformID,
		func(ctx context.Context, a provider.Assistants) ([]provider.Message, error) {
			return a.ListMessages(ctx, sess.XPlatformUA, threadID)
		})
	if err != nil {
		return "", run, err
	}
	return latestReply(msgs), run, nil
}

// waitRun polls run with exponential backoff until it reaches a terminal status.
func (s *Service) waitRun(ctx context.Context, sess *auth.Session, threadID string, run provider.Run) (provider.Run, error) {
	if run.Terminal() {
		return run, nil
	}
	return backoff.Retry(ctx, func() (provider.Run, error) {
		r, err := provider.Call(ctx, s.providers.Assistants, sess.XPlatformID,
			func(ctx context.Context, a provider.Assistants) (provider.Run, error) {
				return a.GetRun(ctx, sess.XPlatformUA, threadID, run.ID)
			})
		if err != nil {
			return r, backoff.Permanent(err)
		}
		if !r.Terminal() {
			return r, errRunPending
		}
		return r, nil
	}, backoff.WithBackOff(s.pollBackOff()), backoff.WithMaxElapsedTime(s.cfg.ProviderTimeout))
}

// latestReply picks the newest assistant message. Messages arrive newest first.
func latestReply(msgs []provider.Message) string {
	for _, m := range msgs {
		if m.Role == "assistant" && m.Text != "" {
			return m.Text
		}
	}
	return ""
}
