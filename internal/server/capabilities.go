package server

import (
	"net/http"
	"strings"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/capability"
	"github.com/rsclarke/aiconnect/internal/envelope"
)

// queryFlag reads a T/F style query flag.
func queryFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "t", "true", "1", "y", "yes":
		return true
	}
	return false
}

func (s *APIServer) handleSentiment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	b := api.SentimentRequest{
		ReqID:         strings.TrimSpace(q.Get("ReqId")),
		ReqCode:       strings.TrimSpace(q.Get("ReqCode")),
		Message:       q.Get("Message"),
		MessageID:     strings.TrimSpace(q.Get("MessageID")),
		UXID:          strings.TrimSpace(q.Get("UXID")),
		ProcessCode:   strings.TrimSpace(q.Get("ProcessCode")),
		SentenceScore: queryFlag(q.Get("SentenceScore")),
		OverallScore:  queryFlag(q.Get("OverallScore")),
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.SentimentDetection, req, capability.MsgSentimentAnalysisCompleted, capability.CodeSentimentAnalysisCompleted,
		func(sess *auth.Session) (*api.SentimentResponse, error) {
			return s.Capabilities.Sentiment(r.Context(), sess, b)
		})
}

func (s *APIServer) handleSentimentTextChat(w http.ResponseWriter, r *http.Request) {
	var b api.SentimentTextChatRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.SentimentDetection, req, capability.MsgSentimentAnalysisCompleted, capability.CodeSentimentAnalysisCompleted,
		func(sess *auth.Session) (*api.SentimentTextChatResponse, error) {
			return s.Capabilities.SentimentTextChat(r.Context(), sess, b)
		})
}

func (s *APIServer) handleSentimentHistory(w http.ResponseWriter, r *http.Request) {
	var b api.SentimentHistoryRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.SentimentDetection, req, capability.MsgSentimentHistoryCompleted, capability.CodeSentimentHistoryCompleted,
		func(sess *auth.Session) (*api.SentimentHistoryResponse, error) {
			return s.Capabilities.SentimentHistory(r.Context(), sess, b)
		})
}

func (s *APIServer) handleAutoDisposition(w http.ResponseWriter, r *http.Request) {
	var b api.DispositionRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.AutoDisposition, req, capability.MsgAutoDispositionSuccess, capability.CodeAutoDispositionSuccess,
		func(sess *auth.Session) (*api.DispositionResponse, error) {
			return s.Capabilities.AutoDisposition(r.Context(), sess, b)
		})
}

func (s *APIServer) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var b api.TranslateRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.LanguageTranslation, req, capability.MsgLanguageTranslationSuccess, capability.CodeLanguageTranslationSuccess,
		func(sess *auth.Session) (*api.TranslateResponse, error) {
			return s.Capabilities.Translate(r.Context(), sess, b)
		})
}

func (s *APIServer) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var b api.SynthesizeRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.TextToSpeech, req, capability.MsgTextToSpeechSuccess, capability.CodeTextToSpeechSuccess,
		func(sess *auth.Session) (*api.SynthesizeResponse, error) {
			return s.Capabilities.Synthesize(r.Context(), sess, b)
		})
}

func (s *APIServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	b := api.TranscribeRequest{
		ReqID:        strings.TrimSpace(q.Get("ReqId")),
		ReqCode:      strings.TrimSpace(q.Get("ReqCode")),
		AudioURL:     strings.TrimSpace(q.Get("AudioUrl")),
		MessageID:    strings.TrimSpace(q.Get("MessageID")),
		UXID:         strings.TrimSpace(q.Get("UXID")),
		ProcessCode:  strings.TrimSpace(q.Get("ProcessCode")),
		LanguageCode: strings.TrimSpace(q.Get("LanguageCode")),
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.SpeechToText, req, capability.MsgTranscribeSuccess, capability.CodeTranscribeSuccess,
		func(sess *auth.Session) (*api.TranscribeResponse, error) {
			return s.Capabilities.Transcribe(r.Context(), sess, b)
		})
}

func (s *APIServer) handleInsight(w http.ResponseWriter, r *http.Request) {
	var b api.InsightRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.Summarization, req, capability.MsgInsightSuccess, capability.CodeInsightSuccess,
		func(sess *auth.Session) (*api.InsightResponse, error) {
			return s.Capabilities.Insight(r.Context(), sess, b)
		})
}

func (s *APIServer) handleOpenChatInitialize(w http.ResponseWriter, r *http.Request) {
	var b api.OpenChatInitRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.OpenChat, req, capability.MsgOpenChatInitSuccess, capability.CodeOpenChatInitSuccess,
		func(sess *auth.Session) (*api.OpenChatInitResponse, error) {
			return s.Capabilities.OpenChatInitialize(r.Context(), sess, b)
		})
}

func (s *APIServer) handleOpenChat(w http.ResponseWriter, r *http.Request) {
	var b api.OpenChatRequest
	if !s.decode(w, r, &b) {
		return
	}
	req := envelope.Request{ReqID: b.ReqID, ReqCode: b.ReqCode}
	serve(s, w, r, auth.OpenChat, req, capability.MsgOpenChatSuccess, capability.CodeOpenChatSuccess,
		func(sess *auth.Session) (*api.OpenChatResponse, error) {
			return s.Capabilities.OpenChat(r.Context(), sess, b)
		})
}
