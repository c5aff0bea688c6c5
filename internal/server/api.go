// Package server implements the gateway HTTP API and its listeners.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/capability"
	"github.com/rsclarke/aiconnect/internal/config"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/logging"
	"github.com/rsclarke/aiconnect/internal/secret"
	"github.com/rsclarke/aiconnect/internal/tenant"
	"github.com/rsclarke/aiconnect/internal/token"
)

const maxBodyBytes = 1 << 20

// APIServer serves the session, utility and capability routes.
type APIServer struct {
	Config       *config.Config
	Tokens       *token.Service
	Sealer       *secret.Sealer
	Directory    *tenant.Directory
	Gate         *auth.Gate
	Capabilities *capability.Service
	Logger       *zap.Logger
}

// Handler returns the HTTP handler for the API server. Every route sits
// under the configured version prefix.
func (s *APIServer) Handler() http.Handler {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	p := s.Config.RoutePrefix()
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+p+"/session-init", s.handleSessionInit)
	mux.HandleFunc("POST "+p+"/session-end", s.handleSessionEnd)
	mux.HandleFunc("POST "+p+"/session-renew", s.handleSessionRenew)
	mux.HandleFunc("GET "+p+"/version", s.handleVersion)
	mux.HandleFunc("GET "+p+"/health", s.handleHealth)
	mux.HandleFunc("POST "+p+"/encrypt", s.handleEncrypt)

	gated := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.Gate.Middleware(h, s.writeError))
	}

	gated("GET "+p+"/sentiment", s.handleSentiment)
	gated("POST "+p+"/sentiment-text-chat", s.handleSentimentTextChat)
	gated("POST "+p+"/sentiment-history", s.handleSentimentHistory)
	gated("POST "+p+"/auto-disposition", s.handleAutoDisposition)
	gated("POST "+p+"/translate", s.handleTranslate)
	gated("POST "+p+"/synthesize", s.handleSynthesize)
	gated("GET "+p+"/transcribe", s.handleTranscribe)
	gated("POST "+p+"/insight", s.handleInsight)
	gated("POST "+p+"/openchat/initialize", s.handleOpenChatInitialize)
	gated("POST "+p+"/openchat", s.handleOpenChat)

	gated("POST "+p+"/kb/init", s.handleKBInit)
	gated("GET "+p+"/kb", s.handleListKB)
	gated("DELETE "+p+"/kb/{id}", s.handleDeleteKB)
	gated("POST "+p+"/kb/file", s.handleUploadKBFile)
	gated("GET "+p+"/kb/file/{id}", s.handleListKBFiles)
	gated("DELETE "+p+"/kb/file/{id}", s.handleDeleteKBFile)
	gated("POST "+p+"/kb/vectorstore-file", s.handleAttachKBFiles)
	gated("PATCH "+p+"/kb/vectorstore-file", s.handleDetachKBFiles)
	gated("POST "+p+"/kb/assistant", s.handleCreateKBAssistant)
	gated("GET "+p+"/kb/assistant", s.handleListKBAssistants)
	gated("PATCH "+p+"/kb/assistant", s.handleUpdateKBAssistant)
	gated("DELETE "+p+"/kb/assistant/{id}", s.handleDeleteKBAssistant)
	gated("POST "+p+"/kb/thread", s.handleKBThread)
	gated("POST "+p+"/kb/run-message", s.handleKBRunMessage)
	gated("GET "+p+"/kb/run-status", s.handleKBRunStatus)
	gated("GET "+p+"/kb/messages", s.handleKBMessages)

	if dir := s.Config.AudioDir; dir != "" {
		mux.Handle("GET "+p+"/audio/", http.StripPrefix(p+"/audio/", noDirListing(http.FileServer(http.Dir(dir)))))
	}

	return Chain(mux, middleware.RequestID, AccessLog(s.Logger), Recover(s.Logger))
}

// noDirListing hides directory indexes of the audio store.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// queryRequest reads the optional correlation fields from the query string.
func queryRequest(r *http.Request) envelope.Request {
	q := r.URL.Query()
	return envelope.Request{ReqID: strings.TrimSpace(q.Get("ReqId")), ReqCode: strings.TrimSpace(q.Get("ReqCode"))}
}

// decode reads a JSON body into v. An empty body leaves v untouched. It
// writes the failure itself and reports false when the body is unusable.
func (s *APIServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.writeError(w, r, envelope.Fail(http.StatusRequestEntityTooLarge, "Request body too large", envelope.CodeSessionInitFailed, queryRequest(r)))
			return false
		}
		s.writeError(w, r, envelope.Invalid("Invalid JSON body", queryRequest(r)).WithCause(err))
		return false
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		s.writeError(w, r, envelope.Invalid("Unexpected trailing data", queryRequest(r)))
		return false
	}
	return true
}

// serve authorizes the session for sid, runs call and writes the success
// envelope or the failure.
func serve[R any](s *APIServer, w http.ResponseWriter, r *http.Request, sid string, req envelope.Request, message, code string, call func(*auth.Session) (R, error)) {
	sess, err := auth.RequireSession(r.Context(), sid, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := call(sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope.Success(message, code, data, req))
}

// writeError logs err with its cause and writes the failure envelope.
func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := envelope.FromError(err)
	fields := []zap.Field{
		logging.Method(r.Method),
		logging.Path(r.URL.Path),
		logging.Status(e.Status),
		zap.String("ev_code", e.Envelope.EvCode),
		logging.ReqID(e.Envelope.ReqID),
	}
	if e.Cause != nil {
		fields = append(fields, zap.Error(e.Cause))
	}
	if e.Status >= http.StatusInternalServerError {
		s.Logger.Error(e.Envelope.Message, fields...)
	} else {
		s.Logger.Warn(e.Envelope.Message, fields...)
	}
	writeJSON(w, e.Status, e.Envelope)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
