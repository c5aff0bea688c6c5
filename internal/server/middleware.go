package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/logging"
)

// Chain wraps h so the first middleware listed runs outermost.
func Chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	return chi.Chain(mw...).Handler(h)
}

// AccessLog logs method, path, status and duration of every request.
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				logging.Method(r.Method),
				logging.Path(r.URL.Path),
				logging.Status(status),
				logging.RequestID(middleware.GetReqID(r.Context())),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// Recover turns a handler panic into a 500 envelope.
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					logger.Error("handler panic",
						logging.Method(r.Method),
						logging.Path(r.URL.Path),
						logging.RequestID(middleware.GetReqID(r.Context())),
						zap.Any("panic", v),
						zap.Stack("stack"),
					)
					if ww.Status() == 0 {
						e := envelope.Fail(http.StatusInternalServerError, envelope.MsgInternalError, envelope.CodeInternalServerError, queryRequest(r))
						writeJSON(w, e.Status, e.Envelope)
					}
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
