package middleware

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cinevault/backend/internal/logging"
)

// RequestIDHeader carries the request id to and from clients.
const RequestIDHeader = "X-Request-ID"

type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *responseWriter) WriteHeader(status int) {
	if rw.status == 0 {
		rw.status = status
	}
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *responseWriter) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// Hijack lets websocket upgrades pass through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if rw.status == 0 {
		rw.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func wrap(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w}
}

func completionLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger assigns every request an id, stores a request-scoped logger
// in its context, and logs one completion line whose level follows the
// response status. Handler panics become 500 responses.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if requestID == "" || len(requestID) > 64 {
				requestID = uuid.NewString()
			}

			ctx := logging.WithLogger(r.Context(), base.With(
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("client_ip", ClientIP(r)),
			))
			ctx = logging.WithRequestID(ctx, requestID)

			w.Header().Set(RequestIDHeader, requestID)
			rw := wrap(w)
			r = r.WithContext(ctx)

			defer func() {
				if rec := recover(); rec != nil {
					logging.FromContext(ctx).Error("panic recovered", slog.Any("panic", rec))
					if rw.status == 0 {
						writeError(ctx, rw, http.StatusInternalServerError, "internal server error")
					}
				}
				status := rw.Status()
				logging.FromContext(ctx).Log(ctx, completionLevel(status), "request completed",
					slog.Int("status", status),
					slog.Int("bytes", rw.bytes),
					slog.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
