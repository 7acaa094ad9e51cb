package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"authgate/internal/logger"
	"authgate/internal/requestid"
)

// maxLoggedBody caps how much of a request body is read for debug logging.
const maxLoggedBody = 4 << 10

// errorBody extracts the interesting parts of an error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestid.Header))
		if requestID == "" {
			requestID = requestid.New()
		}

		w.Header().Set(requestid.Header, requestID)
		ctx := requestid.WithContext(r.Context(), requestID)
		r = r.WithContext(ctx)

		if slog.Default().Enabled(ctx, slog.LevelDebug) {
			if fields, ok := captureBody(r); ok {
				slog.DebugContext(ctx, "request body", "method", r.Method, "path", r.URL.Path, "body", fields)
			}
		}

		started := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", extractClientIP(r),
		}

		if wrapped.status >= 400 && wrapped.body.Len() > 0 {
			var parsed errorBody
			if err := json.Unmarshal(wrapped.body.Bytes(), &parsed); err == nil && parsed.Error != "" {
				attrs = append(attrs, "error_kind", parsed.Error, "error_message", parsed.Message)
			}
		}

		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			attrs = append(attrs, "client_canceled", true)
			slog.InfoContext(ctx, "request", attrs...)
		case wrapped.status >= 500:
			slog.ErrorContext(ctx, "request", attrs...)
		case wrapped.status >= 400:
			slog.WarnContext(ctx, "request", attrs...)
		default:
			slog.InfoContext(ctx, "request", attrs...)
		}
	})
}

// captureBody reads a JSON request body for logging, restores it for the
// handler and masks sensitive fields.
func captureBody(r *http.Request) (map[string]any, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return nil, false
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
	if err != nil {
		return nil, false
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), r.Body), r.Body}

	if len(raw) > maxLoggedBody {
		return nil, false
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return redactFields(fields), true
}

func redactFields(fields map[string]any) map[string]any {
	for key, value := range fields {
		if logger.IsSensitive(key) {
			fields[key] = "[REDACTED]"
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			fields[key] = redactFields(nested)
		}
	}
	return fields
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.status >= 400 {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
