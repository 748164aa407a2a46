package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/caresync/internal/auth"
	"github.com/Lllllllleong/caresync/internal/services"
)

type requestIDKey struct{}

// Wrap applies the standard middleware chain to a single function handler,
// in the same order NewRouter uses.
func Wrap(h http.Handler, logger *slog.Logger) http.Handler {
	return RequestID(Recovery(logger)(Logger(logger)(h)))
}

// RequestID propagates or generates an X-Request-Id.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Logger logs each request once it has been served.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("requestId", requestIDFrom(r.Context())),
			}
			level := slog.LevelInfo
			if sw.status >= 500 {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "http.request", attrs...)
		})
	}
}

// Recovery turns a panic into a 500. Deliberate aborts of streamed
// responses are re-raised so the server drops the connection.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "panic recovered",
					slog.Any("error", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying flusher and hijacker.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// familyAllowed writes 403 and returns false when the session in r's context
// does not cover familyID. Anonymous requests and empty ids pass through; the
// services reject a missing family themselves.
func familyAllowed(w http.ResponseWriter, r *http.Request, familyID string) bool {
	session, ok := auth.SessionFrom(r.Context())
	if !ok || familyID == "" || session.InFamily(familyID) {
		return true
	}
	slog.Warn("Rejected request for another family",
		"userId", session.UserID, "familyId", familyID, "path", r.URL.Path)
	writeMessage(w, http.StatusForbidden, services.KindForbidden, "You do not have access to this family")
	return false
}

// sessionFor verifies the caller's token when a verifier is configured.
// With required set, a missing or invalid token is an error.
func sessionFor(r *http.Request, verifier *auth.Verifier, required bool) (*auth.Session, error) {
	if verifier == nil {
		if required {
			return nil, auth.ErrMissingToken
		}
		return nil, nil
	}
	s, err := verifier.FromRequest(r)
	if err != nil {
		if required {
			return nil, err
		}
		return nil, nil
	}
	return s, nil
}
