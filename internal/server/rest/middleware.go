package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/deepesh-reddy/MegaBackend/internal/common"
	"github.com/deepesh-reddy/MegaBackend/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
)

type userIDKey struct{}

func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFromContext returns the authenticated user id set by RequireAuth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// AccessVerifier checks an access token statelessly.
type AccessVerifier interface {
	VerifyAccess(token string) (string, error)
}

// RequireAuth accepts an access token from the Authorization header or,
// failing that, the access token cookie.
func RequireAuth(v AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookieValue(r, common.AccessTokenCookieName)
			if h := r.Header.Get(common.AuthorizationHeaderName); h != "" {
				bearer, ok := strings.CutPrefix(h, "Bearer ")
				if !ok {
					respondError(w, r, common.ErrInvalidToken)
					return
				}
				token = strings.TrimSpace(bearer)
			}
			if token == "" {
				respondError(w, r, common.ErrorUnauthorized)
				return
			}

			userID, err := v.VerifyAccess(token)
			if err != nil {
				respondError(w, r, err)
				return
			}

			ctx := withUserID(r.Context(), userID)
			ctx = logging.NewContext(ctx, logging.FromContext(ctx, logging.Nop{}).With("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger puts a request-scoped logger into the context and logs
// each completed request, at Warn for 4xx and Error for 5xx.
func RequestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := logger.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote_ip", r.RemoteAddr,
			)
			ctx := logging.NewContext(r.Context(), reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			log := reqLogger.Info
			switch {
			case status >= http.StatusInternalServerError:
				log = reqLogger.Error
			case status >= http.StatusBadRequest:
				log = reqLogger.Warn
			}
			log(ctx, "request completed",
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// SecurityHeaders sets conservative headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
