package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/ethpandaops/reportoor/pkg/metrics"
	"github.com/ethpandaops/reportoor/pkg/reporting"
	"github.com/ethpandaops/reportoor/pkg/store"
)

type contextKey string

const principalContextKey contextKey = "principal"

// requestLogger logs incoming HTTP requests and counts them by status code.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}

		metrics.RecordHTTPRequest(r.Method, strconv.Itoa(code))

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("remote", r.RemoteAddr).
			WithField("status", code).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

// limitBody caps the size of request bodies.
func (s *server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth resolves a Bearer API key or HTTP basic credentials to a
// principal and injects it into the request context.
func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authenticate(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="reportoor"`)
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{Message: "not authenticated"})

			return
		}

		principal, err := s.store.GetPrincipal(r.Context(), user.Username)
		if err != nil {
			s.log.WithError(err).
				WithField("user", user.Username).
				Error("Failed to resolve principal")
			writeJSON(w, http.StatusInternalServerError,
				errorResponse{Message: "internal error"})

			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate checks the Authorization header. Bearer tokens are looked up
// as API keys; basic credentials are checked against the bcrypt hash.
func (s *server) authenticate(r *http.Request) (*store.User, bool) {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		user, err := s.store.GetUserByAPIKey(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			return nil, false
		}

		return user, true
	}

	username, password, ok := r.BasicAuth()
	if !ok || username == "" || password == "" {
		return nil, false
	}

	user, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil || user.PasswordHash == "" {
		return nil, false
	}

	if !checkPassword(user.PasswordHash, password) {
		return nil, false
	}

	return user, true
}

// checkPassword compares a bcrypt hash with a plaintext password.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword(
		[]byte(hash), []byte(password),
	) == nil
}

// principalFromContext returns the authenticated principal, or nil.
func principalFromContext(ctx context.Context) *reporting.Principal {
	principal, _ := ctx.Value(principalContextKey).(*reporting.Principal)

	return principal
}
