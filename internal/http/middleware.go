package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	domainsession "github.com/faqdesk/faqdesk/internal/domain/session"
	"github.com/faqdesk/faqdesk/internal/ports"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *respWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type sessionContextKey struct{}

type credentialContextKey struct{}

// SessionFromContext returns the session the gate resolved for this request.
// Outside a gated route it returns the unauthenticated session.
func SessionFromContext(ctx context.Context) domainsession.Session {
	if s, ok := ctx.Value(sessionContextKey{}).(domainsession.Session); ok {
		return s
	}
	return domainsession.Anonymous
}

// CredentialFromContext returns the opaque credential attached by the gate.
func CredentialFromContext(ctx context.Context) domainsession.Credential {
	if c, ok := ctx.Value(credentialContextKey{}).(domainsession.Credential); ok {
		return c
	}
	return ""
}

// Gates builds the access-control middleware. Every gated navigation performs
// a fresh oracle round-trip; the verdict is never cached across requests, so
// a session invalidated elsewhere takes effect on the next navigation.
//
// Handlers behind a gate only ever run after the verdict: no protected
// content can be written before the session is known.
type Gates struct {
	Oracle     ports.SessionOracle
	CookieName string
}

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

// ForbiddenLoginPath marks a role rejection distinctly from a plain
// unauthenticated redirect.
const ForbiddenLoginPath = "/login?reason=forbidden"

func (g Gates) credential(r *http.Request) domainsession.Credential {
	c, err := r.Cookie(g.CookieName)
	if err != nil {
		return ""
	}
	return domainsession.Credential(c.Value)
}

// Private admits only authenticated sessions whose role passes the allowlist.
// An empty allowlist admits any authenticated session. Sessions with a role
// the allowlist does not recognize are rejected, never admitted by default.
func (g Gates) Private(allowed ...domainsession.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred := g.credential(r)
			sess := g.Oracle.Resolve(r.Context(), cred)
			if !sess.Authenticated {
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			if !sess.Allows(allowed...) {
				http.Redirect(w, r, ForbiddenLoginPath, http.StatusSeeOther)
				return
			}
			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			ctx = context.WithValue(ctx, credentialContextKey{}, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Public admits only unauthenticated visitors. An authenticated session is
// sent to its role's landing page instead of seeing login or signup again.
func (g Gates) Public() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred := g.credential(r)
			sess := g.Oracle.Resolve(r.Context(), cred)
			if sess.Authenticated {
				http.Redirect(w, r, sess.LandingPath(), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
