package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/houseplant-tracker/internal/model"
)

// CookieName is the HttpOnly cookie that carries the session token.
const CookieName = "token"

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/login"

// Principal is the authenticated caller of a request.
type Principal struct {
	User      *model.User
	SessionID string
}

// IdentityResolver turns a raw token into the caller it belongs to. It must
// fail for forged or expired tokens and for sessions that were ended.
// service.AuthService implements it.
type IdentityResolver interface {
	CurrentIdentity(ctx context.Context, token string) (*Principal, error)
}

// contextKey is an unexported type used for context keys in this package.
// A package-private type means no other package can read or shadow the
// value by accident.
type contextKey string

const principalKey contextKey = "principal"

// RequireAuth is a middleware that enforces authentication on protected
// routes. When the cookie is missing or rejected the wrapped handler never
// runs:
//   - browsers (Accept: text/html) get 303 See Other to /login?next=<path>
//   - API clients get 401 with a JSON body whose "login" field is the same URL
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func RequireAuth(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := extractPrincipal(r, resolver)
			if err != nil {
				denyAnonymous(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// OptionalAuth attaches the principal when a valid token is present but lets
// anonymous requests through. The landing and login pages use it to redirect
// signed-in users.
func OptionalAuth(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, err := extractPrincipal(r, resolver); err == nil {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller, or (nil, false) for
// anonymous requests.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil && p.User != nil
}

// UserIDFromContext is a shorthand for handlers that only need the ID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", false
	}
	return p.User.ID, true
}

// LoginURL builds /login?next=<requestURI> for the given request.
func LoginURL(r *http.Request) string {
	return LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
}

// SafeNext returns next if it is a local absolute path, or "" otherwise.
// "//evil.example" and "/\evil.example" are rejected because browsers treat
// them as protocol-relative URLs.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return ""
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return next
}

// WantsHTML reports whether the client prefers an HTML response.
func WantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// SetTokenCookie stores the signed token in the HttpOnly cookie.
// HttpOnly keeps it away from JavaScript; SameSite=Lax keeps it off
// cross-site POSTs.
func SetTokenCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie tells the browser to drop the token cookie.
func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func denyAnonymous(w http.ResponseWriter, r *http.Request) {
	login := LoginURL(r)
	if WantsHTML(r) {
		http.Redirect(w, r, login, http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": "Please log in to access this page.",
		"login":   login,
	})
}

// extractPrincipal reads the token cookie and resolves it.
// http.ErrNoCookie simply means the request is anonymous.
func extractPrincipal(r *http.Request, resolver IdentityResolver) (*Principal, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, err
	}
	return resolver.CurrentIdentity(r.Context(), cookie.Value)
}
