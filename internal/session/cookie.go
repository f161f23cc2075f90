package session

import (
	"net/http"
	"strings"
	"time"

	"hp-booking/internal/token"
)

const CookieName = "auth-token"

type SecureMode int

const (
	// SecureAuto marks the cookie Secure when the request arrived over TLS,
	// or over a trusted proxy that reports https.
	SecureAuto SecureMode = iota
	SecureAlways
)

type CookieOptions struct {
	Secure SecureMode
	// TrustProxyHeaders honours X-Forwarded-Proto when deciding Secure.
	TrustProxyHeaders bool
	SameSite          http.SameSite
}

// CookieAdapter owns every write and clear of the session cookie so the
// attribute set cannot drift between handlers.
type CookieAdapter struct {
	opts CookieOptions
}

func NewCookieAdapter(opts CookieOptions) *CookieAdapter {
	if opts.SameSite == 0 || opts.SameSite == http.SameSiteDefaultMode {
		opts.SameSite = http.SameSiteStrictMode
	}
	return &CookieAdapter{opts: opts}
}

// WithSameSite returns a copy of the adapter that writes a different
// SameSite attribute.
func (a *CookieAdapter) WithSameSite(mode http.SameSite) *CookieAdapter {
	opts := a.opts
	opts.SameSite = mode
	return &CookieAdapter{opts: opts}
}

func (a *CookieAdapter) Write(w http.ResponseWriter, r *http.Request, value string) {
	cookie := a.base(r)
	cookie.Value = value
	cookie.MaxAge = int(token.SessionTTL.Seconds())
	http.SetCookie(w, cookie)
}

// Clear expires the cookie with the same attributes used by Write and
// disables caching of the response.
func (a *CookieAdapter) Clear(w http.ResponseWriter, r *http.Request) {
	cookie := a.base(r)
	cookie.Value = ""
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, cookie)

	DisableCaching(w)
}

func (a *CookieAdapter) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}

	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

func (a *CookieAdapter) base(r *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secure(r),
		SameSite: a.opts.SameSite,
	}
}

func (a *CookieAdapter) secure(r *http.Request) bool {
	if a.opts.Secure == SecureAlways {
		return true
	}
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if !a.opts.TrustProxyHeaders {
		return false
	}

	proto := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0])
	return strings.EqualFold(proto, "https")
}

func DisableCaching(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
