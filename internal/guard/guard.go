// Package guard gates page navigations on the session cookie and the role it
// carries. It runs before any page handler and never surfaces an error: every
// failure resolves to a redirect.
package guard

import (
	"net/http"
	"path"
	"strings"

	"hp-booking/internal/model"
	"hp-booking/internal/session"
	"hp-booking/internal/token"
)

const (
	LoginPath = "/login"
	AdminHome = "/admin"
	UserHome  = "/booking"
)

type Action string

const (
	ActionAllow    Action = "allow"
	ActionRedirect Action = "redirect"
)

type Decision struct {
	Action   Action
	Class    RouteClass
	Location string
	// ClearCookie is set when the presented session failed verification.
	ClearCookie bool
	Reason      string
}

type Verifier interface {
	Verify(token string) (token.Payload, error)
}

type Recorder interface {
	ObserveGuard(class string, action string)
}

type Guard struct {
	routes   *RouteTable
	verifier Verifier
	cookies  *session.CookieAdapter
	recorder Recorder
}

func New(routes *RouteTable, verifier Verifier, cookies *session.CookieAdapter, recorder Recorder) *Guard {
	if routes == nil {
		routes = DefaultRouteTable()
	}
	return &Guard{routes: routes, verifier: verifier, cookies: cookies, recorder: recorder}
}

// Decide evaluates the decision table for one navigation. cookie is the raw
// session cookie value; present reports whether one was sent.
func (g *Guard) Decide(requestPath string, cookie string, present bool) Decision {
	requestPath = cleanPath(requestPath)
	class := g.routes.Classify(requestPath)

	switch class {
	case ClassStaticAsset, ClassPWAAsset, ClassAPI:
		return Decision{Action: ActionAllow, Class: class, Reason: "bypass"}
	}

	if !present {
		if class == ClassPublic {
			return Decision{Action: ActionAllow, Class: class, Reason: "public"}
		}
		return redirect(class, LoginPath, "no session")
	}

	payload, err := g.verifier.Verify(cookie)
	if err != nil {
		decision := redirect(class, LoginPath, "invalid session")
		if class == ClassPublic {
			decision = Decision{Action: ActionAllow, Class: class, Reason: "invalid session on public page"}
		}
		decision.ClearCookie = true
		return decision
	}

	isAdmin := payload.Role == model.RoleAdmin
	switch {
	case isAdmin && class == ClassUserProtected:
		return redirect(class, AdminHome, "admin on user area")
	case !isAdmin && class == ClassAdminProtected:
		return redirect(class, UserHome, "user on admin area")
	case isAuthPage(requestPath):
		return redirect(class, payload.Role.HomePath(), "already authenticated")
	}

	return Decision{Action: ActionAllow, Class: class, Reason: "authorized"}
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value, present := g.cookies.Read(r)
		decision := g.Decide(r.URL.Path, value, present)

		if g.recorder != nil {
			g.recorder.ObserveGuard(string(decision.Class), string(decision.Action))
		}

		if decision.Class == ClassPWAAsset {
			applyPWAHeaders(w, r.URL.Path)
		}

		if decision.ClearCookie {
			g.cookies.Clear(w, r)
		}

		if decision.Action == ActionRedirect {
			http.Redirect(w, r, decision.Location, http.StatusTemporaryRedirect)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func redirect(class RouteClass, location string, reason string) Decision {
	return Decision{Action: ActionRedirect, Class: class, Location: location, Reason: reason}
}

func applyPWAHeaders(w http.ResponseWriter, requestPath string) {
	switch {
	case requestPath == "/manifest.json":
		w.Header().Set("Content-Type", "application/manifest+json")
	case strings.HasSuffix(requestPath, ".js"):
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	}
	w.Header().Set("Service-Worker-Allowed", "/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "/"
	}
	return cleaned
}
