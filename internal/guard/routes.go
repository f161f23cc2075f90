package guard

import "strings"

type RouteClass string

const (
	ClassPublic         RouteClass = "public"
	ClassUserProtected  RouteClass = "user-protected"
	ClassAdminProtected RouteClass = "admin-protected"
	ClassStaticAsset    RouteClass = "static-asset"
	ClassPWAAsset       RouteClass = "pwa-asset"
	ClassAPI            RouteClass = "api"
)

type MatchKind int

const (
	// MatchExact matches the path literally.
	MatchExact MatchKind = iota
	// MatchSegment matches the path or any path below it: "/admin" matches
	// "/admin/users" but not "/administrator".
	MatchSegment
	// MatchPrefix is a raw string prefix.
	MatchPrefix
)

type Rule struct {
	Pattern string
	Kind    MatchKind
	Class   RouteClass
}

func (r Rule) Matches(path string) bool {
	switch r.Kind {
	case MatchExact:
		return path == r.Pattern
	case MatchSegment:
		return path == r.Pattern || strings.HasPrefix(path, strings.TrimSuffix(r.Pattern, "/")+"/")
	default:
		return strings.HasPrefix(path, r.Pattern)
	}
}

// RouteTable classifies request paths. The first matching rule wins.
type RouteTable struct {
	rules    []Rule
	fallback RouteClass
}

func NewRouteTable(rules []Rule, fallback RouteClass) *RouteTable {
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &RouteTable{rules: copied, fallback: fallback}
}

// DefaultRules is the fixed classification of the booking site.
var DefaultRules = []Rule{
	{Pattern: "/static/", Kind: MatchPrefix, Class: ClassStaticAsset},
	{Pattern: "/_next/", Kind: MatchPrefix, Class: ClassStaticAsset},
	{Pattern: "/images/", Kind: MatchPrefix, Class: ClassStaticAsset},
	{Pattern: "/favicon.ico", Kind: MatchExact, Class: ClassStaticAsset},

	{Pattern: "/manifest.json", Kind: MatchExact, Class: ClassPWAAsset},
	{Pattern: "/sw.js", Kind: MatchExact, Class: ClassPWAAsset},
	{Pattern: "/workbox-", Kind: MatchPrefix, Class: ClassPWAAsset},
	{Pattern: "/icons/", Kind: MatchPrefix, Class: ClassPWAAsset},

	{Pattern: "/api", Kind: MatchSegment, Class: ClassAPI},
	{Pattern: "/auth", Kind: MatchSegment, Class: ClassAPI},
	{Pattern: "/health", Kind: MatchExact, Class: ClassAPI},
	{Pattern: "/metrics", Kind: MatchExact, Class: ClassAPI},

	{Pattern: "/", Kind: MatchExact, Class: ClassPublic},
	{Pattern: "/login", Kind: MatchSegment, Class: ClassPublic},
	{Pattern: "/register", Kind: MatchSegment, Class: ClassPublic},

	{Pattern: "/admin", Kind: MatchSegment, Class: ClassAdminProtected},

	{Pattern: "/booking", Kind: MatchSegment, Class: ClassUserProtected},
	{Pattern: "/profile", Kind: MatchSegment, Class: ClassUserProtected},
	{Pattern: "/history", Kind: MatchSegment, Class: ClassUserProtected},
}

func DefaultRouteTable() *RouteTable {
	return NewRouteTable(DefaultRules, ClassUserProtected)
}

func (t *RouteTable) Classify(path string) RouteClass {
	if path == "" {
		path = "/"
	}
	for _, rule := range t.rules {
		if rule.Matches(path) {
			return rule.Class
		}
	}
	return t.fallback
}

func isAuthPage(path string) bool {
	return path == "/login" || path == "/register"
}
