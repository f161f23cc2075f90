package guard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRouteTableClassify(t *testing.T) {
	t.Parallel()

	table := DefaultRouteTable()
	cases := map[string]RouteClass{
		"/":                      ClassPublic,
		"/login":                 ClassPublic,
		"/register":              ClassPublic,
		"/booking":               ClassUserProtected,
		"/booking/new":           ClassUserProtected,
		"/profile":               ClassUserProtected,
		"/history":               ClassUserProtected,
		"/admin":                 ClassAdminProtected,
		"/admin/spareparts":      ClassAdminProtected,
		"/administrator":         ClassUserProtected,
		"/static/app.css":        ClassStaticAsset,
		"/_next/static/chunk.js": ClassStaticAsset,
		"/images/logo.png":       ClassStaticAsset,
		"/favicon.ico":           ClassStaticAsset,
		"/manifest.json":         ClassPWAAsset,
		"/sw.js":                 ClassPWAAsset,
		"/workbox-4f3a1b.js":     ClassPWAAsset,
		"/icons/icon-192.png":    ClassPWAAsset,
		"/api/audit":             ClassAPI,
		"/auth/login":            ClassAPI,
		"/health":                ClassAPI,
		"/metrics":               ClassAPI,
		"/unknown-page":          ClassUserProtected,
		"/loginx":                ClassUserProtected,
	}

	for path, want := range cases {
		require.Equal(t, want, table.Classify(path), path)
	}
}

func TestRouteTableFirstMatchWins(t *testing.T) {
	t.Parallel()

	table := NewRouteTable([]Rule{
		{Pattern: "/admin/public", Kind: MatchSegment, Class: ClassPublic},
		{Pattern: "/admin", Kind: MatchSegment, Class: ClassAdminProtected},
	}, ClassPublic)

	require.Equal(t, ClassPublic, table.Classify("/admin/public/info"))
	require.Equal(t, ClassAdminProtected, table.Classify("/admin/users"))
	require.Equal(t, ClassPublic, table.Classify("/elsewhere"))
}

func TestRouteTableCopiesRules(t *testing.T) {
	t.Parallel()

	rules := []Rule{{Pattern: "/x", Kind: MatchExact, Class: ClassAdminProtected}}
	table := NewRouteTable(rules, ClassPublic)
	rules[0].Class = ClassPublic

	require.Equal(t, ClassAdminProtected, table.Classify("/x"))
}
