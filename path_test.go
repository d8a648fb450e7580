package storefront_test

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sagarc03/storefront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	root := t.TempDir()

	tt := []struct {
		Name      string
		Requested string
		Want      string
		Rejected  bool
	}{
		{Name: "simple file", Requested: "logo.png", Want: "logo.png"},
		{Name: "leading slash", Requested: "/images/logo.png", Want: "images/logo.png"},
		{Name: "double slashes", Requested: "images//logo.png", Want: "images/logo.png"},
		{Name: "trailing slash", Requested: "images/", Want: "images"},
		{Name: "dot segment", Requested: "images/./logo.png", Want: "images/logo.png"},
		{Name: "encoded name", Requested: "images/my%20logo.png", Want: "images/my logo.png"},
		{Name: "three dots is a name", Requested: "images/.../x", Want: "images/.../x"},
		{Name: "dots inside name", Requested: "a..b.png", Want: "a..b.png"},
		{Name: "nul stripped", Requested: "logo.png%00", Want: "logo.png"},

		{Name: "parent segment", Requested: "../etc/passwd", Rejected: true},
		{Name: "parent in middle", Requested: "images/../../etc/passwd", Rejected: true},
		{Name: "parent that stays inside", Requested: "images/../logo.png", Rejected: true},
		{Name: "encoded slash", Requested: "..%2f..%2fetc%2fpasswd", Rejected: true},
		{Name: "encoded dots", Requested: "%2e%2e/etc/passwd", Rejected: true},
		{Name: "double encoded", Requested: "%252e%252e%252fetc", Rejected: true},
		{Name: "backslash separator", Requested: `..\..\etc\passwd`, Rejected: true},
		{Name: "encoded backslash", Requested: "..%5cetc", Rejected: true},
		{Name: "fullwidth dots", Requested: "．．/etc/passwd", Rejected: true},
		{Name: "fullwidth solidus", Requested: "..／etc", Rejected: true},
		{Name: "nul hiding parent", Requested: ".%00./etc", Rejected: true},
		{Name: "overlong utf8 slash", Requested: "..%c0%afetc", Rejected: true},
		{Name: "bad escape", Requested: "logo%zz.png", Rejected: true},
		{Name: "too many encoding layers", Requested: "%25252525252e", Rejected: true},
		{Name: "root itself", Requested: "", Rejected: true},
		{Name: "root via slash", Requested: "/", Rejected: true},
		{Name: "root via dot", Requested: "./", Rejected: true},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got, err := storefront.ResolvePath(root, tc.Requested)
			if tc.Rejected {
				assert.ErrorIs(t, err, storefront.ErrPathRejected)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tc.Want)), got)
		})
	}
}

func TestResolvePath_SiblingWithRootPrefix(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "www")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "www-evil"), 0o755))

	_, err := storefront.ResolvePath(root, "../www-evil/index.html")
	assert.ErrorIs(t, err, storefront.ErrPathRejected)
}

func TestResolvePath_RelativeRoot(t *testing.T) {
	got, err := storefront.ResolvePath("public", "images/a.png")
	require.NoError(t, err)

	abs, err := filepath.Abs("public")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(abs, "images", "a.png"), got)
}

func TestResolvePath_RandomTraversalEncodings(t *testing.T) {
	root := t.TempDir()
	rng := rand.New(rand.NewPCG(42, 1024))

	for i := range 500 {
		requested := randomTraversal(rng)
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			_, err := storefront.ResolvePath(root, requested)
			assert.ErrorIs(t, err, storefront.ErrPathRejected, "requested %q", requested)
		})
	}
}

func TestResolvePath_AcceptedPathsStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	rng := rand.New(rand.NewPCG(7, 99))
	alphabet := "abcdefghijklmnopqrstuvwxyz0123456789-_."

	for i := range 200 {
		var segments []string
		for range 1 + rng.IntN(4) {
			var b strings.Builder
			for range 1 + rng.IntN(8) {
				b.WriteByte(alphabet[rng.IntN(len(alphabet))])
			}
			segments = append(segments, b.String())
		}
		requested := strings.Join(segments, "/")

		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			got, err := storefront.ResolvePath(root, requested)
			if err != nil {
				assert.ErrorIs(t, err, storefront.ErrPathRejected)
				return
			}
			assert.True(t, strings.HasPrefix(got, root+string(os.PathSeparator)), "got %q", got)
		})
	}
}

// randomTraversal builds "../" with every character independently encoded
// in one of several ways, wrapped in random benign segments.
func randomTraversal(rng *rand.Rand) string {
	encodeDot := []func() string{
		func() string { return "." },
		func() string { return "%2e" },
		func() string { return "%2E" },
		func() string { return "%252e" },
		func() string { return "．" },
	}
	encodeSlash := []func() string{
		func() string { return "/" },
		func() string { return "%2f" },
		func() string { return "%2F" },
		func() string { return "%252f" },
		func() string { return `\` },
		func() string { return "%5c" },
		func() string { return "／" },
	}

	var b strings.Builder
	if rng.IntN(2) == 0 {
		b.WriteString("images/")
	}
	for range 1 + rng.IntN(3) {
		b.WriteString(encodeDot[rng.IntN(len(encodeDot))]())
		b.WriteString(encodeDot[rng.IntN(len(encodeDot))]())
		b.WriteString(encodeSlash[rng.IntN(len(encodeSlash))]())
	}
	b.WriteString("etc/passwd")
	return b.String()
}
