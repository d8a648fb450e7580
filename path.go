package storefront

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxDecodeRounds bounds repeated percent-decoding of a requested path.
// A path that still changes after this many rounds is rejected.
const maxDecodeRounds = 4

// ResolvePath resolves requested against root and returns the canonical
// absolute path. The result is always a strict descendant of root.
//
// The requested path is percent-decoded until it stops changing, stripped of
// NUL bytes and NFKC-normalized. Any ".." segment (with "/" or "\" as the
// separator) rejects the path before it is joined, and the joined path must
// start with the canonical root followed by the path separator. Every failure
// wraps ErrPathRejected; requesting the root itself is also rejected.
func ResolvePath(root, requested string) (string, error) {
	resolved, isRoot, err := resolve(root, requested)
	if err != nil {
		return "", err
	}
	if isRoot {
		return "", fmt.Errorf("resolve path: %w: path is the root itself", ErrPathRejected)
	}
	return resolved, nil
}

// CanonicalRoot returns the absolute, cleaned form of root.
func CanonicalRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("canonical root: %w: empty root", ErrInvalidInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("canonical root: %w", err)
	}
	return filepath.Clean(abs), nil
}

// resolve reports isRoot when the request canonicalizes to root itself, which
// callers serving files treat as "nothing here" rather than a rejection.
func resolve(root, requested string) (string, bool, error) {
	canonicalRoot, err := CanonicalRoot(root)
	if err != nil {
		return "", false, fmt.Errorf("resolve path: %w: %w", ErrPathRejected, err)
	}

	decoded, err := decodePath(requested)
	if err != nil {
		return "", false, fmt.Errorf("resolve path: %w: %w", ErrPathRejected, err)
	}

	decoded = strings.ReplaceAll(decoded, "\x00", "")
	decoded = norm.NFKC.String(decoded)

	if hasParentSegment(decoded) {
		return "", false, fmt.Errorf("resolve path: %w: parent directory segment", ErrPathRejected)
	}

	rel := filepath.FromSlash(strings.ReplaceAll(decoded, `\`, "/"))
	joined := filepath.Clean(filepath.Join(canonicalRoot, rel))

	if joined == canonicalRoot {
		return joined, true, nil
	}

	if !strings.HasPrefix(joined, canonicalRoot+string(os.PathSeparator)) {
		return "", false, fmt.Errorf("resolve path: %w: outside root", ErrPathRejected)
	}

	return joined, false, nil
}

func decodePath(p string) (string, error) {
	current := p
	for range maxDecodeRounds {
		next, err := url.PathUnescape(current)
		if err != nil {
			return "", fmt.Errorf("decode: %w", err)
		}
		if next == current {
			if !utf8.ValidString(current) {
				return "", fmt.Errorf("decode: invalid utf-8")
			}
			return current, nil
		}
		current = next
	}
	return "", fmt.Errorf("decode: too many encoding layers")
}

func hasParentSegment(p string) bool {
	segments := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	for _, s := range segments {
		if s == ".." {
			return true
		}
	}
	return false
}
