package sqlite

import (
	"database/sql/driver"
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	msqlite "modernc.org/sqlite"
)

const maxCachedPatterns = 128

// patternCache holds compiled search patterns, keyed by the raw pattern.
var patternCache = mustPatternCache(maxCachedPatterns)

func mustPatternCache(size int) *lru.Cache[string, *regexp.Regexp] {
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		panic(fmt.Sprintf("regexp: pattern cache: %v", err))
	}
	return c
}

func init() {
	// X REGEXP Y calls regexp(Y, X).
	msqlite.MustRegisterDeterministicScalarFunction("regexp", 2, regexpMatch)
}

func regexpMatch(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, ok := textArg(args[0])
	if !ok {
		return nil, fmt.Errorf("regexp: pattern must be text")
	}
	value, ok := textArg(args[1])
	if !ok {
		return int64(0), nil
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	if re.MatchString(value) {
		return int64(1), nil
	}
	return int64(0), nil
}

func textArg(v driver.Value) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}

// compilePattern returns the case-insensitive form of pattern, compiling it
// at most once while it stays in the cache.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Get(pattern); ok {
		return re, nil
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("regexp: %w", err)
	}
	patternCache.Add(pattern, re)
	return re, nil
}
