package storefront

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

const (
	// OperatorPrefix marks query operators in the store's filter language.
	OperatorPrefix = "$"
	// FieldPathSeparator addresses nested fields in the store's filter language.
	FieldPathSeparator = "."

	// maxQueryDepth matches the nesting limit common query-string parsers apply
	// to bracket notation; deeper brackets stay part of the key.
	maxQueryDepth = 5
)

// Value is boundary input of unknown shape: a Scalar, a Sequence or a Mapping.
type Value interface {
	isValue()
}

// Scalar holds a string, float64, bool, json.Number or nil.
type Scalar struct {
	V any
}

// Sequence is an ordered list of values.
type Sequence []Value

// Mapping is a keyed set of values.
type Mapping map[string]Value

func (Scalar) isValue()   {}
func (Sequence) isValue() {}
func (Mapping) isValue()  {}

// String returns the scalar at key when it holds a string.
func (m Mapping) String(key string) (string, bool) {
	s, ok := m[key].(Scalar)
	if !ok {
		return "", false
	}
	str, ok := s.V.(string)
	return str, ok
}

// Has reports whether key is present, whatever its value.
func (m Mapping) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// IsNull reports whether key is present and explicitly null.
func (m Mapping) IsNull(key string) bool {
	s, ok := m[key].(Scalar)
	return ok && s.V == nil
}

// Sanitize returns a copy of v with every mapping key that starts with
// OperatorPrefix or contains FieldPathSeparator removed together with its
// value. Scalars pass through, sequences are cleaned element-wise.
func Sanitize(v Value) Value {
	switch t := v.(type) {
	case Mapping:
		return SanitizeMapping(t)
	case Sequence:
		out := make(Sequence, len(t))
		for i, e := range t {
			out[i] = Sanitize(e)
		}
		return out
	case Scalar:
		return t
	default:
		return Scalar{}
	}
}

// SanitizeMapping is Sanitize for a mapping root.
func SanitizeMapping(m Mapping) Mapping {
	out := make(Mapping, len(m))
	for k, e := range m {
		if IsUnsafeKey(k) {
			continue
		}
		out[k] = Sanitize(e)
	}
	return out
}

// IsUnsafeKey reports whether a key could be read by the store as an operator or a field path.
func IsUnsafeKey(k string) bool {
	return strings.HasPrefix(k, OperatorPrefix) || strings.Contains(k, FieldPathSeparator)
}

// FromAny converts decoded JSON (maps, slices and scalars) into a Value.
func FromAny(v any) Value {
	switch t := v.(type) {
	case map[string]any:
		m := make(Mapping, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return m
	case []any:
		s := make(Sequence, len(t))
		for i, e := range t {
			s[i] = FromAny(e)
		}
		return s
	case Value:
		return t
	default:
		return Scalar{V: t}
	}
}

// ToAny converts a Value back into plain maps, slices and scalars.
func ToAny(v Value) any {
	switch t := v.(type) {
	case Mapping:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = ToAny(e)
		}
		return m
	case Sequence:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = ToAny(e)
		}
		return s
	case Scalar:
		return t.V
	default:
		return nil
	}
}

// FromQuery parses query parameters into a Mapping, expanding bracket
// notation: "a[b]=1" becomes {a: {b: "1"}} and "a[]=1&a[]=2" becomes
// {a: ["1", "2"]}. A key repeated without brackets becomes a sequence.
// Conflicting shapes for the same key keep whichever arrived first.
func FromQuery(q url.Values) Mapping {
	root := Mapping{}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		vals := q[k]
		path := splitQueryKey(k)

		if path[len(path)-1] == "" {
			seq := make(Sequence, 0, len(vals))
			for _, v := range vals {
				seq = append(seq, Scalar{V: v})
			}
			insertQueryValue(root, path[:len(path)-1], seq, true)
			continue
		}

		var v Value
		if len(vals) == 1 {
			v = Scalar{V: vals[0]}
		} else {
			seq := make(Sequence, 0, len(vals))
			for _, s := range vals {
				seq = append(seq, Scalar{V: s})
			}
			v = seq
		}
		insertQueryValue(root, path, v, false)
	}

	return root
}

// splitQueryKey splits "a[b][c]" into ["a", "b", "c"]. Malformed brackets
// leave the key whole. A trailing "[]" yields a final empty segment.
func splitQueryKey(k string) []string {
	open := strings.IndexByte(k, '[')
	if open <= 0 || !strings.HasSuffix(k, "]") {
		return []string{k}
	}

	segments := []string{k[:open]}
	rest := k[open:]
	for rest != "" {
		if rest[0] != '[' {
			return []string{k}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{k}
		}
		if len(segments) > maxQueryDepth {
			segments[len(segments)-1] += rest
			break
		}
		segments = append(segments, rest[1:end])
		rest = rest[end+1:]
	}

	return segments
}

func insertQueryValue(root Mapping, path []string, v Value, appendSeq bool) {
	if len(path) == 0 {
		return
	}

	node := root
	for _, seg := range path[:len(path)-1] {
		next, ok := node[seg]
		if !ok {
			child := Mapping{}
			node[seg] = child
			node = child
			continue
		}
		child, ok := next.(Mapping)
		if !ok {
			return
		}
		node = child
	}

	last := path[len(path)-1]
	existing, ok := node[last]
	if !ok {
		node[last] = v
		return
	}

	if appendSeq {
		if seq, isSeq := existing.(Sequence); isSeq {
			if add, isAdd := v.(Sequence); isAdd {
				node[last] = append(seq, add...)
			}
		}
	}
}

// DecodeSanitized sanitizes v and decodes it into out, matching keys to json tags.
func DecodeSanitized(v Value, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return fmt.Errorf("decode sanitized: %w", err)
	}

	if err := decoder.Decode(ToAny(Sanitize(v))); err != nil {
		return fmt.Errorf("decode sanitized: %w: %w", ErrInvalidInput, err)
	}

	return nil
}
