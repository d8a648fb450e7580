package storefront

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxSearchLength is the longest free-text search accepted by list endpoints.
const MaxSearchLength = 50

// SortDirection is the order of a list sort.
type SortDirection int

const (
	Descending SortDirection = iota
	Ascending
)

func (d SortDirection) String() string {
	if d == Ascending {
		return "asc"
	}
	return "desc"
}

// RangeKind selects how range bounds are parsed.
type RangeKind int

const (
	RangeNumber RangeKind = iota
	RangeDate
)

// Bounds holds an inclusive range on one field. Upper date bounds are moved
// to the last millisecond of their day. Gte and Lte are nil when the side
// is open, a float64 for numeric ranges and a time.Time for date ranges.
type Bounds struct {
	Gte any
	Lte any
}

// RelatedMatch matches Field against the IDs of RelatedEntity rows whose
// MatchField matches the search pattern.
type RelatedMatch struct {
	Field         string
	RelatedEntity string
	MatchField    string
}

// Search is a case-insensitive pattern applied to Fields and Related,
// any one of which may match.
type Search struct {
	// Pattern is already regex-escaped.
	Pattern string
	Fields  []string
	Related []RelatedMatch
}

// FilterSpec is the bounded, whitelisted form of a list request.
type FilterSpec struct {
	Ranges        map[string]Bounds
	Search        *Search
	SortField     string
	SortDirection SortDirection
	Page          int
	PageSize      int
}

// Offset is the number of rows skipped before the current page.
func (f FilterSpec) Offset() int64 {
	return int64(f.Page-1) * int64(f.PageSize)
}

// RangeFilter exposes Field through the <Param>From and <Param>To query parameters.
type RangeFilter struct {
	Param string
	Field string
	Kind  RangeKind
}

// ListEndpoint describes what a list endpoint lets clients filter and sort by.
type ListEndpoint struct {
	DefaultPageSize int
	MaxPageSize     int
	SortFields      []string
	DefaultSort     string
	Ranges          []RangeFilter
	SearchFields    []string
	SearchRelated   []RelatedMatch
}

var (
	// CustomerListing backs GET /customers.
	CustomerListing = ListEndpoint{
		DefaultPageSize: 10,
		MaxPageSize:     10,
		SortFields:      []string{"createdAt", "totalAmount", "orderCount", "name"},
		DefaultSort:     "createdAt",
		Ranges: []RangeFilter{
			{Param: "registrationDate", Field: "createdAt", Kind: RangeDate},
			{Param: "lastOrderDate", Field: "lastOrderDate", Kind: RangeDate},
			{Param: "totalAmount", Field: "totalAmount", Kind: RangeNumber},
			{Param: "orderCount", Field: "orderCount", Kind: RangeNumber},
		},
		SearchFields: []string{"name"},
		SearchRelated: []RelatedMatch{
			{Field: "lastOrder", RelatedEntity: "orders", MatchField: "deliveryAddress"},
		},
	}

	// ProductListing backs GET /products.
	ProductListing = ListEndpoint{
		DefaultPageSize: 5,
		MaxPageSize:     50,
		SortFields:      []string{"createdAt", "title", "price", "category"},
		DefaultSort:     "createdAt",
		Ranges: []RangeFilter{
			{Param: "price", Field: "price", Kind: RangeNumber},
			{Param: "createdAt", Field: "createdAt", Kind: RangeDate},
		},
		SearchFields: []string{"title", "category"},
	}

	// OrderListing backs GET /orders.
	OrderListing = ListEndpoint{
		DefaultPageSize: 10,
		MaxPageSize:     10,
		SortFields:      []string{"createdAt", "totalAmount", "orderNumber"},
		DefaultSort:     "createdAt",
		Ranges: []RangeFilter{
			{Param: "orderDate", Field: "createdAt", Kind: RangeDate},
			{Param: "totalAmount", Field: "totalAmount", Kind: RangeNumber},
		},
		SearchFields: []string{"deliveryAddress"},
		SearchRelated: []RelatedMatch{
			{Field: "customer", RelatedEntity: "customers", MatchField: "name"},
		},
	}
)

// Build narrows q into a FilterSpec. It never fails: unusable parameters
// fall back to the endpoint defaults or are dropped.
func (e ListEndpoint) Build(q Mapping) FilterSpec {
	spec := FilterSpec{
		Ranges:        map[string]Bounds{},
		SortField:     e.DefaultSort,
		SortDirection: Descending,
		Page:          1,
		PageSize:      e.DefaultPageSize,
	}

	if page, ok := intParam(q, "page"); ok {
		spec.Page = int(max(1, min(page, math.MaxInt32)))
	}

	if size, ok := intParam(q, "limit"); ok {
		spec.PageSize = int(max(1, min(size, int64(e.MaxPageSize))))
	}
	spec.PageSize = max(1, min(spec.PageSize, e.MaxPageSize))

	if field, ok := q.String("sortField"); ok && slices.Contains(e.SortFields, field) {
		spec.SortField = field
	}

	if order, ok := q.String("sortOrder"); ok && order == "asc" {
		spec.SortDirection = Ascending
	}

	for _, r := range e.Ranges {
		b := spec.Ranges[r.Field]
		if v, ok := rangeParam(q, r.Param+"From", r.Kind, false); ok {
			b.Gte = v
		}
		if v, ok := rangeParam(q, r.Param+"To", r.Kind, true); ok {
			b.Lte = v
		}
		if b.Gte != nil || b.Lte != nil {
			spec.Ranges[r.Field] = b
		}
	}

	if search, ok := q.String("search"); ok && search != "" && utf8.RuneCountInString(search) <= MaxSearchLength {
		if len(e.SearchFields) > 0 || len(e.SearchRelated) > 0 {
			spec.Search = &Search{
				Pattern: EscapeRegex(search),
				Fields:  e.SearchFields,
				Related: e.SearchRelated,
			}
		}
	}

	return spec
}

var regexMeta = regexp.MustCompile(`[.*+?^${}()|[\]\\]`)

// EscapeRegex escapes regular expression metacharacters so text matches literally.
func EscapeRegex(text string) string {
	return regexMeta.ReplaceAllString(text, `\$0`)
}

// intParam reads a numeric query parameter and floors it. Non-numeric,
// NaN and infinite values are reported as absent.
func intParam(q Mapping, key string) (int64, bool) {
	s, ok := q.String(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Floor(f)
	if f > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if f < math.MinInt32 {
		return math.MinInt32, true
	}
	return int64(f), true
}

func rangeParam(q Mapping, key string, kind RangeKind, upper bool) (any, bool) {
	s, ok := q.String(key)
	if !ok || strings.TrimSpace(s) == "" {
		return nil, false
	}
	s = strings.TrimSpace(s)

	switch kind {
	case RangeNumber:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	case RangeDate:
		t, ok := parseDate(s)
		if !ok {
			return nil, false
		}
		if upper {
			t = endOfDay(t)
		}
		return t, true
	default:
		return nil, false
	}
}

// parseDate accepts a calendar date or an RFC 3339 timestamp, in UTC.
func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}
