package internal

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sagarc03/storefront"
)

// Dialect captures what differs between the SQL backends when rendering a
// FilterSpec.
type Dialect struct {
	// Placeholder returns the bind marker for the n-th argument (1-based).
	Placeholder func(n int) string
	// RegexOp is the case-insensitive regular expression match operator.
	RegexOp string
	// Value converts a bound value into the form the driver stores.
	Value func(v any) any
	// NumberCast is appended to numeric range placeholders so integer
	// columns compare against fractional bounds.
	NumberCast string
}

// SQLite renders ? placeholders and stores times as fixed-width text.
var SQLite = Dialect{
	Placeholder: func(int) string { return "?" },
	RegexOp:     "REGEXP",
	Value: func(v any) any {
		if t, ok := v.(time.Time); ok {
			return FormatTime(t)
		}
		return v
	},
}

// Postgres renders numbered placeholders and uses the ~* regex operator.
var Postgres = Dialect{
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	RegexOp:     "~*",
	Value:       func(v any) any { return v },
	NumberCast:  "::double precision",
}

// TimeLayout is the fixed-width UTC layout SQLite stores timestamps in, so
// that text comparison orders them chronologically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a stored timestamp back as UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Relation is a table a search can reach through a foreign key column.
type Relation struct {
	Table   string
	Columns map[string]string
}

// Entity maps the API field names of one table to its columns. Only fields
// listed here can appear in a generated query.
type Entity struct {
	Table     string
	Columns   map[string]string
	Relations map[string]Relation
}

// ProductEntity lists the product fields a query may use.
func ProductEntity(tables storefront.Tables) Entity {
	return Entity{
		Table: tables.Products,
		Columns: map[string]string{
			"createdAt": "created_at",
			"title":     "title",
			"price":     "price",
			"category":  "category",
		},
	}
}

// CustomerEntity lists the customer fields a query may use, plus the
// orders relation searched by delivery address.
func CustomerEntity(tables storefront.Tables) Entity {
	return Entity{
		Table: tables.Customers,
		Columns: map[string]string{
			"createdAt":     "created_at",
			"name":          "name",
			"totalAmount":   "total_amount",
			"orderCount":    "order_count",
			"lastOrder":     "last_order_id",
			"lastOrderDate": "last_order_date",
		},
		Relations: map[string]Relation{
			"orders": {
				Table:   tables.Orders,
				Columns: map[string]string{"deliveryAddress": "delivery_address"},
			},
		},
	}
}

// OrderEntity lists the order fields a query may use, plus the customers
// relation searched by name.
func OrderEntity(tables storefront.Tables) Entity {
	return Entity{
		Table: tables.Orders,
		Columns: map[string]string{
			"createdAt":       "created_at",
			"orderNumber":     "order_number",
			"totalAmount":     "total",
			"deliveryAddress": "delivery_address",
			"customer":        "customer_id",
		},
		Relations: map[string]Relation{
			"customers": {
				Table:   tables.Customers,
				Columns: map[string]string{"name": "name"},
			},
		},
	}
}

// Query is a rendered FilterSpec. Where and OrderBy are either empty or
// start with a space, ready to be appended to a SELECT.
type Query struct {
	Where   string
	OrderBy string
	Args    []any

	dialect Dialect
	limit   int
	offset  int64
}

// Page returns the LIMIT/OFFSET clause and the full argument list for the
// page query.
func (q Query) Page() (string, []any) {
	n := len(q.Args)
	clause := fmt.Sprintf(" LIMIT %s OFFSET %s", q.dialect.Placeholder(n+1), q.dialect.Placeholder(n+2))
	return clause, append(slices.Clone(q.Args), q.limit, q.offset)
}

type builder struct {
	d    Dialect
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, b.d.Value(v))
	return b.d.Placeholder(len(b.args))
}

func (b *builder) bindBound(v any) string {
	ph := b.bind(v)
	if _, ok := v.(float64); ok {
		ph += b.d.NumberCast
	}
	return ph
}

// Build renders spec against e.
//
// Returns:
//   - error: storefront.ErrInvalidInput if spec references a field e does not expose
func Build(d Dialect, e Entity, spec storefront.FilterSpec) (Query, error) {
	b := &builder{d: d}
	var conds []string

	fields := make([]string, 0, len(spec.Ranges))
	for field := range spec.Ranges {
		fields = append(fields, field)
	}
	slices.Sort(fields)

	for _, field := range fields {
		col, ok := e.Columns[field]
		if !ok {
			return Query{}, fmt.Errorf("build query: %w: unknown filter field %s", storefront.ErrInvalidInput, field)
		}
		bounds := spec.Ranges[field]
		if bounds.Gte != nil {
			conds = append(conds, col+" >= "+b.bindBound(bounds.Gte))
		}
		if bounds.Lte != nil {
			conds = append(conds, col+" <= "+b.bindBound(bounds.Lte))
		}
	}

	if spec.Search != nil {
		cond, err := b.search(e, spec.Search)
		if err != nil {
			return Query{}, err
		}
		if cond != "" {
			conds = append(conds, cond)
		}
	}

	q := Query{dialect: d, limit: spec.PageSize, offset: spec.Offset()}
	if len(conds) > 0 {
		q.Where = " WHERE " + strings.Join(conds, " AND ")
	}
	q.Args = b.args

	if spec.SortField != "" {
		col, ok := e.Columns[spec.SortField]
		if !ok {
			return Query{}, fmt.Errorf("build query: %w: unknown sort field %s", storefront.ErrInvalidInput, spec.SortField)
		}
		dir := "DESC"
		if spec.SortDirection == storefront.Ascending {
			dir = "ASC"
		}
		q.OrderBy = fmt.Sprintf(" ORDER BY %s %s, id ASC", col, dir)
	}

	return q, nil
}

func (b *builder) search(e Entity, s *storefront.Search) (string, error) {
	var alts []string

	for _, field := range s.Fields {
		col, ok := e.Columns[field]
		if !ok {
			return "", fmt.Errorf("build query: %w: unknown search field %s", storefront.ErrInvalidInput, field)
		}
		alts = append(alts, fmt.Sprintf("%s %s %s", col, b.d.RegexOp, b.bind(s.Pattern)))
	}

	for _, rel := range s.Related {
		col, ok := e.Columns[rel.Field]
		if !ok {
			return "", fmt.Errorf("build query: %w: unknown search field %s", storefront.ErrInvalidInput, rel.Field)
		}
		related, ok := e.Relations[rel.RelatedEntity]
		if !ok {
			return "", fmt.Errorf("build query: %w: unknown related entity %s", storefront.ErrInvalidInput, rel.RelatedEntity)
		}
		matchCol, ok := related.Columns[rel.MatchField]
		if !ok {
			return "", fmt.Errorf("build query: %w: unknown related field %s", storefront.ErrInvalidInput, rel.MatchField)
		}
		alts = append(alts, fmt.Sprintf("%s IN (SELECT id FROM %s WHERE %s %s %s)",
			col, QuoteIdentifier(related.Table), matchCol, b.d.RegexOp, b.bind(s.Pattern)))
	}

	if len(alts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(alts, " OR ") + ")", nil
}

// QuoteIdentifier quotes a validated table name. Both backends accept
// double-quoted identifiers.
func QuoteIdentifier(name string) string {
	return `"` + name + `"`
}
