// Package sqlite implements the storefront repositories using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sagarc03/storefront"
	"github.com/sagarc03/storefront/database/internal"
)

type scanner interface {
	Scan(dest ...any) error
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func parseTimes(dst []*time.Time, src ...string) error {
	for i, s := range src {
		t, err := internal.ParseTime(s)
		if err != nil {
			return err
		}
		*dst[i] = t
	}
	return nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storefront.ErrNotFound
	}
	return nil
}

const productColumns = `id, title, description, category, price, image_file_name, image_original_name, created_at, updated_at`

type productRepo struct {
	db     *sql.DB
	tables storefront.Tables
}

func scanProduct(row scanner) (storefront.Product, error) {
	var p storefront.Product
	var idStr, createdAt, updatedAt string
	var price sql.NullFloat64

	if err := row.Scan(&idStr, &p.Title, &p.Description, &p.Category, &price,
		&p.Image.FileName, &p.Image.OriginalName, &createdAt, &updatedAt); err != nil {
		return storefront.Product{}, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return storefront.Product{}, fmt.Errorf("parse uuid: %w", err)
	}
	p.ID = id

	if price.Valid {
		p.Price = &price.Float64
	}

	if err := parseTimes([]*time.Time{&p.CreatedAt, &p.UpdatedAt}, createdAt, updatedAt); err != nil {
		return storefront.Product{}, err
	}

	return p, nil
}

func (r *productRepo) Create(ctx context.Context, p storefront.Product) (storefront.Product, error) {
	now := time.Now().UTC()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		quoteIdentifier(r.tables.Products), productColumns)

	_, err := r.db.ExecContext(ctx, query,
		p.ID.String(), p.Title, p.Description, p.Category, nullFloat(p.Price),
		p.Image.FileName, p.Image.OriginalName, internal.FormatTime(now), internal.FormatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storefront.Product{}, fmt.Errorf("create product: %w: title already exists", storefront.ErrConflict)
		}
		return storefront.Product{}, fmt.Errorf("create product: %w", err)
	}

	return p, nil
}

func (r *productRepo) Get(ctx context.Context, id uuid.UUID) (storefront.Product, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = ?`, productColumns, quoteIdentifier(r.tables.Products))

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storefront.Product{}, storefront.ErrNotFound
		}
		return storefront.Product{}, fmt.Errorf("get product: %w", err)
	}

	return p, nil
}

func (r *productRepo) Update(ctx context.Context, p storefront.Product) (storefront.Product, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET title = ?, description = ?, category = ?, price = ?,
			image_file_name = ?, image_original_name = ?, updated_at = ?
		WHERE id = ?`, quoteIdentifier(r.tables.Products))

	result, err := r.db.ExecContext(ctx, query,
		p.Title, p.Description, p.Category, nullFloat(p.Price),
		p.Image.FileName, p.Image.OriginalName, internal.FormatTime(time.Now()), p.ID.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storefront.Product{}, fmt.Errorf("update product: %w: title already exists", storefront.ErrConflict)
		}
		return storefront.Product{}, fmt.Errorf("update product: %w", err)
	}

	if err := checkAffected(result); err != nil {
		return storefront.Product{}, fmt.Errorf("update product: %w", err)
	}

	return r.Get(ctx, p.ID)
}

func (r *productRepo) SetImage(ctx context.Context, id uuid.UUID, img storefront.Image) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET image_file_name = ?, image_original_name = ?, updated_at = ? WHERE id = ?`,
		quoteIdentifier(r.tables.Products))

	result, err := r.db.ExecContext(ctx, query, img.FileName, img.OriginalName, internal.FormatTime(time.Now()), id.String())
	if err != nil {
		return fmt.Errorf("set image: %w", err)
	}

	if err := checkAffected(result); err != nil {
		return fmt.Errorf("set image: %w", err)
	}

	return nil
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, quoteIdentifier(r.tables.Products)) //nolint:gosec // table name is validated

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if err := checkAffected(result); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	return nil
}

func (r *productRepo) List(ctx context.Context, spec storefront.FilterSpec) ([]storefront.Product, int, error) {
	q, err := internal.Build(internal.SQLite, internal.ProductEntity(r.tables), spec)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	table := quoteIdentifier(r.tables.Products)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, table, q.Where) //nolint:gosec // G201: built from whitelisted columns
	if err := r.db.QueryRowContext(ctx, countQuery, q.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list products: count: %w", err)
	}

	page, args := q.Page()
	query := fmt.Sprintf(`SELECT %s FROM %s%s%s%s`, productColumns, table, q.Where, q.OrderBy, page) //nolint:gosec // G201: built from whitelisted columns

	products, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	return products, total, nil
}

func (r *productRepo) ListImagePrefix(ctx context.Context, prefix string, after storefront.ProductCursor, limit int) ([]storefront.Product, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s
		WHERE image_file_name LIKE ? ESCAPE '\'
			AND (created_at, id) > (?, ?)
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, productColumns, quoteIdentifier(r.tables.Products))

	afterID := ""
	if after.ID != uuid.Nil {
		afterID = after.ID.String()
	}

	products, err := r.query(ctx, query, internal.EscapeLikePattern(prefix)+"%",
		internal.FormatTime(after.CreatedAt), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list image prefix: %w", err)
	}

	return products, nil
}

func (r *productRepo) query(ctx context.Context, query string, args ...any) ([]storefront.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []storefront.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

const customerColumns = `id, name, email, roles, total_amount, order_count, last_order_id, last_order_date, created_at, updated_at`

type customerRepo struct {
	db     *sql.DB
	tables storefront.Tables
}

func joinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

func splitRoles(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func scanCustomer(row scanner) (storefront.Customer, error) {
	var c storefront.Customer
	var idStr, roles, createdAt, updatedAt string
	var lastOrderID, lastOrderDate sql.NullString

	if err := row.Scan(&idStr, &c.Name, &c.Email, &roles, &c.TotalAmount, &c.OrderCount,
		&lastOrderID, &lastOrderDate, &createdAt, &updatedAt); err != nil {
		return storefront.Customer{}, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return storefront.Customer{}, fmt.Errorf("parse uuid: %w", err)
	}
	c.ID = id
	c.Roles = splitRoles(roles)

	if lastOrderID.Valid {
		orderID, err := uuid.Parse(lastOrderID.String)
		if err != nil {
			return storefront.Customer{}, fmt.Errorf("parse last order id: %w", err)
		}
		c.LastOrderID = &orderID
	}

	if lastOrderDate.Valid {
		t, err := internal.ParseTime(lastOrderDate.String)
		if err != nil {
			return storefront.Customer{}, err
		}
		c.LastOrderDate = &t
	}

	if err := parseTimes([]*time.Time{&c.CreatedAt, &c.UpdatedAt}, createdAt, updatedAt); err != nil {
		return storefront.Customer{}, err
	}

	return c, nil
}

func (r *customerRepo) Create(ctx context.Context, c storefront.Customer) (storefront.Customer, error) {
	now := time.Now().UTC()
	c.ID = uuid.New()
	c.TotalAmount = 0
	c.OrderCount = 0
	c.LastOrderID = nil
	c.LastOrderDate = nil
	c.CreatedAt = now
	c.UpdatedAt = now

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, name, email, roles, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		quoteIdentifier(r.tables.Customers))

	_, err := r.db.ExecContext(ctx, query,
		c.ID.String(), c.Name, c.Email, joinRoles(c.Roles), internal.FormatTime(now), internal.FormatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return storefront.Customer{}, fmt.Errorf("create customer: %w: email already registered", storefront.ErrConflict)
		}
		return storefront.Customer{}, fmt.Errorf("create customer: %w", err)
	}

	return c, nil
}

func (r *customerRepo) Get(ctx context.Context, id uuid.UUID) (storefront.Customer, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = ?`, customerColumns, quoteIdentifier(r.tables.Customers))

	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storefront.Customer{}, storefront.ErrNotFound
		}
		return storefront.Customer{}, fmt.Errorf("get customer: %w", err)
	}

	return c, nil
}

func (r *customerRepo) Update(ctx context.Context, c storefront.Customer) (storefront.Customer, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET name = ?, email = ?, roles = ?, updated_at = ? WHERE id = ?`,
		quoteIdentifier(r.tables.Customers))

	result, err := r.db.ExecContext(ctx, query,
		c.Name, c.Email, joinRoles(c.Roles), internal.FormatTime(time.Now()), c.ID.String())
	if err != nil {
		if isUniqueViolation(err) {
			return storefront.Customer{}, fmt.Errorf("update customer: %w: email already registered", storefront.ErrConflict)
		}
		return storefront.Customer{}, fmt.Errorf("update customer: %w", err)
	}

	if err := checkAffected(result); err != nil {
		return storefront.Customer{}, fmt.Errorf("update customer: %w", err)
	}

	return r.Get(ctx, c.ID)
}

func (r *customerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete customer: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ordersQuery := fmt.Sprintf(`DELETE FROM %s WHERE customer_id = ?`, quoteIdentifier(r.tables.Orders)) //nolint:gosec // table name is validated
	if _, err := tx.ExecContext(ctx, ordersQuery, id.String()); err != nil {
		return fmt.Errorf("delete customer: orders: %w", err)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, quoteIdentifier(r.tables.Customers)) //nolint:gosec // table name is validated
	result, err := tx.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete customer: commit: %w", err)
	}

	return nil
}

func (r *customerRepo) List(ctx context.Context, spec storefront.FilterSpec) ([]storefront.Customer, int, error) {
	q, err := internal.Build(internal.SQLite, internal.CustomerEntity(r.tables), spec)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}

	table := quoteIdentifier(r.tables.Customers)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, table, q.Where) //nolint:gosec // G201: built from whitelisted columns
	if err := r.db.QueryRowContext(ctx, countQuery, q.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list customers: count: %w", err)
	}

	page, args := q.Page()
	query := fmt.Sprintf(`SELECT %s FROM %s%s%s%s`, customerColumns, table, q.Where, q.OrderBy, page) //nolint:gosec // G201: built from whitelisted columns

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var customers []storefront.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list customers: scan: %w", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list customers: rows error: %w", err)
	}

	return customers, total, nil
}

func (r *customerRepo) RecordOrder(ctx context.Context, o storefront.Order) (storefront.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storefront.Order{}, fmt.Errorf("record order: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	o.ID = uuid.New()
	o.CreatedAt = now

	updateQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET total_amount = total_amount + ?, order_count = order_count + 1,
			last_order_id = ?, last_order_date = ?, updated_at = ?
		WHERE id = ?`, quoteIdentifier(r.tables.Customers))

	result, err := tx.ExecContext(ctx, updateQuery,
		o.Total, o.ID.String(), internal.FormatTime(now), internal.FormatTime(now), o.CustomerID.String())
	if err != nil {
		return storefront.Order{}, fmt.Errorf("record order: update customer: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return storefront.Order{}, fmt.Errorf("record order: %w", err)
	}

	numberQuery := fmt.Sprintf(`SELECT COALESCE(MAX(order_number), 0) + 1 FROM %s`, quoteIdentifier(r.tables.Orders)) //nolint:gosec // table name is validated
	if err := tx.QueryRowContext(ctx, numberQuery).Scan(&o.OrderNumber); err != nil {
		return storefront.Order{}, fmt.Errorf("record order: next number: %w", err)
	}

	insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, order_number, customer_id, delivery_address, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, quoteIdentifier(r.tables.Orders))

	if _, err := tx.ExecContext(ctx, insertQuery,
		o.ID.String(), o.OrderNumber, o.CustomerID.String(), o.DeliveryAddress, o.Total, internal.FormatTime(now)); err != nil {
		return storefront.Order{}, fmt.Errorf("record order: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storefront.Order{}, fmt.Errorf("record order: commit: %w", err)
	}

	return o, nil
}

const orderColumns = `id, order_number, customer_id, delivery_address, total, created_at`

func scanOrder(row scanner) (storefront.Order, error) {
	var o storefront.Order
	var idStr, customerID, createdAt string

	if err := row.Scan(&idStr, &o.OrderNumber, &customerID, &o.DeliveryAddress, &o.Total, &createdAt); err != nil {
		return storefront.Order{}, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return storefront.Order{}, fmt.Errorf("parse uuid: %w", err)
	}
	o.ID = id

	if o.CustomerID, err = uuid.Parse(customerID); err != nil {
		return storefront.Order{}, fmt.Errorf("parse customer id: %w", err)
	}

	if o.CreatedAt, err = internal.ParseTime(createdAt); err != nil {
		return storefront.Order{}, err
	}

	return o, nil
}

func (r *customerRepo) GetOrder(ctx context.Context, number int64) (storefront.Order, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE order_number = ?`, orderColumns, quoteIdentifier(r.tables.Orders))

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storefront.Order{}, storefront.ErrNotFound
		}
		return storefront.Order{}, fmt.Errorf("get order: %w", err)
	}

	return o, nil
}

func (r *customerRepo) ListOrders(ctx context.Context, spec storefront.FilterSpec) ([]storefront.Order, int, error) {
	q, err := internal.Build(internal.SQLite, internal.OrderEntity(r.tables), spec)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	table := quoteIdentifier(r.tables.Orders)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, table, q.Where) //nolint:gosec // G201: built from whitelisted columns
	if err := r.db.QueryRowContext(ctx, countQuery, q.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list orders: count: %w", err)
	}

	page, args := q.Page()
	query := fmt.Sprintf(`SELECT %s FROM %s%s%s%s`, orderColumns, table, q.Where, q.OrderBy, page) //nolint:gosec // G201: built from whitelisted columns

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []storefront.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list orders: scan: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list orders: rows error: %w", err)
	}

	return orders, total, nil
}
