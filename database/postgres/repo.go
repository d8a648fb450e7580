// Package postgres implements the storefront repositories using PostgreSQL
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/storefront"
	"github.com/sagarc03/storefront/database/internal"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func quote(table string) string {
	return pgx.Identifier{table}.Sanitize()
}

const productColumns = `id, title, description, category, price, image_file_name, image_original_name, created_at, updated_at`

type productRepo struct {
	pool   *pgxpool.Pool
	tables storefront.Tables
}

func scanProduct(row pgx.Row) (storefront.Product, error) {
	var p storefront.Product
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.Price,
		&p.Image.FileName, &p.Image.OriginalName, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *productRepo) Create(ctx context.Context, p storefront.Product) (storefront.Product, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (title, description, category, price, image_file_name, image_original_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s
	`, quote(r.tables.Products), productColumns)

	created, err := scanProduct(r.pool.QueryRow(ctx, query,
		p.Title, p.Description, p.Category, p.Price, p.Image.FileName, p.Image.OriginalName))
	if err != nil {
		if isUniqueViolation(err) {
			return storefront.Product{}, fmt.Errorf("create product: %w: title already exists", storefront.ErrConflict)
		}
		return storefront.Product{}, fmt.Errorf("create product: %w", err)
	}

	return created, nil
}

func (r *productRepo) Get(ctx context.Context, id uuid.UUID) (storefront.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, productColumns, quote(r.tables.Products))

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storefront.Product{}, storefront.ErrNotFound
		}
		return storefront.Product{}, fmt.Errorf("get product: %w", err)
	}

	return p, nil
}

func (r *productRepo) Update(ctx context.Context, p storefront.Product) (storefront.Product, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1, description = $2, category = $3, price = $4,
			image_file_name = $5, image_original_name = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING %s
	`, quote(r.tables.Products), productColumns)

	updated, err := scanProduct(r.pool.QueryRow(ctx, query,
		p.Title, p.Description, p.Category, p.Price, p.Image.FileName, p.Image.OriginalName, p.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storefront.Product{}, storefront.ErrNotFound
		}
		if isUniqueViolation(err) {
			return storefront.Product{}, fmt.Errorf("update product: %w: title already exists", storefront.ErrConflict)
		}
		return storefront.Product{}, fmt.Errorf("update product: %w", err)
	}

	return updated, nil
}

func (r *productRepo) SetImage(ctx context.Context, id uuid.UUID, img storefront.Image) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET image_file_name = $1, image_original_name = $2, updated_at = NOW()
		WHERE id = $3
	`, quote(r.tables.Products))

	result, err := r.pool.Exec(ctx, query, img.FileName, img.OriginalName, id)
	if err != nil {
		return fmt.Errorf("set image: %w", err)
	}

	if result.RowsAffected() == 0 {
		return storefront.ErrNotFound
	}

	return nil
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, quote(r.tables.Products))

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if result.RowsAffected() == 0 {
		return storefront.ErrNotFound
	}

	return nil
}

func (r *productRepo) List(ctx context.Context, spec storefront.FilterSpec) ([]storefront.Product, int, error) {
	q, err := internal.Build(internal.Postgres, internal.ProductEntity(r.tables), spec)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	table := quote(r.tables.Products)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, table, q.Where)
	if err := r.pool.QueryRow(ctx, countQuery, q.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list products: count: %w", err)
	}

	page, args := q.Page()
	query := fmt.Sprintf(`SELECT %s FROM %s%s%s%s`, productColumns, table, q.Where, q.OrderBy, page)

	products, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}

	return products, total, nil
}

func (r *productRepo) ListImagePrefix(ctx context.Context, prefix string, after storefront.ProductCursor, limit int) ([]storefront.Product, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE image_file_name LIKE $1 ESCAPE '\'
			AND (created_at, id) > ($2, $3)
		ORDER BY created_at ASC, id ASC
		LIMIT $4
	`, productColumns, quote(r.tables.Products))

	products, err := r.query(ctx, query, internal.EscapeLikePattern(prefix)+"%", after.CreatedAt, after.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list image prefix: %w", err)
	}

	return products, nil
}

func (r *productRepo) query(ctx context.Context, query string, args ...any) ([]storefront.Product, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

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
	pool   *pgxpool.Pool
	tables storefront.Tables
}

func scanCustomer(row pgx.Row) (storefront.Customer, error) {
	var c storefront.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Roles, &c.TotalAmount, &c.OrderCount,
		&c.LastOrderID, &c.LastOrderDate, &c.CreatedAt, &c.UpdatedAt)
	if c.Roles == nil {
		c.Roles = []string{}
	}
	return c, err
}

func (r *customerRepo) Create(ctx context.Context, c storefront.Customer) (storefront.Customer, error) {
	roles := c.Roles
	if roles == nil {
		roles = []string{}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (name, email, roles)
		VALUES ($1, $2, $3)
		RETURNING %s
	`, quote(r.tables.Customers), customerColumns)

	created, err := scanCustomer(r.pool.QueryRow(ctx, query, c.Name, c.Email, roles))
	if err != nil {
		if isUniqueViolation(err) {
			return storefront.Customer{}, fmt.Errorf("create customer: %w: email already registered", storefront.ErrConflict)
		}
		return storefront.Customer{}, fmt.Errorf("create customer: %w", err)
	}

	return created, nil
}

func (r *customerRepo) Get(ctx context.Context, id uuid.UUID) (storefront.Customer, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, customerColumns, quote(r.tables.Customers))

	c, err := scanCustomer(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storefront.Customer{}, storefront.ErrNotFound
		}
		return storefront.Customer{}, fmt.Errorf("get customer: %w", err)
	}

	return c, nil
}

func (r *customerRepo) Update(ctx context.Context, c storefront.Customer) (storefront.Customer, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, email = $2, roles = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING %s
	`, quote(r.tables.Customers), customerColumns)

	updated, err := scanCustomer(r.pool.QueryRow(ctx, query, c.Name, c.Email, c.Roles, c.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storefront.Customer{}, storefront.ErrNotFound
		}
		if isUniqueViolation(err) {
			return storefront.Customer{}, fmt.Errorf("update customer: %w: email already registered", storefront.ErrConflict)
		}
		return storefront.Customer{}, fmt.Errorf("update customer: %w", err)
	}

	return updated, nil
}

func (r *customerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete customer: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE customer_id = $1`, quote(r.tables.Orders)), id); err != nil {
		return fmt.Errorf("delete customer: orders: %w", err)
	}

	result, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, quote(r.tables.Customers)), id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete customer: %w", storefront.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("delete customer: commit: %w", err)
	}

	return nil
}

func (r *customerRepo) List(ctx context.Context, spec storefront.FilterSpec) ([]storefront.Customer, int, error) {
	q, err := internal.Build(internal.Postgres, internal.CustomerEntity(r.tables), spec)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}

	table := quote(r.tables.Customers)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, table, q.Where)
	if err := r.pool.QueryRow(ctx, countQuery, q.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list customers: count: %w", err)
	}

	page, args := q.Page()
	query := fmt.Sprintf(`SELECT %s FROM %s%s%s%s`, customerColumns, table, q.Where, q.OrderBy, page)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: query: %w", err)
	}
	defer rows.Close()

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
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storefront.Order{}, fmt.Errorf("record order: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o.ID = uuid.New()

	updateQuery := fmt.Sprintf(`
		UPDATE %s
		SET total_amount = total_amount + $1, order_count = order_count + 1,
			last_order_id = $2, last_order_date = NOW(), updated_at = NOW()
		WHERE id = $3
	`, quote(r.tables.Customers))

	result, err := tx.Exec(ctx, updateQuery, o.Total, o.ID, o.CustomerID)
	if err != nil {
		return storefront.Order{}, fmt.Errorf("record order: update customer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storefront.Order{}, fmt.Errorf("record order: %w", storefront.ErrNotFound)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, customer_id, delivery_address, total)
		VALUES ($1, $2, $3, $4)
		RETURNING order_number, created_at
	`, quote(r.tables.Orders))

	if err := tx.QueryRow(ctx, insertQuery, o.ID, o.CustomerID, o.DeliveryAddress, o.Total).Scan(&o.OrderNumber, &o.CreatedAt); err != nil {
		return storefront.Order{}, fmt.Errorf("record order: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storefront.Order{}, fmt.Errorf("record order: commit: %w", err)
	}

	return o, nil
}

const orderColumns = `id, order_number, customer_id, delivery_address, total, created_at`

func scanOrder(row pgx.Row) (storefront.Order, error) {
	var o storefront.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.DeliveryAddress, &o.Total, &o.CreatedAt)
	return o, err
}

func (r *customerRepo) GetOrder(ctx context.Context, number int64) (storefront.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE order_number = $1`, orderColumns, quote(r.tables.Orders))

	o, err := scanOrder(r.pool.QueryRow(ctx, query, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storefront.Order{}, storefront.ErrNotFound
		}
		return storefront.Order{}, fmt.Errorf("get order: %w", err)
	}

	return o, nil
}

func (r *customerRepo) ListOrders(ctx context.Context, spec storefront.FilterSpec) ([]storefront.Order, int, error) {
	q, err := internal.Build(internal.Postgres, internal.OrderEntity(r.tables), spec)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	table := quote(r.tables.Orders)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, table, q.Where)
	if err := r.pool.QueryRow(ctx, countQuery, q.Args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list orders: count: %w", err)
	}

	page, args := q.Page()
	query := fmt.Sprintf(`SELECT %s FROM %s%s%s%s`, orderColumns, table, q.Where, q.OrderBy, page)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: query: %w", err)
	}
	defer rows.Close()

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
