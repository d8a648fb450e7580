package storefront

import (
	"context"
	"io"
	"io/fs"
	"time"

	"github.com/google/uuid"
)

// FileStorage defines the file operations the asset pipeline needs.
// Paths are slash-separated and relative to the asset root.
//
// All methods accept a context for cancellation and timeout control.
// Implementations should respect context cancellation during long-running
// copies and must never let a path escape the asset root.
type FileStorage interface {
	// Open opens a file for reading.
	//
	// Returns:
	//   - io.ReadSeekCloser: file content; the caller must close it
	//   - fs.FileInfo: size, modification time and directory flag
	//   - error: ErrNotFound if the path doesn't exist, ErrPathRejected if it
	//     resolves outside the root (for example through a symlink)
	Open(ctx context.Context, path string) (io.ReadSeekCloser, fs.FileInfo, error)

	// Stat returns file information without opening the file.
	//
	// Returns:
	//   - error: ErrNotFound if the path doesn't exist
	Stat(ctx context.Context, path string) (fs.FileInfo, error)

	// Write stores content at path, replacing any existing file.
	//
	// Implementations should:
	//   - Write to a temporary name and rename on completion
	//   - Remove partial writes when the context is cancelled
	//   - Create parent directories if they don't exist
	Write(ctx context.Context, path string, content io.Reader) (SaveResult, error)

	// Move renames src to dst, creating dst's parent directories.
	// When a rename is not possible it copies dst from src and then removes src.
	//
	// Returns:
	//   - error: ErrNotFound if src doesn't exist
	Move(ctx context.Context, src, dst string) error

	// Delete removes a file.
	//
	// Returns:
	//   - error: ErrNotFound if the file doesn't exist
	Delete(ctx context.Context, path string) error

	// EnsureDir creates a directory and its parents. An existing directory is not an error.
	EnsureDir(ctx context.Context, path string) error
}

// ProductRepo persists products.
//
// Implementations must translate a duplicate title into ErrConflict and a
// missing row into ErrNotFound.
type ProductRepo interface {
	// Create inserts p. ID and timestamps are assigned by the repo.
	Create(ctx context.Context, p Product) (Product, error)

	Get(ctx context.Context, id uuid.UUID) (Product, error)

	// Update replaces every mutable field of the product with p's values.
	Update(ctx context.Context, p Product) (Product, error)

	// SetImage repoints the product image, leaving other fields untouched.
	SetImage(ctx context.Context, id uuid.UUID, img Image) error

	Delete(ctx context.Context, id uuid.UUID) error

	// List returns one page of products matching spec and the total number of matches.
	//
	// Returns:
	//   - error: ErrInvalidInput if spec names a field the repo does not expose
	List(ctx context.Context, spec FilterSpec) ([]Product, int, error)

	// ListImagePrefix returns up to limit products whose image file name starts with prefix
	// and that sort after the cursor, oldest first.
	ListImagePrefix(ctx context.Context, prefix string, after ProductCursor, limit int) ([]Product, error)
}

// ProductCursor is a position in the (created_at, id) ordering of products.
// The zero cursor sorts before every product.
type ProductCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorOf returns the cursor positioned at p. Listing after it skips p.
func CursorOf(p Product) ProductCursor {
	return ProductCursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

// CustomerRepo persists customers and the orders that feed their aggregates.
type CustomerRepo interface {
	// Create inserts c. Returns ErrConflict if the email is already registered.
	Create(ctx context.Context, c Customer) (Customer, error)

	Get(ctx context.Context, id uuid.UUID) (Customer, error)

	// Update replaces name, email and roles.
	Update(ctx context.Context, c Customer) (Customer, error)

	// Delete removes the customer together with their orders.
	//
	// Returns:
	//   - error: ErrNotFound if the customer doesn't exist
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns one page of customers matching spec and the total number of matches.
	// A Search with Related matches resolves the related entity inside the store.
	List(ctx context.Context, spec FilterSpec) ([]Customer, int, error)

	// ListOrders returns one page of orders matching spec and the total number of matches.
	ListOrders(ctx context.Context, spec FilterSpec) ([]Order, int, error)

	// GetOrder returns the order with the given number.
	//
	// Returns:
	//   - error: ErrNotFound if no order has that number
	GetOrder(ctx context.Context, number int64) (Order, error)

	// RecordOrder inserts o and updates the customer's total amount, order
	// count and last order in the same transaction.
	//
	// Returns:
	//   - error: ErrNotFound if the customer doesn't exist
	RecordOrder(ctx context.Context, o Order) (Order, error)
}

// Repos bundles the repositories a metadata backend provides.
type Repos struct {
	Products  ProductRepo
	Customers CustomerRepo
}
