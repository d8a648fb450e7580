package storefront

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Image references an uploaded file by its location under the asset root.
type Image struct {
	FileName     string `json:"fileName" validate:"required,max=100"`
	OriginalName string `json:"originalName" validate:"max=100"`
}

// Product is a catalog entry with its image reference.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       *float64  `json:"price"`
	Image       Image     `json:"image"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Customer is a registered buyer with running order aggregates.
type Customer struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Roles         []string   `json:"roles"`
	TotalAmount   float64    `json:"totalAmount"`
	OrderCount    int        `json:"orderCount"`
	LastOrderID   *uuid.UUID `json:"lastOrder,omitempty"`
	LastOrderDate *time.Time `json:"lastOrderDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Order is a recorded purchase. OrderNumber is sequential from 1.
type Order struct {
	ID              uuid.UUID `json:"id"`
	OrderNumber     int64     `json:"orderNumber"`
	CustomerID      uuid.UUID `json:"customer"`
	DeliveryAddress string    `json:"deliveryAddress"`
	Total           float64   `json:"totalAmount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Pagination describes the window a list response covers.
type Pagination struct {
	Total       int `json:"total"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
}

// NewPagination computes the page count for total items split into pages of spec.PageSize.
func NewPagination(total int, spec FilterSpec) Pagination {
	totalPages := 0
	if spec.PageSize > 0 {
		totalPages = (total + spec.PageSize - 1) / spec.PageSize
	}
	return Pagination{
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: spec.Page,
		PageSize:    spec.PageSize,
	}
}

// Page is one window of a list response.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// StagedFile is an accepted upload waiting under the temporary subtree.
type StagedFile struct {
	TemporaryName        string `json:"temporaryName"`
	MimeType             string `json:"mimeType"`
	SizeBytes            int64  `json:"sizeBytes"`
	DeclaredOriginalName string `json:"declaredOriginalName"`
	// Location is the slash path relative to the asset root, e.g. "/temp/<name>".
	Location string `json:"location"`
}

// PromotedAsset is a file that has been moved into the permanent subtree.
type PromotedAsset struct {
	PermanentName string `json:"permanentName"`
	Location      string `json:"location"`
}

// Asset is an open file found under the asset root.
type Asset struct {
	Name        string
	ContentType string
	Size        int64
	ModTime     time.Time
	Content     io.ReadSeekCloser
}

// SaveResult reports how many bytes a storage write persisted.
type SaveResult struct {
	BytesWritten int64
}

// Tables holds configurable table names for the metadata store.
type Tables struct {
	Products  string `mapstructure:"products" yaml:"products"`
	Customers string `mapstructure:"customers" yaml:"customers"`
	Orders    string `mapstructure:"orders" yaml:"orders"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	names := []struct {
		kind, name string
	}{
		{"products", t.Products},
		{"customers", t.Customers},
		{"orders", t.Orders},
	}

	seen := make(map[string]string, len(names))
	for _, n := range names {
		if n.name == "" {
			return errors.New("validate tables: " + n.kind + " table name cannot be empty")
		}
		if !IsValidTableName(n.name) {
			return fmt.Errorf("validate tables: invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", n.kind, n.name)
		}
		if other, ok := seen[n.name]; ok {
			return fmt.Errorf("validate tables: %s and %s share table name %s", other, n.kind, n.name)
		}
		seen[n.name] = n.kind
	}

	return nil
}
