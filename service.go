package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Promoter moves staged uploads into the permanent asset subtree.
//
// Implementations must make Promote idempotent: promoting a file that has
// already been promoted succeeds with the same PromotedAsset.
type Promoter interface {
	// Promote moves a staged file into the permanent subtree.
	//
	// Returns:
	//   - error: ErrInvalidInput if the staged name is malformed,
	//     ErrPromotionFailed if the move fails
	Promote(ctx context.Context, staged StagedFile) (PromotedAsset, error)

	// ParseStagedReference converts a client supplied image location into a
	// StagedFile and reports whether it still awaits promotion.
	ParseStagedReference(ref string) (StagedFile, bool, error)

	// PendingPrefix is the location prefix shared by every unpromoted image.
	PendingPrefix() string
}

// ProductInput is the body accepted when creating a product.
type ProductInput struct {
	Title       string   `json:"title" validate:"required,min=2,max=30"`
	Description string   `json:"description" validate:"max=1000"`
	Category    string   `json:"category" validate:"required,max=50"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Image       Image    `json:"image"`
}

// ProductPatch changes the fields that are set. ClearPrice removes the price.
type ProductPatch struct {
	Title       *string  `json:"title" validate:"omitempty,min=2,max=30"`
	Description *string  `json:"description" validate:"omitempty,max=1000"`
	Category    *string  `json:"category" validate:"omitempty,min=1,max=50"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Image       *Image   `json:"image"`
	ClearPrice  bool     `json:"-"`
}

// CustomerInput is the body accepted when registering a customer.
type CustomerInput struct {
	Name  string   `json:"name" validate:"required,min=2,max=30"`
	Email string   `json:"email" validate:"required,email,max=254"`
	Roles []string `json:"roles" validate:"dive,oneof=customer admin"`
}

// CustomerPatch changes the customer fields that are non-nil.
type CustomerPatch struct {
	Name  *string  `json:"name" validate:"omitempty,min=2,max=30"`
	Email *string  `json:"email" validate:"omitempty,email,max=254"`
	Roles []string `json:"roles" validate:"omitempty,dive,oneof=customer admin"`
}

// OrderInput is the body accepted when recording an order.
type OrderInput struct {
	DeliveryAddress string  `json:"deliveryAddress" validate:"required,max=200"`
	Total           float64 `json:"totalAmount" validate:"gte=0"`
}

// CatalogService applies validation and persist-then-promote ordering
// to product, customer and order writes.
type CatalogService struct {
	products       ProductRepo
	customers      CustomerRepo
	promoter       Promoter
	validate       *validator.Validate
	cleanupTimeout time.Duration
}

// ServiceConfig holds configuration options for CatalogService.
type ServiceConfig struct {
	CleanupTimeout time.Duration // Timeout for promotion after the request is gone (default: 30s)
}

// NewCatalogService wires the repos and promoter into a CatalogService.
func NewCatalogService(products ProductRepo, customers CustomerRepo, promoter Promoter, cfg ServiceConfig) (*CatalogService, error) {
	if products == nil || customers == nil || promoter == nil {
		return nil, fmt.Errorf("new catalog service: %w: repos and promoter are required", ErrInvalidInput)
	}
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	return &CatalogService{
		products:       products,
		customers:      customers,
		promoter:       promoter,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		cleanupTimeout: cleanupTimeout,
	}, nil
}

// CreateProduct validates in, persists the product and then promotes its image.
//
// The method performs the following steps:
//  1. Validates the input and the staged image reference
//  2. Creates the product, still pointing at the temporary image location
//  3. Promotes the image
//  4. Repoints the product at the permanent location
//
// Steps 3 and 4 run on a context detached from ctx, bounded by the cleanup
// timeout, so a client disconnect cannot leave a moved file behind an
// unrepointed record. If persisting fails nothing is promoted.
//
// Returns:
//   - Product: the stored product; also returned alongside ErrPromotionFailed
//   - error: ErrInvalidInput, ErrConflict on a duplicate title, or
//     ErrPromotionFailed when the record exists but its image is still staged
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}

	if err := s.check(in); err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}

	staged, pending, err := s.promoter.ParseStagedReference(in.Image.FileName)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}

	p, err := s.products.Create(ctx, Product{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		Image:       Image{FileName: staged.Location, OriginalName: in.Image.OriginalName},
	})
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}

	if !pending {
		return p, nil
	}

	p, err = s.promoteImage(ctx, p, staged)
	if err != nil {
		return p, fmt.Errorf("create product %s: %w", p.ID, err)
	}
	return p, nil
}

// UpdateProduct applies patch to the product. A new staged image is promoted
// after the update is stored, in the same order as CreateProduct.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}

	if err := s.check(patch); err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}

	current, err := s.products.Get(ctx, id)
	if err != nil {
		return Product{}, fmt.Errorf("update product %s: %w", id, err)
	}

	next := current
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Category != nil {
		next.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Price != nil {
		next.Price = patch.Price
	}
	if patch.ClearPrice {
		next.Price = nil
	}

	var staged StagedFile
	pending := false
	if patch.Image != nil {
		if err := s.check(*patch.Image); err != nil {
			return Product{}, fmt.Errorf("update product: %w", err)
		}
		staged, pending, err = s.promoter.ParseStagedReference(patch.Image.FileName)
		if err != nil {
			return Product{}, fmt.Errorf("update product: %w", err)
		}
		next.Image = Image{FileName: staged.Location, OriginalName: patch.Image.OriginalName}
	}

	updated, err := s.products.Update(ctx, next)
	if err != nil {
		return Product{}, fmt.Errorf("update product %s: %w", id, err)
	}

	if !pending {
		return updated, nil
	}

	updated, err = s.promoteImage(ctx, updated, staged)
	if err != nil {
		return updated, fmt.Errorf("update product %s: %w", id, err)
	}
	return updated, nil
}

// GetProduct returns the product with id, or ErrNotFound.
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}

	p, err := s.products.Get(ctx, id)
	if err != nil {
		return Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// DeleteProduct removes the product record. Its image file is left in place.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

// ListProducts sanitizes q, narrows it with ProductListing and returns one page.
func (s *CatalogService) ListProducts(ctx context.Context, q Mapping) (Page[Product], error) {
	if err := ctx.Err(); err != nil {
		return Page[Product]{}, fmt.Errorf("list products: %w", err)
	}

	spec := ProductListing.Build(SanitizeMapping(q))

	items, total, err := s.products.List(ctx, spec)
	if err != nil {
		return Page[Product]{}, fmt.Errorf("list products: %w", err)
	}
	if items == nil {
		items = []Product{}
	}

	return Page[Product]{Items: items, Pagination: NewPagination(total, spec)}, nil
}

// CreateCustomer validates in and stores a new customer.
func (s *CatalogService) CreateCustomer(ctx context.Context, in CustomerInput) (Customer, error) {
	if err := ctx.Err(); err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}

	if err := s.check(in); err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}

	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{"customer"}
	}

	c, err := s.customers.Create(ctx, Customer{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
		Roles: roles,
	})
	if err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

// GetCustomer returns the customer with id, or ErrNotFound.
func (s *CatalogService) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	if err := ctx.Err(); err != nil {
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}

	c, err := s.customers.Get(ctx, id)
	if err != nil {
		return Customer{}, fmt.Errorf("get customer %s: %w", id, err)
	}
	return c, nil
}

// UpdateCustomer applies patch. A taken email is ErrConflict.
func (s *CatalogService) UpdateCustomer(ctx context.Context, id uuid.UUID, patch CustomerPatch) (Customer, error) {
	if err := ctx.Err(); err != nil {
		return Customer{}, fmt.Errorf("update customer: %w", err)
	}

	if err := s.check(patch); err != nil {
		return Customer{}, fmt.Errorf("update customer: %w", err)
	}

	c, err := s.customers.Get(ctx, id)
	if err != nil {
		return Customer{}, fmt.Errorf("update customer %s: %w", id, err)
	}

	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		c.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
	}
	if patch.Roles != nil {
		c.Roles = patch.Roles
	}

	updated, err := s.customers.Update(ctx, c)
	if err != nil {
		return Customer{}, fmt.Errorf("update customer %s: %w", id, err)
	}
	return updated, nil
}

// DeleteCustomer removes the customer and their orders.
func (s *CatalogService) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}

	if err := s.customers.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete customer %s: %w", id, err)
	}
	return nil
}

// ListCustomers sanitizes q, narrows it with CustomerListing and returns one page.
// A search matches the customer name or the delivery address of their orders.
func (s *CatalogService) ListCustomers(ctx context.Context, q Mapping) (Page[Customer], error) {
	if err := ctx.Err(); err != nil {
		return Page[Customer]{}, fmt.Errorf("list customers: %w", err)
	}

	spec := CustomerListing.Build(SanitizeMapping(q))

	items, total, err := s.customers.List(ctx, spec)
	if err != nil {
		return Page[Customer]{}, fmt.Errorf("list customers: %w", err)
	}
	if items == nil {
		items = []Customer{}
	}

	return Page[Customer]{Items: items, Pagination: NewPagination(total, spec)}, nil
}

// RecordOrder stores an order for the customer and updates their aggregates.
func (s *CatalogService) RecordOrder(ctx context.Context, customerID uuid.UUID, in OrderInput) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, fmt.Errorf("record order: %w", err)
	}

	if err := s.check(in); err != nil {
		return Order{}, fmt.Errorf("record order: %w", err)
	}

	o, err := s.customers.RecordOrder(ctx, Order{
		CustomerID:      customerID,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		Total:           in.Total,
	})
	if err != nil {
		return Order{}, fmt.Errorf("record order for %s: %w", customerID, err)
	}
	return o, nil
}

// RetryPromotions promotes the images of products that still point at the
// temporary subtree and repoints them. It pages through pending products in
// creation order, limit at a time, moving past every product it has tried,
// so products that keep failing never hide newer ones.
//
// If a previous attempt moved the file but failed to repoint the product,
// the retry succeeds because promotion is idempotent.
//
// Returns:
//   - int: number of products repointed
//   - error: every failure of the run, joined
func (s *CatalogService) RetryPromotions(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		errs  []error
		after ProductCursor
		total int
	)
	for {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("retry promotions: %w", err)
		}

		batch, err := s.products.ListImagePrefix(ctx, s.promoter.PendingPrefix(), after, limit)
		if err != nil {
			return total, fmt.Errorf("retry promotions: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, p := range batch {
			staged, pending, parseErr := s.promoter.ParseStagedReference(p.Image.FileName)
			if parseErr != nil || !pending {
				errs = append(errs, fmt.Errorf("product %s: %w", p.ID, ErrInvalidInput))
				continue
			}

			if _, promoteErr := s.promoteImage(ctx, p, staged); promoteErr != nil {
				errs = append(errs, fmt.Errorf("product %s: %w", p.ID, promoteErr))
				continue
			}
			total++
		}

		if len(batch) < limit {
			break
		}
		after = CursorOf(batch[len(batch)-1])
	}

	if len(errs) > 0 {
		return total, fmt.Errorf("retry promotions: %w", errors.Join(errs...))
	}
	return total, nil
}

// ListOrders sanitizes q, narrows it with OrderListing and returns one page.
// A search matches the delivery address or the name of the ordering customer.
func (s *CatalogService) ListOrders(ctx context.Context, q Mapping) (Page[Order], error) {
	if err := ctx.Err(); err != nil {
		return Page[Order]{}, fmt.Errorf("list orders: %w", err)
	}

	spec := OrderListing.Build(SanitizeMapping(q))

	items, total, err := s.customers.ListOrders(ctx, spec)
	if err != nil {
		return Page[Order]{}, fmt.Errorf("list orders: %w", err)
	}
	if items == nil {
		items = []Order{}
	}

	return Page[Order]{Items: items, Pagination: NewPagination(total, spec)}, nil
}

// GetOrder returns the order with the given number.
//
// Returns:
//   - error: ErrInvalidInput if number is not positive, ErrNotFound if no
//     order has it
func (s *CatalogService) GetOrder(ctx context.Context, number int64) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if number < 1 {
		return Order{}, fmt.Errorf("get order: %w: order number must be positive", ErrInvalidInput)
	}

	o, err := s.customers.GetOrder(ctx, number)
	if err != nil {
		return Order{}, fmt.Errorf("get order %d: %w", number, err)
	}
	return o, nil
}

// promoteImage promotes staged and repoints p at the promoted location.
// On failure p is returned unchanged, still referencing the staged file.
func (s *CatalogService) promoteImage(ctx context.Context, p Product, staged StagedFile) (Product, error) {
	promoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
	defer cancel()

	promoted, err := s.promoter.Promote(promoteCtx, staged)
	if err != nil {
		slog.Error("image promotion failed", "product", p.ID, "image", staged.TemporaryName, "err", err)
		return p, wrapPromotion(err)
	}

	img := Image{FileName: promoted.Location, OriginalName: p.Image.OriginalName}
	if err := s.products.SetImage(promoteCtx, p.ID, img); err != nil {
		slog.Error("repoint product image failed", "product", p.ID, "image", promoted.PermanentName, "err", err)
		return p, fmt.Errorf("%w: repoint image: %w", ErrPromotionFailed, err)
	}

	p.Image = img
	return p, nil
}

func wrapPromotion(err error) error {
	if errors.Is(err, ErrPromotionFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPromotionFailed, err)
}

// check runs struct validation and reports failures as ErrInvalidInput.
func (s *CatalogService) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fieldName(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// fieldName turns "ProductInput.Image.FileName" into "image.fileName".
func fieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}
