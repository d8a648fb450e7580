package http_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
	"github.com/sagarc03/storefront"
	storefronthttp "github.com/sagarc03/storefront/http"
	"github.com/sagarc03/storefront/keybackend"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	adminKey    = "storefront-admin"
	adminSecret = "correct-horse-battery-staple"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func pngBytes(size int) []byte {
	b := make([]byte, size)
	copy(b, pngSignature)
	return b
}

// noAssets finds nothing, so every request falls through to the API routes.
type noAssets struct{}

func (noAssets) Open(context.Context, string) (storefront.Asset, error) {
	return storefront.Asset{}, storefront.ErrNotFound
}

// MockCatalog is a mock implementation of http.Catalog
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) CreateProduct(ctx context.Context, in storefront.ProductInput) (storefront.Product, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(storefront.Product), args.Error(1)
}

func (m *MockCatalog) GetProduct(ctx context.Context, id uuid.UUID) (storefront.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(storefront.Product), args.Error(1)
}

func (m *MockCatalog) UpdateProduct(ctx context.Context, id uuid.UUID, patch storefront.ProductPatch) (storefront.Product, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(storefront.Product), args.Error(1)
}

func (m *MockCatalog) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCatalog) ListProducts(ctx context.Context, q storefront.Mapping) (storefront.Page[storefront.Product], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(storefront.Page[storefront.Product]), args.Error(1)
}

func (m *MockCatalog) CreateCustomer(ctx context.Context, in storefront.CustomerInput) (storefront.Customer, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(storefront.Customer), args.Error(1)
}

func (m *MockCatalog) GetCustomer(ctx context.Context, id uuid.UUID) (storefront.Customer, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(storefront.Customer), args.Error(1)
}

func (m *MockCatalog) UpdateCustomer(ctx context.Context, id uuid.UUID, patch storefront.CustomerPatch) (storefront.Customer, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(storefront.Customer), args.Error(1)
}

func (m *MockCatalog) ListCustomers(ctx context.Context, q storefront.Mapping) (storefront.Page[storefront.Customer], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(storefront.Page[storefront.Customer]), args.Error(1)
}

func (m *MockCatalog) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCatalog) ListOrders(ctx context.Context, q storefront.Mapping) (storefront.Page[storefront.Order], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(storefront.Page[storefront.Order]), args.Error(1)
}

func (m *MockCatalog) GetOrder(ctx context.Context, number int64) (storefront.Order, error) {
	args := m.Called(ctx, number)
	return args.Get(0).(storefront.Order), args.Error(1)
}

func (m *MockCatalog) RecordOrder(ctx context.Context, customerID uuid.UUID, in storefront.OrderInput) (storefront.Order, error) {
	args := m.Called(ctx, customerID, in)
	return args.Get(0).(storefront.Order), args.Error(1)
}

// newTestRouter builds the full router with admin credentials adminKey/adminSecret.
func newTestRouter(t *testing.T, catalog storefronthttp.Catalog, assets storefronthttp.AssetOpener, uploads storefronthttp.Uploader) http.Handler {
	t.Helper()
	if assets == nil {
		assets = noAssets{}
	}
	cfg := &storefronthttp.HandlerConfig{
		StaticPrefix: "/",
		Admin:        keybackend.NewMapKeyStore(map[string]string{adminKey: adminSecret}),
	}
	return storefronthttp.NewHandler(cfg, catalog, assets, uploads, storefronthttp.NewMetrics()).Router()
}

func asAdmin(req *http.Request) *http.Request {
	req.SetBasicAuth(adminKey, adminSecret)
	return req
}

type filePart struct {
	field       string
	name        string
	contentType string
	content     []byte
}

func multipartBody(t *testing.T, parts ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.name+`"`)
		h.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
