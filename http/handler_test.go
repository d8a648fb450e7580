package http_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/storefront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandler_Health(t *testing.T) {
	h := newTestRouter(t, new(MockCatalog), nil, nil)

	rec := serve(h, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestHandler_Metrics(t *testing.T) {
	h := newTestRouter(t, new(MockCatalog), nil, nil)

	rec := serve(h, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_upload_rejections_total")
}

func TestHandler_UnknownRoute(t *testing.T) {
	h := newTestRouter(t, new(MockCatalog), nil, nil)

	rec := serve(h, httptest.NewRequest("GET", "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestHandler_ListProducts(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)

	price := 12.5
	page := storefront.Page[storefront.Product]{
		Items: []storefront.Product{{ID: uuid.New(), Title: "Mug", Category: "kitchen", Price: &price, CreatedAt: time.Now()}},
		Pagination: storefront.Pagination{Total: 1, TotalPages: 1, CurrentPage: 2, PageSize: 20},
	}
	catalog.On("ListProducts", mock.Anything, mock.MatchedBy(func(q storefront.Mapping) bool {
		search, _ := q.String("search")
		pageParam, _ := q.String("page")
		filter, nested := q["title"].(storefront.Mapping)
		return search == "mug" && pageParam == "2" && nested && filter.Has("$ne")
	})).Return(page, nil)

	rec := serve(h, httptest.NewRequest("GET", "/products?search=mug&page=2&title[$ne]=x", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got storefront.Page[storefront.Product]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Mug", got.Items[0].Title)
	assert.Equal(t, 2, got.Pagination.CurrentPage)
	catalog.AssertExpectations(t)
}

func TestHandler_ListProducts_InvalidField(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)

	catalog.On("ListProducts", mock.Anything, mock.Anything).
		Return(storefront.Page[storefront.Product]{}, fmt.Errorf("list products: %w: unknown field", storefront.ErrInvalidInput))

	rec := serve(h, httptest.NewRequest("GET", "/products", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_GetProduct(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)
	id := uuid.New()

	catalog.On("GetProduct", mock.Anything, id).Return(storefront.Product{ID: id, Title: "Mug"}, nil)

	rec := serve(h, httptest.NewRequest("GET", "/products/"+id.String(), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Mug"`)
	catalog.AssertExpectations(t)
}

func TestHandler_GetProduct_Errors(t *testing.T) {
	t.Run("malformed id", func(t *testing.T) {
		catalog := new(MockCatalog)
		h := newTestRouter(t, catalog, nil, nil)

		rec := serve(h, httptest.NewRequest("GET", "/products/not-a-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		catalog.AssertNotCalled(t, "GetProduct", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		catalog := new(MockCatalog)
		h := newTestRouter(t, catalog, nil, nil)
		id := uuid.New()
		catalog.On("GetProduct", mock.Anything, id).Return(storefront.Product{}, storefront.ErrNotFound)

		rec := serve(h, httptest.NewRequest("GET", "/products/"+id.String(), nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_CreateProduct_SanitizesBody(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)

	body := `{
		"title": "Mug",
		"category": "kitchen",
		"price": 12.5,
		"image": {"fileName": "/temp/0123456789abcdef0123456789abcdef.png", "originalName": "mug.png", "$where": "1"},
		"$set": {"price": 0},
		"description.secret": "x"
	}`

	catalog.On("CreateProduct", mock.Anything, mock.MatchedBy(func(in storefront.ProductInput) bool {
		return in.Title == "Mug" &&
			in.Category == "kitchen" &&
			in.Price != nil && *in.Price == 12.5 &&
			in.Description == "" &&
			in.Image.FileName == "/temp/0123456789abcdef0123456789abcdef.png"
	})).Return(storefront.Product{ID: uuid.New(), Title: "Mug"}, nil)

	rec := serve(h, asAdmin(jsonRequest("POST", "/products", body)))

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	catalog.AssertExpectations(t)
}

func TestHandler_CreateProduct_RequiresAdmin(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)

	rec := serve(h, jsonRequest("POST", "/products", `{"title":"Mug"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	catalog.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestHandler_CreateProduct_BadBodies(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "malformed", body: `{"title":`, wantCode: http.StatusBadRequest},
		{name: "array", body: `[{"title":"Mug"}]`, wantCode: http.StatusBadRequest},
		{name: "trailing data", body: `{"title":"Mug"} {"title":"Cup"}`, wantCode: http.StatusBadRequest},
		{name: "wrong type", body: `{"title":{"nested":true}}`, wantCode: http.StatusBadRequest},
		{name: "too large", body: `{"description":"` + strings.Repeat("a", 11<<10) + `"}`, wantCode: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := new(MockCatalog)
			h := newTestRouter(t, catalog, nil, nil)

			rec := serve(h, asAdmin(jsonRequest("POST", "/products", tt.body)))

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			catalog.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_CreateProduct_PromotionFailed(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)

	err := fmt.Errorf("create product: %w: rename temp/x.png: device busy", storefront.ErrPromotionFailed)
	catalog.On("CreateProduct", mock.Anything, mock.Anything).Return(storefront.Product{ID: uuid.New()}, err)

	rec := serve(h, asAdmin(jsonRequest("POST", "/products", `{"title":"Mug","category":"kitchen"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "temp/x.png")

	metrics := serve(h, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, metrics.Body.String(), "storefront_promotion_failures_total 1")
}

func TestHandler_CreateProduct_Conflict(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)

	catalog.On("CreateProduct", mock.Anything, mock.Anything).
		Return(storefront.Product{}, fmt.Errorf("create product: %w: title already exists", storefront.ErrConflict))

	rec := serve(h, asAdmin(jsonRequest("POST", "/products", `{"title":"Mug","category":"kitchen"}`)))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_UpdateProduct(t *testing.T) {
	t.Run("null price clears it", func(t *testing.T) {
		catalog := new(MockCatalog)
		h := newTestRouter(t, catalog, nil, nil)
		id := uuid.New()

		catalog.On("UpdateProduct", mock.Anything, id, mock.MatchedBy(func(p storefront.ProductPatch) bool {
			return p.ClearPrice && p.Price == nil && p.Title != nil && *p.Title == "Cup"
		})).Return(storefront.Product{ID: id, Title: "Cup"}, nil)

		rec := serve(h, asAdmin(jsonRequest("PATCH", "/products/"+id.String(), `{"title":"Cup","price":null}`)))

		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		catalog.AssertExpectations(t)
	})

	t.Run("absent price is kept", func(t *testing.T) {
		catalog := new(MockCatalog)
		h := newTestRouter(t, catalog, nil, nil)
		id := uuid.New()

		catalog.On("UpdateProduct", mock.Anything, id, mock.MatchedBy(func(p storefront.ProductPatch) bool {
			return !p.ClearPrice && p.Price == nil && p.Image != nil
		})).Return(storefront.Product{ID: id}, nil)

		rec := serve(h, asAdmin(jsonRequest("PATCH", "/products/"+id.String(), `{"image":{"fileName":"/images/a.png"}}`)))

		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		catalog.AssertExpectations(t)
	})
}

func TestHandler_DeleteProduct(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)
	id := uuid.New()

	catalog.On("DeleteProduct", mock.Anything, id).Return(nil)

	rec := serve(h, asAdmin(httptest.NewRequest("DELETE", "/products/"+id.String(), nil)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	catalog.AssertExpectations(t)
}

func TestHandler_Customers_RequireAdmin(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)
	id := uuid.New().String()

	for _, req := range []*http.Request{
		httptest.NewRequest("GET", "/customers", nil),
		httptest.NewRequest("GET", "/customers/"+id, nil),
		jsonRequest("PATCH", "/customers/"+id, `{"name":"Ann"}`),
		jsonRequest("POST", "/customers", `{"name":"Ann"}`),
		jsonRequest("POST", "/customers/"+id+"/orders", `{"deliveryAddress":"x"}`),
		httptest.NewRequest("DELETE", "/customers/"+id, nil),
		httptest.NewRequest("GET", "/orders", nil),
		httptest.NewRequest("GET", "/orders/1", nil),
	} {
		rec := serve(h, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, req.Method+" "+req.URL.Path)
	}
	catalog.AssertExpectations(t)
}

func TestHandler_ListCustomers(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)

	catalog.On("ListCustomers", mock.Anything, mock.MatchedBy(func(q storefront.Mapping) bool {
		from, _ := q.String("totalAmountFrom")
		return from == "100"
	})).Return(storefront.Page[storefront.Customer]{
		Items:      []storefront.Customer{{ID: uuid.New(), Name: "Ann", Roles: []string{"customer"}}},
		Pagination: storefront.Pagination{Total: 1, TotalPages: 1, CurrentPage: 1, PageSize: 10},
	}, nil)

	rec := serve(h, asAdmin(httptest.NewRequest("GET", "/customers?totalAmountFrom=100", nil)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Ann"`)
	catalog.AssertExpectations(t)
}

func TestHandler_CreateAndUpdateCustomer(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)
	id := uuid.New()

	catalog.On("CreateCustomer", mock.Anything, storefront.CustomerInput{
		Name:  "Ann",
		Email: "ann@example.com",
		Roles: []string{"admin"},
	}).Return(storefront.Customer{ID: id, Name: "Ann"}, nil)

	rec := serve(h, asAdmin(jsonRequest("POST", "/customers", `{"name":"Ann","email":"ann@example.com","roles":["admin"],"$inc":{"totalAmount":1}}`)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	catalog.On("UpdateCustomer", mock.Anything, id, mock.MatchedBy(func(p storefront.CustomerPatch) bool {
		return p.Email != nil && *p.Email == "taken@example.com"
	})).Return(storefront.Customer{}, fmt.Errorf("update customer: %w: email already registered", storefront.ErrConflict))

	rec = serve(h, asAdmin(jsonRequest("PATCH", "/customers/"+id.String(), `{"email":"taken@example.com"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	catalog.AssertExpectations(t)
}

func TestHandler_RecordOrder(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)
	id := uuid.New()

	catalog.On("RecordOrder", mock.Anything, id, storefront.OrderInput{DeliveryAddress: "1 Baker Street", Total: 42}).
		Return(storefront.Order{ID: uuid.New(), OrderNumber: 1, CustomerID: id, Total: 42}, nil)

	rec := serve(h, asAdmin(jsonRequest("POST", "/customers/"+id.String()+"/orders", `{"deliveryAddress":"1 Baker Street","totalAmount":42}`)))

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"orderNumber":1`)
	catalog.AssertExpectations(t)
}

func TestHandler_RecordOrder_UnknownCustomer(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)
	id := uuid.New()

	catalog.On("RecordOrder", mock.Anything, id, mock.Anything).
		Return(storefront.Order{}, errors.Join(errors.New("record order"), storefront.ErrNotFound))

	rec := serve(h, asAdmin(jsonRequest("POST", "/customers/"+id.String()+"/orders", `{"deliveryAddress":"x","totalAmount":1}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_DeleteCustomer(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)
	id := uuid.New()
	missing := uuid.New()

	catalog.On("DeleteCustomer", mock.Anything, id).Return(nil)
	catalog.On("DeleteCustomer", mock.Anything, missing).
		Return(fmt.Errorf("delete customer: %w", storefront.ErrNotFound))

	rec := serve(h, asAdmin(httptest.NewRequest("DELETE", "/customers/"+id.String(), nil)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(h, asAdmin(httptest.NewRequest("DELETE", "/customers/"+missing.String(), nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	catalog.AssertExpectations(t)
}

func TestHandler_ListOrders(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)

	catalog.On("ListOrders", mock.Anything, mock.MatchedBy(func(q storefront.Mapping) bool {
		from, _ := q.String("orderDateFrom")
		sort, _ := q.String("sort")
		return from == "2024-01-01" && sort == "totalAmount"
	})).Return(storefront.Page[storefront.Order]{
		Items:      []storefront.Order{{ID: uuid.New(), OrderNumber: 7, Total: 42}},
		Pagination: storefront.Pagination{Total: 1, TotalPages: 1, CurrentPage: 1, PageSize: 10},
	}, nil)

	rec := serve(h, asAdmin(httptest.NewRequest("GET", "/orders?orderDateFrom=2024-01-01&sort=totalAmount", nil)))

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"orderNumber":7`)
	catalog.AssertExpectations(t)
}

func TestHandler_GetOrder(t *testing.T) {
	catalog := new(MockCatalog)
	h := newTestRouter(t, catalog, nil, nil)

	catalog.On("GetOrder", mock.Anything, int64(7)).
		Return(storefront.Order{ID: uuid.New(), OrderNumber: 7, DeliveryAddress: "1 Baker Street"}, nil)
	catalog.On("GetOrder", mock.Anything, int64(8)).
		Return(storefront.Order{}, fmt.Errorf("get order: %w", storefront.ErrNotFound))

	rec := serve(h, asAdmin(httptest.NewRequest("GET", "/orders/7", nil)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deliveryAddress":"1 Baker Street"`)

	rec = serve(h, asAdmin(httptest.NewRequest("GET", "/orders/8", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, number := range []string{"seven", "1e3", "99999999999999999999"} {
		rec = serve(h, asAdmin(httptest.NewRequest("GET", "/orders/"+number, nil)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, number)
	}

	catalog.AssertExpectations(t)
}

func TestHandler_AssetsAreCrossOrigin(t *testing.T) {
	assets, _ := newAssetRoot(t)
	h := newTestRouter(t, new(MockCatalog), assets, nil)

	rec := serve(h, httptest.NewRequest("GET", "/images/a.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cross-origin", rec.Header().Get("Cross-Origin-Resource-Policy"))

	rec = serve(h, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, "same-origin", rec.Header().Get("Cross-Origin-Resource-Policy"))
}
