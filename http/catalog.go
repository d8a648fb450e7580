package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sagarc03/storefront"
)

// Catalog is the product and customer API behind the JSON routes.
type Catalog interface {
	CreateProduct(ctx context.Context, in storefront.ProductInput) (storefront.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (storefront.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, patch storefront.ProductPatch) (storefront.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListProducts(ctx context.Context, q storefront.Mapping) (storefront.Page[storefront.Product], error)

	CreateCustomer(ctx context.Context, in storefront.CustomerInput) (storefront.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (storefront.Customer, error)
	UpdateCustomer(ctx context.Context, id uuid.UUID, patch storefront.CustomerPatch) (storefront.Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
	ListCustomers(ctx context.Context, q storefront.Mapping) (storefront.Page[storefront.Customer], error)

	RecordOrder(ctx context.Context, customerID uuid.UUID, in storefront.OrderInput) (storefront.Order, error)
	ListOrders(ctx context.Context, q storefront.Mapping) (storefront.Page[storefront.Order], error)
	GetOrder(ctx context.Context, number int64) (storefront.Order, error)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.ListProducts(r.Context(), storefront.FromQuery(r.URL.Query()))
	if err != nil {
		HandleError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	var in storefront.ProductInput
	if err := storefront.DecodeSanitized(body, &in); err != nil {
		HandleError(w, err)
		return
	}

	p, err := h.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		h.catalogError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	var patch storefront.ProductPatch
	if err := storefront.DecodeSanitized(body, &patch); err != nil {
		HandleError(w, err)
		return
	}
	patch.ClearPrice = body.IsNull("price")

	p, err := h.catalog.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		h.catalogError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.ListCustomers(r.Context(), storefront.FromQuery(r.URL.Query()))
	if err != nil {
		HandleError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	c, err := h.catalog.GetCustomer(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	var in storefront.CustomerInput
	if err := storefront.DecodeSanitized(body, &in); err != nil {
		HandleError(w, err)
		return
	}

	c, err := h.catalog.CreateCustomer(r.Context(), in)
	if err != nil {
		HandleError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	var patch storefront.CustomerPatch
	if err := storefront.DecodeSanitized(body, &patch); err != nil {
		HandleError(w, err)
		return
	}

	c, err := h.catalog.UpdateCustomer(r.Context(), id, patch)
	if err != nil {
		HandleError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleRecordOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	var in storefront.OrderInput
	if err := storefront.DecodeSanitized(body, &in); err != nil {
		HandleError(w, err)
		return
	}

	o, err := h.catalog.RecordOrder(r.Context(), id, in)
	if err != nil {
		HandleError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	if err := h.catalog.DeleteCustomer(r.Context(), id); err != nil {
		HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := h.catalog.ListOrders(r.Context(), storefront.FromQuery(r.URL.Query()))
	if err != nil {
		HandleError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseInt(chi.URLParam(r, "orderNumber"), 10, 64)
	if err != nil {
		HandleError(w, fmt.Errorf("%w: malformed order number", storefront.ErrInvalidInput))
		return
	}

	o, err := h.catalog.GetOrder(r.Context(), number)
	if err != nil {
		HandleError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, o)
}

// catalogError counts promotion failures before writing the error.
func (h *Handler) catalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, storefront.ErrPromotionFailed) {
		h.metrics.promotionFailed()
	}
	HandleError(w, err)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed id", storefront.ErrInvalidInput)
	}
	return id, nil
}

// decodeBody reads a JSON object and returns it sanitized.
func decodeBody(r *http.Request) (storefront.Mapping, error) {
	var raw any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("decode body: %w: malformed JSON", storefront.ErrInvalidInput)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode body: %w: trailing data after JSON object", storefront.ErrInvalidInput)
	}

	m, ok := storefront.FromAny(raw).(storefront.Mapping)
	if !ok {
		return nil, fmt.Errorf("decode body: %w: expected a JSON object", storefront.ErrInvalidInput)
	}
	return storefront.SanitizeMapping(m), nil
}
