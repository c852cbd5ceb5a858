package cart

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/money"
)

// HTTPErrors maps cart sentinel errors to responses.
var HTTPErrors = []common.ErrorMapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Err: ErrInvalidInput, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
}

// Handler exposes cart operations over HTTP.
type Handler struct {
	Sessions *Sessions
	Validate *validator.Validate
	// Price renders the pricing block of a cart view.
	Price func(items []LineItem, region string) any
	// OnChange runs after every mutation while the cart is still locked.
	OnChange func(ctx context.Context, cartID string)
}

type addItemRequest struct {
	ProductID ProductID `json:"productId" validate:"required,max=128"`
	Name      string    `json:"name" validate:"max=256"`
	UnitPrice money.Raw `json:"unitPrice"`
	Quantity  int       `json:"quantity" validate:"lte=10000"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type mergeRequest struct {
	SourceCartID string `json:"sourceCartId" validate:"required,uuid"`
}

type itemView struct {
	ProductID ProductID `json:"productId"`
	Name      string    `json:"name,omitempty"`
	UnitPrice float64   `json:"unitPrice"`
	Quantity  int       `json:"quantity"`
	LineTotal float64   `json:"lineTotal"`
}

type cartView struct {
	CartID        string     `json:"cartId"`
	Items         []itemView `json:"items"`
	ItemCount     int        `json:"itemCount"`
	DistinctItems int        `json:"distinctItems"`
	Pricing       any        `json:"pricing,omitempty"`
}

// Create allocates a new cart.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart sessions not configured", nil)
		return
	}
	id := h.Sessions.Create(r.Context())
	common.Data(w, http.StatusCreated, map[string]string{"cartId": id})
}

// Get returns the cart's items and totals. Every cart response prices
// against the optional ?region= query parameter.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(context.Context, *Store) error { return nil }, false)
}

// AddItem adds a product or increases its quantity.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := common.DecodeJSON(r, &req, h.Validate); err != nil {
		common.WriteError(w, err)
		return
	}
	product := Product{ID: ProductID(strings.TrimSpace(string(req.ProductID))), Name: req.Name, UnitPrice: req.UnitPrice}
	h.respond(w, r, http.StatusOK, func(ctx context.Context, s *Store) error {
		s.Add(ctx, product, req.Quantity)
		return nil
	}, true)
}

// UpdateItem sets a line item's quantity. Values below one become one.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := common.DecodeJSON(r, &req, h.Validate); err != nil {
		common.WriteError(w, err)
		return
	}
	id := ProductID(chi.URLParam(r, "productId"))
	h.respond(w, r, http.StatusOK, func(ctx context.Context, s *Store) error {
		s.SetQuantity(ctx, id, *req.Quantity)
		return nil
	}, true)
}

// RemoveItem deletes a line item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := ProductID(chi.URLParam(r, "productId"))
	h.respond(w, r, http.StatusOK, func(ctx context.Context, s *Store) error {
		s.Remove(ctx, id)
		return nil
	}, true)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, func(ctx context.Context, s *Store) error {
		s.Clear(ctx)
		return nil
	}, true)
}

// Merge folds a guest cart into this one and empties the guest cart. Both
// carts stay locked for the whole operation.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := common.DecodeJSON(r, &req, h.Validate); err != nil {
		common.WriteError(w, err)
		return
	}
	targetID := chi.URLParam(r, "id")
	if req.SourceCartID == targetID {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cannot merge a cart into itself", nil)
		return
	}
	if h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart sessions not configured", nil)
		return
	}

	region := r.URL.Query().Get("region")
	var view cartView
	err := h.Sessions.DoPair(r.Context(), targetID, req.SourceCartID, func(target, guest *Store) error {
		items := guest.Items()
		if len(items) == 0 {
			view = h.view(targetID, target.Items(), region)
			return nil
		}
		target.Merge(r.Context(), items)
		guest.Clear(r.Context())
		h.changed(r.Context(), targetID)
		h.changed(r.Context(), req.SourceCartID)
		view = h.view(targetID, target.Items(), region)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, fn func(context.Context, *Store) error, mutates bool) {
	if h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart sessions not configured", nil)
		return
	}
	id := chi.URLParam(r, "id")
	region := r.URL.Query().Get("region")
	var view cartView
	err := h.Sessions.Do(r.Context(), id, func(s *Store) error {
		if err := fn(r.Context(), s); err != nil {
			return err
		}
		if mutates {
			h.changed(r.Context(), id)
		}
		view = h.view(id, s.Items(), region)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, status, view)
}

func (h *Handler) view(id string, items []LineItem, region string) cartView {
	out := cartView{CartID: id, Items: make([]itemView, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, itemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice.Amount(),
			Quantity:  it.EffectiveQuantity(),
			LineTotal: money.Round2(it.LineTotal()),
		})
		out.ItemCount += it.Quantity
	}
	out.DistinctItems = len(items)
	if h.Price != nil {
		out.Pricing = h.Price(items, region)
	}
	return out
}

func (h *Handler) changed(ctx context.Context, id string) {
	if h.OnChange != nil {
		h.OnChange(ctx, id)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		common.JSONError(w, http.StatusServiceUnavailable, "CART_BUSY", "cart is busy, retry shortly", nil)
		return
	}
	common.WriteError(w, err, HTTPErrors...)
}
