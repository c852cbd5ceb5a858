package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-pricing/internal/cart"
	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// Handler exposes pricing and checkout for carts.
type Handler struct {
	Carts      *cart.Sessions
	Reconciler *Reconciler
	Sessions   SessionStore
	Submitter  Submitter
	Validate   *validator.Validate
	Logger     zerolog.Logger
}

// PricingView is the pricing block returned with carts and checkouts.
type PricingView struct {
	pricing.Snapshot
	Region           string `json:"region"`
	RegionKnown      bool   `json:"regionKnown"`
	FreeShipping     bool   `json:"freeShipping"`
	AmountMinorUnits int64  `json:"amountMinorUnits"`
	Currency         string `json:"currency,omitempty"`
}

type sessionView struct {
	CartID    string      `json:"cartId"`
	State     State       `json:"state"`
	Region    string      `json:"region,omitempty"`
	OrderRef  string      `json:"orderRef,omitempty"`
	Pricing   PricingView `json:"pricing"`
	Finalized *Payload    `json:"finalized,omitempty"`
}

type regionRequest struct {
	Region string `json:"region" validate:"max=128"`
}

// Pricing derives the display totals for items shipped to region.
func (h *Handler) Pricing(items []cart.LineItem, region string) PricingView {
	engine := h.engine()
	snap := engine.Derive(items, region)
	view := PricingView{
		Snapshot:         snap.Rounded(),
		Region:           region,
		FreeShipping:     engine.FreeShipping(snap),
		AmountMinorUnits: snap.AmountMinorUnits(),
	}
	if engine != nil {
		_, view.RegionKnown = engine.Shipping.Lookup(region)
	}
	if h.Reconciler != nil {
		view.Currency = h.Reconciler.Currency
	}
	return view
}

// CartPricing adapts Pricing for cart.Handler.
func (h *Handler) CartPricing(items []cart.LineItem, region string) any {
	return h.Pricing(items, region)
}

// ItemsChanged sends the cart's checkout back to region selection. It is
// called while the cart is locked.
func (h *Handler) ItemsChanged(ctx context.Context, cartID string) {
	if h.Sessions == nil {
		return
	}
	rec, err := h.Sessions.Load(ctx, cartID)
	if err != nil {
		h.Logger.Warn().Err(err).Str("cart_id", cartID).Msg("load checkout session")
		return
	}
	if rec.State == StateIdle && rec.Region == "" {
		return
	}
	sess := Restore(h.Reconciler, rec)
	sess.Touch()
	if err := h.Sessions.Save(ctx, cartID, sess.Record()); err != nil {
		h.Logger.Warn().Err(err).Str("cart_id", cartID).Msg("save checkout session")
	}
}

// QuoteTax returns the tax due on the cart's current subtotal.
func (h *Handler) QuoteTax(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, s *cart.Store, _ *Session) (any, bool, error) {
		engine := h.engine()
		subtotal := pricing.Subtotal(s.Items())
		var rate float64
		if engine != nil {
			rate = engine.TaxRate
		}
		return map[string]any{
			"subtotal": money.FormatFixed(subtotal),
			"taxRate":  rate,
			"tax":      money.FormatFixed(engine.Tax(subtotal)),
		}, false, nil
	})
}

// Get returns the checkout state with provisional totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, s *cart.Store, sess *Session) (any, bool, error) {
		return h.sessionView(chi.URLParam(r, "id"), s.Items(), sess), false, nil
	})
}

// SelectRegion records the delivery region for the checkout.
func (h *Handler) SelectRegion(w http.ResponseWriter, r *http.Request) {
	var req regionRequest
	if err := common.DecodeJSON(r, &req, h.Validate); err != nil {
		common.WriteError(w, err)
		return
	}
	h.withSession(w, r, func(ctx context.Context, s *cart.Store, sess *Session) (any, bool, error) {
		if err := sess.SelectRegion(req.Region); err != nil {
			return nil, false, err
		}
		return h.sessionView(chi.URLParam(r, "id"), s.Items(), sess), true, nil
	})
}

// Finalize freezes checkout totals for the current cart contents.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "id")
	h.withSession(w, r, func(ctx context.Context, s *cart.Store, sess *Session) (any, bool, error) {
		_, span := obs.StartCheckoutSpan(ctx, "finalize", cartID)
		payload, err := sess.Finalize(s.Items())
		result := resultLabel(err)
		obs.CountCheckout("finalize", result)
		if err != nil {
			obs.EndCheckoutSpan(span, result, err)
			return nil, false, err
		}
		obs.EndCheckoutSpan(span, result, nil, payloadAttributes(payload)...)
		return payload, true, nil
	})
}

// Submit re-derives the payload, hands it to the submitter and clears the
// cart once the order is accepted.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.Submitter == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order submitter not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	h.withSessionStatus(w, r, http.StatusCreated, func(ctx context.Context, s *cart.Store, sess *Session) (any, bool, error) {
		ctx, span := obs.StartCheckoutSpan(ctx, "submit", cartID)
		payload, err := sess.Submit(ctx, s.Items(), h.Submitter)
		result := resultLabel(err)
		obs.CountCheckout("submit", result)
		if err != nil {
			obs.EndCheckoutSpan(span, result, err)
			if errors.Is(err, ErrSubmissionFailed) {
				h.Logger.Error().Err(err).Str("cart_id", cartID).Msg("order submission failed")
				return nil, false, err
			}
			return nil, !errors.Is(err, ErrAlreadySubmitted) && !errors.Is(err, ErrNotFinalized), err
		}
		obs.EndCheckoutSpan(span, result, nil, append(payloadAttributes(payload), attribute.String("order.ref", sess.OrderRef()))...)
		obs.ObserveCheckoutTotal(money.Normalize(payload.Total))
		s.Clear(ctx)
		h.Logger.Info().Str("cart_id", cartID).Str("order_ref", sess.OrderRef()).Str("total", payload.Total).Msg("checkout submitted")
		return map[string]any{"orderRef": sess.OrderRef(), "payload": payload}, true, nil
	})
}

type sessionFunc func(ctx context.Context, s *cart.Store, sess *Session) (out any, save bool, err error)

func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, fn sessionFunc) {
	h.withSessionStatus(w, r, http.StatusOK, fn)
}

// withSessionStatus runs fn under the cart lock with the cart's checkout
// session. The session is saved when fn asks for it, even on error, so
// resets caused by stale totals stick.
func (h *Handler) withSessionStatus(w http.ResponseWriter, r *http.Request, status int, fn sessionFunc) {
	if h.Carts == nil || h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	var out any
	var fnErr error
	err := h.Carts.Do(r.Context(), cartID, func(s *cart.Store) error {
		rec, err := h.Sessions.Load(r.Context(), cartID)
		if err != nil {
			return fmt.Errorf("load checkout session: %w", err)
		}
		sess := Restore(h.Reconciler, rec)
		var save bool
		out, save, fnErr = fn(r.Context(), s, sess)
		if save {
			if err := h.Sessions.Save(r.Context(), cartID, sess.Record()); err != nil {
				return fmt.Errorf("save checkout session: %w", err)
			}
		}
		return nil
	})
	if err == nil {
		err = fnErr
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			common.JSONError(w, http.StatusServiceUnavailable, "CART_BUSY", "cart is busy, retry shortly", nil)
			return
		}
		common.WriteError(w, err, cart.HTTPErrors...)
		return
	}
	common.Data(w, status, out)
}

func (h *Handler) sessionView(cartID string, items []cart.LineItem, sess *Session) sessionView {
	view := sessionView{
		CartID:   cartID,
		State:    sess.State(),
		Region:   sess.Region(),
		OrderRef: sess.OrderRef(),
		Pricing:  h.Pricing(items, sess.Region()),
	}
	if p, ok := sess.Finalized(); ok {
		view.Finalized = &p
	}
	return view
}

func (h *Handler) engine() *pricing.Engine {
	if h.Reconciler == nil {
		return nil
	}
	return h.Reconciler.Engine
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return "error"
}

func payloadAttributes(p Payload) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("checkout.region", p.Region),
		attribute.Int64("checkout.amount_minor", p.AmountMinorUnits),
		attribute.Int("checkout.items", len(p.Items)),
		attribute.Bool("checkout.free_shipping", p.FreeShipping),
	}
}
