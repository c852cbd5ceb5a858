package checkout

import (
	"context"
	"strings"

	"github.com/noah-isme/toko-pricing/internal/cart"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// State is a checkout attempt's position in its lifecycle.
type State string

const (
	StateIdle           State = "idle"
	StateRegionSelected State = "region_selected"
	StateFinalized      State = "finalized"
	StateSubmitted      State = "submitted"
)

// Submitter hands a payload to the order boundary and returns its reference.
type Submitter interface {
	Submit(ctx context.Context, payload Payload) (string, error)
}

// Record is the persisted form of a Session.
type Record struct {
	State     State    `json:"state"`
	Region    string   `json:"region,omitempty"`
	Finalized *Payload `json:"finalized,omitempty"`
	OrderRef  string   `json:"orderRef,omitempty"`
}

// Session tracks one checkout attempt for a cart:
//
//	idle -> region_selected -> finalized -> submitted
//
// Any item or region change before submission drops back to
// region_selected (or idle without a region) and discards finalized totals.
type Session struct {
	rec        Record
	reconciler *Reconciler
}

// NewSession starts an idle checkout attempt.
func NewSession(r *Reconciler) *Session {
	return &Session{rec: Record{State: StateIdle}, reconciler: r}
}

// Restore rebuilds a session from its persisted record.
func Restore(r *Reconciler, rec Record) *Session {
	switch rec.State {
	case StateRegionSelected, StateFinalized, StateSubmitted:
	default:
		rec.State = StateIdle
	}
	if rec.State == StateFinalized && rec.Finalized == nil {
		rec.State = StateRegionSelected
	}
	if rec.State == StateRegionSelected && strings.TrimSpace(rec.Region) == "" {
		rec.State = StateIdle
	}
	return &Session{rec: rec, reconciler: r}
}

// Record returns the session's persistable state.
func (s *Session) Record() Record {
	out := s.rec
	if s.rec.Finalized != nil {
		cp := *s.rec.Finalized
		cp.Items = append([]PayloadItem(nil), cp.Items...)
		out.Finalized = &cp
	}
	return out
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.rec.State }

// Region returns the selected delivery region, empty when none.
func (s *Session) Region() string { return s.rec.Region }

// OrderRef returns the reference assigned on submission.
func (s *Session) OrderRef() string { return s.rec.OrderRef }

// Finalized returns the finalized payload, if any.
func (s *Session) Finalized() (Payload, bool) {
	if s.rec.Finalized == nil {
		return Payload{}, false
	}
	return *s.rec.Finalized, true
}

// Provisional derives display totals for items with the current region. In
// the idle state this uses the default shipping fee.
func (s *Session) Provisional(items []cart.LineItem) pricing.Snapshot {
	return s.engine().Derive(items, s.rec.Region)
}

// SelectRegion records the delivery region. An empty region returns to idle.
func (s *Session) SelectRegion(region string) error {
	if s.rec.State == StateSubmitted {
		return ErrAlreadySubmitted
	}
	s.rec.Region = strings.TrimSpace(region)
	s.reset()
	return nil
}

// Touch marks the cart as changed. A finalized attempt loses its totals; a
// submitted attempt is closed and a new one starts with the same region.
func (s *Session) Touch() {
	if s.rec.State == StateSubmitted {
		s.rec.OrderRef = ""
	}
	s.reset()
}

// Finalize freezes the totals for items.
func (s *Session) Finalize(items []cart.LineItem) (Payload, error) {
	if s.rec.State == StateSubmitted {
		return Payload{}, ErrAlreadySubmitted
	}
	payload, err := s.reconciler.Build(items, s.rec.Region)
	if err != nil {
		return Payload{}, err
	}
	s.rec.State = StateFinalized
	s.rec.Finalized = &payload
	return payload, nil
}

// Submit re-derives the payload from items, checks it against the finalized
// totals and hands it to sub. A submitter failure keeps the session
// finalized so the attempt can be retried.
func (s *Session) Submit(ctx context.Context, items []cart.LineItem, sub Submitter) (Payload, error) {
	switch s.rec.State {
	case StateSubmitted:
		return Payload{}, ErrAlreadySubmitted
	case StateFinalized:
	default:
		return Payload{}, ErrNotFinalized
	}
	payload, err := s.reconciler.Build(items, s.rec.Region)
	if err != nil {
		s.reset()
		return Payload{}, err
	}
	if !payload.Agrees(*s.rec.Finalized) {
		s.reset()
		return Payload{}, ErrTotalsChanged
	}
	ref, err := sub.Submit(ctx, payload)
	if err != nil {
		return Payload{}, submissionFailed(err)
	}
	s.rec.State = StateSubmitted
	s.rec.Finalized = &payload
	s.rec.OrderRef = ref
	return payload, nil
}

func (s *Session) reset() {
	s.rec.Finalized = nil
	if s.rec.Region == "" {
		s.rec.State = StateIdle
		return
	}
	s.rec.State = StateRegionSelected
}

func (s *Session) engine() *pricing.Engine {
	if s.reconciler == nil {
		return nil
	}
	return s.reconciler.Engine
}
