package checkout

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pricing/internal/resilience"
)

// LogSubmitter accepts every payload, logs it and assigns an order reference.
type LogSubmitter struct {
	Logger zerolog.Logger
}

// Submit implements Submitter.
func (s LogSubmitter) Submit(_ context.Context, payload Payload) (string, error) {
	ref := "ord_" + uuid.NewString()
	s.Logger.Info().
		Str("order_ref", ref).
		Str("region", payload.Region).
		Int("items", len(payload.Items)).
		Str("total", payload.Total).
		Int64("amount_minor", payload.AmountMinorUnits).
		Msg("order submitted")
	return ref, nil
}

// BreakerSubmitter stops calling Next while it keeps failing. Rejected calls
// surface as resilience.ErrOpen.
type BreakerSubmitter struct {
	Next    Submitter
	Breaker *resilience.Breaker
}

// Submit implements Submitter.
func (s BreakerSubmitter) Submit(ctx context.Context, payload Payload) (string, error) {
	if s.Breaker == nil {
		return s.Next.Submit(ctx, payload)
	}
	var ref string
	err := s.Breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		ref, err = s.Next.Submit(ctx, payload)
		return err
	})
	return ref, err
}
