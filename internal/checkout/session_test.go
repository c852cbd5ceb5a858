package checkout_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/cart"
	"github.com/noah-isme/toko-pricing/internal/checkout"
	"github.com/noah-isme/toko-pricing/internal/money"
)

type fakeSubmitter struct {
	err      error
	payloads []checkout.Payload
}

func (f *fakeSubmitter) Submit(_ context.Context, p checkout.Payload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, p)
	return "ord-1", nil
}

func TestSessionHappyPath(t *testing.T) {
	sess := checkout.NewSession(newReconciler())
	items := exampleItems()
	require.Equal(t, checkout.StateIdle, sess.State())

	provisional := sess.Provisional(items)
	require.Equal(t, 3000.0, provisional.Shipping)

	require.NoError(t, sess.SelectRegion("Lagos"))
	require.Equal(t, checkout.StateRegionSelected, sess.State())
	require.Equal(t, 2500.0, sess.Provisional(items).Shipping)

	finalized, err := sess.Finalize(items)
	require.NoError(t, err)
	require.Equal(t, checkout.StateFinalized, sess.State())

	sub := &fakeSubmitter{}
	submitted, err := sess.Submit(context.Background(), items, sub)
	require.NoError(t, err)
	require.Equal(t, checkout.StateSubmitted, sess.State())
	require.Equal(t, "ord-1", sess.OrderRef())
	require.True(t, finalized.Agrees(submitted))
	require.Len(t, sub.payloads, 1)

	_, err = sess.Submit(context.Background(), items, sub)
	require.ErrorIs(t, err, checkout.ErrAlreadySubmitted)
	_, err = sess.Finalize(items)
	require.ErrorIs(t, err, checkout.ErrAlreadySubmitted)
	require.ErrorIs(t, sess.SelectRegion("Abuja"), checkout.ErrAlreadySubmitted)
}

func TestSessionRequiresRegionAndItems(t *testing.T) {
	sess := checkout.NewSession(newReconciler())

	_, err := sess.Finalize(exampleItems())
	require.ErrorIs(t, err, checkout.ErrRegionRequired)
	require.Equal(t, checkout.StateIdle, sess.State())

	require.NoError(t, sess.SelectRegion("Lagos"))
	_, err = sess.Finalize(nil)
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
	require.Equal(t, checkout.StateRegionSelected, sess.State())

	_, err = sess.Submit(context.Background(), exampleItems(), &fakeSubmitter{})
	require.ErrorIs(t, err, checkout.ErrNotFinalized)
}

func TestSessionTouchDiscardsFinalizedTotals(t *testing.T) {
	sess := checkout.NewSession(newReconciler())
	require.NoError(t, sess.SelectRegion("Lagos"))
	_, err := sess.Finalize(exampleItems())
	require.NoError(t, err)

	sess.Touch()
	require.Equal(t, checkout.StateRegionSelected, sess.State())
	_, ok := sess.Finalized()
	require.False(t, ok)

	require.NoError(t, sess.SelectRegion(""))
	require.Equal(t, checkout.StateIdle, sess.State())
}

func TestSessionSubmitDetectsChangedTotals(t *testing.T) {
	sess := checkout.NewSession(newReconciler())
	require.NoError(t, sess.SelectRegion("Lagos"))
	_, err := sess.Finalize(exampleItems())
	require.NoError(t, err)

	changed := exampleItems()
	changed[0].Quantity = 5
	sub := &fakeSubmitter{}
	_, err = sess.Submit(context.Background(), changed, sub)
	require.ErrorIs(t, err, checkout.ErrTotalsChanged)
	require.Equal(t, checkout.StateRegionSelected, sess.State())
	require.Empty(t, sub.payloads)
}

func TestSessionSubmitterFailureKeepsFinalized(t *testing.T) {
	sess := checkout.NewSession(newReconciler())
	require.NoError(t, sess.SelectRegion("Lagos"))
	_, err := sess.Finalize(exampleItems())
	require.NoError(t, err)

	gatewayDown := errors.New("gateway down")
	_, err = sess.Submit(context.Background(), exampleItems(), &fakeSubmitter{err: gatewayDown})
	require.ErrorIs(t, err, checkout.ErrSubmissionFailed)
	require.ErrorIs(t, err, gatewayDown)
	require.Equal(t, checkout.StateFinalized, sess.State())

	_, err = sess.Submit(context.Background(), exampleItems(), &fakeSubmitter{})
	require.NoError(t, err)
}

func TestSessionTouchAfterSubmitStartsNewAttempt(t *testing.T) {
	sess := checkout.NewSession(newReconciler())
	require.NoError(t, sess.SelectRegion("Abuja"))
	items := []cart.LineItem{{ProductID: "B", UnitPrice: money.Number(500), Quantity: 1}}
	_, err := sess.Finalize(items)
	require.NoError(t, err)
	_, err = sess.Submit(context.Background(), items, &fakeSubmitter{})
	require.NoError(t, err)

	sess.Touch()
	require.Equal(t, checkout.StateRegionSelected, sess.State())
	require.Equal(t, "Abuja", sess.Region())
	require.Empty(t, sess.OrderRef())
}

func TestRestoreNormalizesRecords(t *testing.T) {
	r := newReconciler()
	require.Equal(t, checkout.StateIdle, checkout.Restore(r, checkout.Record{State: "bogus"}).State())
	require.Equal(t, checkout.StateRegionSelected, checkout.Restore(r, checkout.Record{State: checkout.StateFinalized, Region: "Lagos"}).State())
	require.Equal(t, checkout.StateIdle, checkout.Restore(r, checkout.Record{State: checkout.StateRegionSelected}).State())
}
