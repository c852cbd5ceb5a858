package checkout

import (
	"net/http"

	"github.com/noah-isme/toko-pricing/internal/common"
)

var (
	// ErrEmptyCart blocks checkout of a cart without items.
	ErrEmptyCart = common.NewAppError("CART_EMPTY", "cart is empty", http.StatusUnprocessableEntity, nil)
	// ErrRegionRequired blocks checkout until a delivery region is selected.
	ErrRegionRequired = common.NewAppError("REGION_REQUIRED", "select a delivery region before checkout", http.StatusUnprocessableEntity, nil)
	// ErrNotFinalized is returned when submitting before totals were finalized.
	ErrNotFinalized = common.NewAppError("CHECKOUT_NOT_FINALIZED", "finalize checkout totals before submitting", http.StatusConflict, nil)
	// ErrTotalsChanged is returned when the cart no longer matches the finalized totals.
	ErrTotalsChanged = common.NewAppError("TOTALS_CHANGED", "cart totals changed since finalization", http.StatusConflict, nil)
	// ErrAlreadySubmitted is returned for any further action on a submitted checkout.
	ErrAlreadySubmitted = common.NewAppError("CHECKOUT_SUBMITTED", "checkout already submitted", http.StatusConflict, nil)
	// ErrSubmissionFailed wraps failures reported by the order submitter.
	ErrSubmissionFailed = common.NewAppError("SUBMISSION_FAILED", "order submission failed", http.StatusBadGateway, nil)
)

func submissionFailed(err error) error {
	out := *ErrSubmissionFailed
	out.Err = err
	return &out
}
