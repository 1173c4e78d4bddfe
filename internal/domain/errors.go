package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine-level failures. Callers branch on these with
// errors.Is rather than matching message strings.
var (
	// ErrNoHistoricalData means a SKU has zero sales records; terminal for
	// that SKU, never retried automatically.
	ErrNoHistoricalData = errors.New("no historical sales data")

	// ErrNoInventoryRecord means a SKU has no inventory snapshot; terminal.
	ErrNoInventoryRecord = errors.New("no inventory record")

	// ErrPredictionUnavailable means a predictor could not produce a valid
	// payload. Recoverable by falling back to the heuristic predictor.
	ErrPredictionUnavailable = errors.New("prediction unavailable")

	// ErrSupplierNotFound means the referenced supplier does not exist or is
	// inactive.
	ErrSupplierNotFound = errors.New("supplier not found")

	// ErrPONotFound means the referenced purchase order does not exist.
	ErrPONotFound = errors.New("purchase order not found")

	// ErrReceiptPartialFailure means a PO receipt transaction failed part way
	// through. The transaction is rolled back; inventory and audit state are
	// unchanged.
	ErrReceiptPartialFailure = errors.New("purchase order receipt failed, rolled back")

	// ErrQueueDispatch means a job could not be enqueued. The queue's own
	// redelivery handles retries.
	ErrQueueDispatch = errors.New("queue dispatch failed")

	// ErrRateLimited means the predictor rejected the call for rate reasons.
	// Recoverable with backoff.
	ErrRateLimited = errors.New("predictor rate limited")
)

// InvalidTransitionError names the current state and the attempted action of
// a rejected PO state change.
type InvalidTransitionError struct {
	PONumber string
	Current  POStatus
	Action   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("purchase order %s cannot %s: status is %s", e.PONumber, e.Action, e.Current)
}

// IsInvalidTransition reports whether err is a PO state-guard violation.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}
