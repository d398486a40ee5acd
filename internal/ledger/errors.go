package ledger

import "errors"

var (
	ErrMissingUserReference = errors.New("order has no user reference")
	ErrMissingOrderID       = errors.New("order id is required")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidCreditAmount  = errors.New("order total does not map to a positive credit amount")
	ErrTransactionFailure   = errors.New("ledger transaction failed")
)

// errAlreadyRecorded aborts a unit of work whose order row already exists or
// was already refunded by a concurrent delivery.
var errAlreadyRecorded = errors.New("order already recorded")

// errBalanceChanged rolls back a refund whose locked balance moved before the
// debit landed.
var errBalanceChanged = errors.New("balance changed during refund")
