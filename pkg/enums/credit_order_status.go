package enums

import "fmt"

// CreditOrderStatus tracks a purchased credit pack. Paid is the only state a
// refund may leave.
type CreditOrderStatus string

const (
	CreditOrderStatusPaid     CreditOrderStatus = "paid"
	CreditOrderStatusRefunded CreditOrderStatus = "refunded"
)

var validCreditOrderStatuses = []CreditOrderStatus{
	CreditOrderStatusPaid,
	CreditOrderStatusRefunded,
}

// String implements fmt.Stringer.
func (s CreditOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s CreditOrderStatus) IsValid() bool {
	for _, candidate := range validCreditOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCreditOrderStatus converts raw input into a CreditOrderStatus.
func ParseCreditOrderStatus(value string) (CreditOrderStatus, error) {
	for _, candidate := range validCreditOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit order status %q", value)
}
