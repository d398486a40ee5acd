package credits

import (
	"time"

	"github.com/angelmondragon/creditpacks-backend/pkg/db/models"
)

// Sufficiency answers whether a balance covers a required amount.
type Sufficiency struct {
	Sufficient     bool `json:"sufficient"`
	CurrentBalance int  `json:"current_balance"`
	Required       int  `json:"required"`
}

type ConsumeResult struct {
	CreditsConsumed int `json:"credits_consumed"`
	NewBalance      int `json:"new_balance"`
}

// OrderDTO is the purchase history shape returned to the account owner.
type OrderDTO struct {
	OrderID       string     `json:"order_id"`
	ProductID     string     `json:"product_id"`
	VariantID     *string    `json:"variant_id,omitempty"`
	Credits       int        `json:"credits"`
	OrderTotal    int64      `json:"order_total"`
	Status        string     `json:"status"`
	CustomerEmail string     `json:"customer_email"`
	CreatedAt     time.Time  `json:"created_at"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
}

func orderFromModel(m models.CreditOrder) OrderDTO {
	return OrderDTO{
		OrderID:       m.OrderID,
		ProductID:     m.ProductID,
		VariantID:     m.VariantID,
		Credits:       m.Credits,
		OrderTotal:    m.OrderTotal,
		Status:        m.Status.String(),
		CustomerEmail: m.CustomerEmail,
		CreatedAt:     m.CreatedAt,
		RefundedAt:    m.RefundedAt,
	}
}

// UsageDTO is one consume from the caller's audit trail.
type UsageDTO struct {
	ID           string    `json:"id"`
	Amount       int       `json:"amount"`
	Description  string    `json:"description"`
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

func usageFromModel(m models.CreditUsage) UsageDTO {
	return UsageDTO{
		ID:           m.ID,
		Amount:       m.Amount,
		Description:  m.Description,
		BalanceAfter: m.BalanceAfter,
		CreatedAt:    m.CreatedAt,
	}
}
