package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	Created   Status = "created"
	Completed Status = "completed"
	Cancelled Status = "cancelled"
	Refunded  Status = "refunded"
	Expired   Status = "expired"
)

// transitions lists the allowed status moves. Everything else is rejected,
// which is what makes capture and cancel safe to retry.
var transitions = map[Status][]Status{
	Created:   {Completed, Cancelled, Expired},
	Completed: {Refunded},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const (
	ProviderPaypal = "paypal"
	ProviderStripe = "stripe"
)

type Order struct {
	ID         string          `json:"id" db:"order_id"`
	Reference  string          `json:"reference" db:"reference"`
	UserID     string          `json:"userId" db:"user_id"`
	Provider   string          `json:"provider" db:"provider"`
	ProviderID string          `json:"providerId" db:"provider_id"`
	CaptureID  string          `json:"captureId,omitempty" db:"capture_id"`
	Status     Status          `json:"status" db:"status"`
	Total      decimal.Decimal `json:"total" db:"total"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}

type Item struct {
	OrderID   string          `json:"orderId" db:"order_id"`
	CourseID  int64           `json:"courseId" db:"course_id"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}
