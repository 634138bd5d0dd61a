package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/khalidmaz/e-learning-market/core/course"
)

// Cart is the server-side mirror of a logged-in user's selection. At most
// one item per course may exist (first add wins).
type Cart struct {
	Items      []course.Course `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type Item struct {
	UserID    string    `json:"-" db:"user_id"`
	CourseID  int64     `json:"courseId" db:"course_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ItemNew struct {
	CourseID int64 `json:"courseId" validate:"required"`
}
