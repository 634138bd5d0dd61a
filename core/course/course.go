package course

import (
	"time"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID          int64           `json:"id" db:"course_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Icon        string          `json:"icon" db:"icon_url"`
	Price       decimal.Decimal `json:"price" db:"price"`
	LevelID     int64           `json:"levelId" db:"level_id"`
	SubjectID   int64           `json:"subjectId" db:"subject_id"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
	Version     int             `json:"-" db:"version"`
}
