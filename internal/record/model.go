package record

import "time"

const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

type Record struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"-"`
	CategoryID  int64     `json:"category_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
}

// Patch is a partial update where nil means "leave unchanged". Fields are
// applied one by one; there is no reflective field copying.
type Patch struct {
	Type        *string    `json:"type"`
	Description *string    `json:"description"`
	Amount      *float64   `json:"amount"`
	Date        *time.Time `json:"date"`
	CategoryID  *int64     `json:"category_id"`
}

func (p Patch) ApplyTo(rec *Record) {
	if p.Type != nil {
		rec.Type = *p.Type
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
	if p.Amount != nil {
		rec.Amount = *p.Amount
	}
	if p.Date != nil {
		rec.Date = *p.Date
	}
	if p.CategoryID != nil {
		rec.CategoryID = *p.CategoryID
	}
}

func validType(t string) bool {
	return t == TypeIncome || t == TypeExpense
}

// Summary aggregates a user's records over a period; it is the data the
// dashboard and report renderers consume.
type Summary struct {
	TotalIncome  float64           `json:"total_income"`
	TotalExpense float64           `json:"total_expense"`
	Balance      float64           `json:"balance"`
	ByCategory   []CategorySummary `json:"by_category"`
}

type CategorySummary struct {
	CategoryID   int64   `json:"category_id"`
	CategoryName string  `json:"category_name"`
	TotalIncome  float64 `json:"total_income"`
	TotalExpense float64 `json:"total_expense"`
}
