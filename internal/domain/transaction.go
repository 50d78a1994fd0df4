package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"
)

var TransactionCategories = []string{
	"food", "transport", "entertainment", "utilities", "healthcare",
	"education", "shopping", "travel", "investment", "salary",
	"freelance", "business", "rent", "insurance", "other",
}

type Transaction struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Tags        []string  `json:"tags,omitempty"`
	Location    string    `json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryStat aggregates one (category, type) bucket.
type CategoryStat struct {
	Category string  `json:"category"`
	Type     string  `json:"type"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// MonthlyStat aggregates one (year, month, type) bucket.
type MonthlyStat struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Type  string  `json:"type"`
	Total float64 `json:"total"`
}

// Summary holds the running totals for a set of transactions.
type Summary struct {
	TotalCredit float64 `json:"totalCredit"`
	TotalDebit  float64 `json:"totalDebit"`
	Balance     float64 `json:"balance"`
}

type TransactionRepository interface {
	Create(tx *Transaction) error
	GetByID(userID, id uuid.UUID) (*Transaction, error)
	ListByUser(userID uuid.UUID, limit int) ([]*Transaction, error)
	ListByUserSince(userID uuid.UUID, since time.Time) ([]*Transaction, error)
	Update(tx *Transaction) error
	Delete(userID, id uuid.UUID) error
	Summarize(userID uuid.UUID) (*Summary, error)
	CategoryStats(userID uuid.UUID, since time.Time) ([]*CategoryStat, error)
	MonthlyStats(userID uuid.UUID, since time.Time) ([]*MonthlyStat, error)
}
