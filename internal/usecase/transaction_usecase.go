package usecase

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finance-tracker/backend/internal/domain"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransaction  = errors.New("invalid transaction")
)

type TransactionUsecase struct {
	repo domain.TransactionRepository
	now  func() time.Time
}

func NewTransactionUsecase(repo domain.TransactionRepository) *TransactionUsecase {
	return &TransactionUsecase{repo: repo, now: time.Now}
}

// WithClock replaces the usecase clock. Intended for tests.
func (u *TransactionUsecase) WithClock(now func() time.Time) *TransactionUsecase {
	u.now = now
	return u
}

type TransactionInput struct {
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Tags        []string  `json:"tags"`
	Location    string    `json:"location"`
}

func (in *TransactionInput) normalize() error {
	if in.Amount == 0 || in.Type == "" || in.Category == "" || in.Description == "" {
		return fmt.Errorf("%w: amount, type, category, and description are required", ErrInvalidTransaction)
	}

	in.Amount = math.Abs(in.Amount)

	switch strings.ToLower(in.Type) {
	case "credit", "cr":
		in.Type = domain.TransactionTypeCredit
	case "debit", "dr":
		in.Type = domain.TransactionTypeDebit
	default:
		return fmt.Errorf("%w: type must be credit or debit", ErrInvalidTransaction)
	}

	in.Category = strings.ToLower(in.Category)
	if !validCategory(in.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidTransaction, in.Category)
	}

	return nil
}

func validCategory(category string) bool {
	for _, c := range domain.TransactionCategories {
		if c == category {
			return true
		}
	}
	return false
}

func (u *TransactionUsecase) Create(userID uuid.UUID, in *TransactionInput) (*domain.Transaction, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = u.now()
	}

	tx := &domain.Transaction{
		UserID:      userID,
		Amount:      in.Amount,
		Type:        in.Type,
		Category:    in.Category,
		Description: in.Description,
		Date:        date,
		Tags:        in.Tags,
		Location:    in.Location,
	}
	if err := u.repo.Create(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// List returns the user's most recent transactions together with the running
// credit/debit totals across all of their history.
func (u *TransactionUsecase) List(userID uuid.UUID, limit int) ([]*domain.Transaction, *domain.Summary, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	transactions, err := u.repo.ListByUser(userID, limit)
	if err != nil {
		return nil, nil, err
	}
	summary, err := u.repo.Summarize(userID)
	if err != nil {
		return nil, nil, err
	}
	return transactions, summary, nil
}

func (u *TransactionUsecase) Update(userID, id uuid.UUID, in *TransactionInput) (*domain.Transaction, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	tx, err := u.repo.GetByID(userID, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}

	tx.Amount = in.Amount
	tx.Type = in.Type
	tx.Category = in.Category
	tx.Description = in.Description
	if !in.Date.IsZero() {
		tx.Date = in.Date
	}
	tx.Tags = in.Tags
	tx.Location = in.Location

	if err := u.repo.Update(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (u *TransactionUsecase) Delete(userID, id uuid.UUID) error {
	tx, err := u.repo.GetByID(userID, id)
	if err != nil {
		return err
	}
	if tx == nil {
		return ErrTransactionNotFound
	}
	return u.repo.Delete(userID, id)
}

type TransactionStats struct {
	CategoryStats []*domain.CategoryStat `json:"categoryStats"`
	MonthlyStats  []*domain.MonthlyStat  `json:"monthlyStats"`
}

// Stats aggregates the user's transactions for the given period
// (week, month or year).
func (u *TransactionUsecase) Stats(userID uuid.UUID, period string) (*TransactionStats, error) {
	now := u.now()

	var since time.Time
	switch period {
	case "week":
		since = now.AddDate(0, 0, -7)
	case "year":
		since = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	default:
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}

	categoryStats, err := u.repo.CategoryStats(userID, since)
	if err != nil {
		return nil, err
	}
	monthlyStats, err := u.repo.MonthlyStats(userID, now.AddDate(0, -6, 0))
	if err != nil {
		return nil, err
	}

	return &TransactionStats{
		CategoryStats: categoryStats,
		MonthlyStats:  monthlyStats,
	}, nil
}
