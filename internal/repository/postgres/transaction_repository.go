package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finance-tracker/backend/internal/domain"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, user_id, amount, type, category, description, date, tags, location, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	tx := &domain.Transaction{}
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Amount,
		&tx.Type,
		&tx.Category,
		&tx.Description,
		&tx.Date,
		&tx.Tags,
		&tx.Location,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *TransactionRepository) Create(tx *domain.Transaction) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO transactions (id, user_id, amount, type, category, description, date, tags, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	now := time.Now()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	_, err := r.db.Exec(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Amount,
		tx.Type,
		tx.Category,
		tx.Description,
		tx.Date,
		tx.Tags,
		tx.Location,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	return err
}

func (r *TransactionRepository) GetByID(userID, id uuid.UUID) (*domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND user_id = $2`
	return scanTransaction(r.db.QueryRow(ctx, query, id, userID))
}

func (r *TransactionRepository) ListByUser(userID uuid.UUID, limit int) ([]*domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY date DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *TransactionRepository) ListByUserSince(userID uuid.UUID, since time.Time) ([]*domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND date >= $2 ORDER BY date DESC`
	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var transactions []*domain.Transaction
	for rows.Next() {
		tx := &domain.Transaction{}
		if err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Amount,
			&tx.Type,
			&tx.Category,
			&tx.Description,
			&tx.Date,
			&tx.Tags,
			&tx.Location,
			&tx.CreatedAt,
			&tx.UpdatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func (r *TransactionRepository) Update(tx *domain.Transaction) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		UPDATE transactions
		SET amount = $3, type = $4, category = $5, description = $6, date = $7, tags = $8, location = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2
	`

	tx.UpdatedAt = time.Now()
	_, err := r.db.Exec(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Amount,
		tx.Type,
		tx.Category,
		tx.Description,
		tx.Date,
		tx.Tags,
		tx.Location,
		tx.UpdatedAt,
	)
	return err
}

func (r *TransactionRepository) Delete(userID, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `DELETE FROM transactions WHERE id = $1 AND user_id = $2`
	_, err := r.db.Exec(ctx, query, id, userID)
	return err
}

func (r *TransactionRepository) Summarize(userID uuid.UUID) (*domain.Summary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'credit'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'debit'), 0)
		FROM transactions WHERE user_id = $1
	`

	summary := &domain.Summary{}
	if err := r.db.QueryRow(ctx, query, userID).Scan(&summary.TotalCredit, &summary.TotalDebit); err != nil {
		return nil, err
	}
	summary.Balance = summary.TotalCredit - summary.TotalDebit
	return summary, nil
}

func (r *TransactionRepository) CategoryStats(userID uuid.UUID, since time.Time) ([]*domain.CategoryStat, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `
		SELECT category, type, SUM(amount), COUNT(*)
		FROM transactions
		WHERE user_id = $1 AND date >= $2
		GROUP BY category, type
		ORDER BY SUM(amount) DESC
	`

	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*domain.CategoryStat
	for rows.Next() {
		s := &domain.CategoryStat{}
		if err := rows.Scan(&s.Category, &s.Type, &s.Total, &s.Count); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *TransactionRepository) MonthlyStats(userID uuid.UUID, since time.Time) ([]*domain.MonthlyStat, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	query := `
		SELECT EXTRACT(YEAR FROM date)::int, EXTRACT(MONTH FROM date)::int, type, SUM(amount)
		FROM transactions
		WHERE user_id = $1 AND date >= $2
		GROUP BY 1, 2, type
		ORDER BY 1, 2
	`

	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []*domain.MonthlyStat
	for rows.Next() {
		s := &domain.MonthlyStat{}
		if err := rows.Scan(&s.Year, &s.Month, &s.Type, &s.Total); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
