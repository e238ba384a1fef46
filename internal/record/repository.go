package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrCategoryNotFound means the referenced category does not exist or
// belongs to another user.
var ErrCategoryNotFound = errors.New("category not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context, userID int64) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, type, description, amount, date
		FROM financial_records
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list financial records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.CategoryID, &rec.Type, &rec.Description, &rec.Amount, &rec.Date); err != nil {
			return nil, fmt.Errorf("scan financial record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate financial records: %w", err)
	}

	return records, nil
}

func (r *Repository) Get(ctx context.Context, id, userID int64) (Record, error) {
	var rec Record
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, category_id, type, description, amount, date
		FROM financial_records
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&rec.ID, &rec.UserID, &rec.CategoryID, &rec.Type, &rec.Description, &rec.Amount, &rec.Date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("query financial record: %w", err)
	}

	return rec, nil
}

// Create inserts the record only when the category belongs to the user; the
// ownership check and the insert are one statement.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO financial_records (user_id, category_id, type, description, amount, date)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (
			SELECT 1 FROM categories WHERE id = $2 AND user_id = $1
		)
		RETURNING id
	`, rec.UserID, rec.CategoryID, rec.Type, rec.Description, rec.Amount, rec.Date.UTC()).Scan(&rec.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrCategoryNotFound
		}
		return Record{}, fmt.Errorf("insert financial record: %w", err)
	}

	return rec, nil
}

func (r *Repository) Update(ctx context.Context, rec Record) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE financial_records
		SET category_id = $3, type = $4, description = $5, amount = $6, date = $7
		WHERE id = $1 AND user_id = $2
		  AND EXISTS (
			SELECT 1 FROM categories WHERE id = $3 AND user_id = $2
		  )
	`, rec.ID, rec.UserID, rec.CategoryID, rec.Type, rec.Description, rec.Amount, rec.Date.UTC())
	if err != nil {
		return fmt.Errorf("update financial record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update financial record rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCategoryNotFound
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM financial_records
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete financial record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete financial record rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Summarize totals the user's records over an optional [start, end] period,
// overall and per category.
func (r *Repository) Summarize(ctx context.Context, userID int64, start, end sql.NullTime) (Summary, error) {
	summary := Summary{ByCategory: make([]CategorySummary, 0)}

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0)
		FROM financial_records
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR date >= $2)
		  AND ($3::timestamptz IS NULL OR date <= $3)
	`, userID, start, end).Scan(&summary.TotalIncome, &summary.TotalExpense)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize financial records: %w", err)
	}
	summary.Balance = summary.TotalIncome - summary.TotalExpense

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			c.id,
			c.name,
			COALESCE(SUM(fr.amount) FILTER (WHERE fr.type = 'income'), 0),
			COALESCE(SUM(fr.amount) FILTER (WHERE fr.type = 'expense'), 0)
		FROM categories c
		JOIN financial_records fr ON fr.category_id = c.id
		WHERE c.user_id = $1
		  AND ($2::timestamptz IS NULL OR fr.date >= $2)
		  AND ($3::timestamptz IS NULL OR fr.date <= $3)
		GROUP BY c.id, c.name
		ORDER BY c.id
	`, userID, start, end)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize by category: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cs CategorySummary
		if err := rows.Scan(&cs.CategoryID, &cs.CategoryName, &cs.TotalIncome, &cs.TotalExpense); err != nil {
			return Summary{}, fmt.Errorf("scan category summary: %w", err)
		}
		summary.ByCategory = append(summary.ByCategory, cs)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("iterate category summaries: %w", err)
	}

	return summary, nil
}
