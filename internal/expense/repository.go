package expense

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fkhayef/splitwise/internal/expense/draft"
)

// PostgresRepository handles expense persistence
type PostgresRepository struct {
	db *sql.DB
}

// NewRepository creates a new expense repository
func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const expenseColumns = `e.id, e.group_id, e.friend_id, e.created_by, e.description, e.amount, e.category,
		       e.expense_date, e.notes, e.split_type, e.created_at, u.username`

// CreateExpense inserts an expense and its paid and owed rows in one transaction
func (r *PostgresRepository) CreateExpense(ctx context.Context, e *NewExpense) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO expenses (group_id, friend_id, created_by, description, amount, category, expense_date, notes, split_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	err = tx.QueryRowContext(ctx, query,
		e.GroupID,
		e.FriendID,
		e.CreatedBy,
		e.Description,
		e.Amount,
		e.Category,
		e.Date,
		e.Notes,
		e.SplitType,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create expense: %w", err)
	}

	if err := insertAllocations(ctx, tx, "expense_payments", id, e.PaidBy); err != nil {
		return 0, err
	}
	if err := insertAllocations(ctx, tx, "expense_shares", id, e.OwedBy); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit expense: %w", err)
	}

	return id, nil
}

// table is one of the two allocation tables, never user input.
func insertAllocations(ctx context.Context, tx *sql.Tx, table string, expenseID int64, rows []draft.Allocation) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (expense_id, user_id, position, amount) VALUES ($1, $2, $3, $4)`, table))
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i, a := range rows {
		if _, err := stmt.ExecContext(ctx, expenseID, a.UserID, i, a.Amount); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

// GetExpenseByID retrieves an expense by its ID
func (r *PostgresRepository) GetExpenseByID(ctx context.Context, id int64) (*Expense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM expenses e
		JOIN users u ON e.created_by = u.id
		WHERE e.id = $1
	`

	expense, err := scanExpense(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return expense, nil
}

// GetAllocations retrieves the paid and owed rows of an expense in stored order
func (r *PostgresRepository) GetAllocations(ctx context.Context, expenseID int64) ([]*Allocation, []*Allocation, error) {
	paidBy, err := r.listAllocations(ctx, "expense_payments", expenseID)
	if err != nil {
		return nil, nil, err
	}
	owedBy, err := r.listAllocations(ctx, "expense_shares", expenseID)
	if err != nil {
		return nil, nil, err
	}
	return paidBy, owedBy, nil
}

func (r *PostgresRepository) listAllocations(ctx context.Context, table string, expenseID int64) ([]*Allocation, error) {
	query := fmt.Sprintf(`
		SELECT a.user_id, a.amount, u.username
		FROM %s a
		JOIN users u ON a.user_id = u.id
		WHERE a.expense_id = $1
		ORDER BY a.position
	`, table)

	rows, err := r.db.QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", table, err)
	}
	defer rows.Close()

	var allocations []*Allocation
	for rows.Next() {
		a := &Allocation{}
		if err := rows.Scan(&a.UserID, &a.Amount, &a.Username); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		allocations = append(allocations, a)
	}

	return allocations, rows.Err()
}

// ListExpensesByGroupID retrieves all expenses for a group
func (r *PostgresRepository) ListExpensesByGroupID(ctx context.Context, groupID int64, limit, offset int) ([]*Expense, int, error) {
	// Get total count
	var total int
	countQuery := `SELECT COUNT(*) FROM expenses WHERE group_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, groupID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	query := `
		SELECT ` + expenseColumns + `
		FROM expenses e
		JOIN users u ON e.created_by = u.id
		WHERE e.group_id = $1
		ORDER BY e.expense_date DESC, e.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	return expenses, total, nil
}

// DeleteExpense deletes an expense; its paid and owed rows cascade
func (r *PostgresRepository) DeleteExpense(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrExpenseNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*Expense, error) {
	expense := &Expense{}
	err := row.Scan(
		&expense.ID,
		&expense.GroupID,
		&expense.FriendID,
		&expense.CreatedBy,
		&expense.Description,
		&expense.Amount,
		&expense.Category,
		&expense.Date,
		&expense.Notes,
		&expense.SplitType,
		&expense.CreatedAt,
		&expense.CreatedByUsername,
	)
	if err != nil {
		return nil, err
	}
	return expense, nil
}
