package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTransaction inserts a transaction with its items as JSONB.
func (r *Repository) CreateTransaction(ctx context.Context, tx Transaction) (int64, error) {
	itemsJSON, err := json.Marshal(tx.Items)
	if err != nil {
		return 0, fmt.Errorf("marshal items: %w", err)
	}
	query := `
		INSERT INTO transactions (
			type, code, building_id, room, customer_id, bill_id, account_id,
			date, items, approved, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id`

	var id int64
	err = r.pool.QueryRow(ctx, query,
		string(tx.Type),
		tx.Code,
		tx.BuildingID,
		tx.Room,
		tx.CustomerID,
		tx.BillID,
		tx.AccountID,
		tx.Date,
		itemsJSON,
		tx.Approved,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteTransactionsByBill removes all transactions for a bill.
func (r *Repository) DeleteTransactionsByBill(ctx context.Context, billID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE bill_id = $1`, billID)
	return err
}

// ListTransactionsByBill returns transactions referencing a bill.
func (r *Repository) ListTransactionsByBill(ctx context.Context, billID int64) ([]Transaction, error) {
	query := `
		SELECT id, type, code, building_id, room, customer_id, bill_id,
			account_id, date, items, approved, created_at, updated_at
		FROM transactions
		WHERE bill_id = $1
		ORDER BY date, id`

	rows, err := r.pool.Query(ctx, query, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var tx Transaction
		var typ string
		var itemsJSON []byte
		err := rows.Scan(
			&tx.ID, &typ, &tx.Code, &tx.BuildingID, &tx.Room, &tx.CustomerID, &tx.BillID,
			&tx.AccountID, &tx.Date, &itemsJSON, &tx.Approved, &tx.CreatedAt, &tx.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		tx.Type = TransactionType(typ)
		if err := json.Unmarshal(itemsJSON, &tx.Items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ListCategories returns the category catalog.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, type FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetTransaction retrieves one transaction by id.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	query := `
		SELECT id, type, code, building_id, room, customer_id, bill_id,
			account_id, date, items, approved, created_at, updated_at
		FROM transactions
		WHERE id = $1`

	var tx Transaction
	var typ string
	var itemsJSON []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&tx.ID, &typ, &tx.Code, &tx.BuildingID, &tx.Room, &tx.CustomerID, &tx.BillID,
		&tx.AccountID, &tx.Date, &itemsJSON, &tx.Approved, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	tx.Type = TransactionType(typ)
	if err := json.Unmarshal(itemsJSON, &tx.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	return &tx, nil
}
