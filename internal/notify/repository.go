package notify

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists admin notifications in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateAdminNotification inserts one record.
func (r *Repository) CreateAdminNotification(ctx context.Context, n AdminNotification) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO admin_notifications (type, bill_id, customer_id, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id`,
		n.Type, n.BillID, n.CustomerID, n.Title, n.Body,
	).Scan(&id)
	return id, err
}

// DeleteByBillAndType removes the admin notifications for a bill of one type.
func (r *Repository) DeleteByBillAndType(ctx context.Context, billID int64, typ string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM admin_notifications WHERE bill_id = $1 AND type = $2`, billID, typ)
	return err
}

// ListByBill returns admin notifications for a bill, newest first.
func (r *Repository) ListByBill(ctx context.Context, billID int64) ([]AdminNotification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, type, bill_id, customer_id, title, body, created_at
		FROM admin_notifications
		WHERE bill_id = $1
		ORDER BY created_at DESC`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminNotification
	for rows.Next() {
		var n AdminNotification
		if err := rows.Scan(&n.ID, &n.Type, &n.BillID, &n.CustomerID, &n.Title, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
