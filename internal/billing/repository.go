package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nhatro-erp/nhatro-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for bills. Line
// items live in a JSONB column so partial document-style updates stay
// cheap.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const billColumns = `id, building_id, room, customer_id, period, year, bill_date, due_day,
	services, total_amount, paid_amount, status, approved, is_termination_bill,
	contract_id, paid_date, created_at, updated_at`

// CreateBill inserts a bill and returns its id.
func (r *Repository) CreateBill(ctx context.Context, b Bill) (int64, error) {
	servicesJSON, err := json.Marshal(b.Services)
	if err != nil {
		return 0, fmt.Errorf("marshal services: %w", err)
	}
	query := `
		INSERT INTO bills (
			building_id, room, customer_id, period, year, bill_date, due_day,
			services, total_amount, paid_amount, status, approved,
			is_termination_bill, contract_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		RETURNING id`

	var contractID any
	if b.ContractID > 0 {
		contractID = b.ContractID
	}

	var id int64
	err = r.pool.QueryRow(ctx, query,
		b.BuildingID, b.Room, b.CustomerID, b.Period, b.Year, b.BillDate, b.DueDay,
		servicesJSON, b.TotalAmount, b.PaidAmount, string(b.Status), b.Approved,
		b.IsTerminationBill, contractID,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	var status string
	var servicesJSON []byte
	var contractID *int64
	err := row.Scan(
		&b.ID, &b.BuildingID, &b.Room, &b.CustomerID, &b.Period, &b.Year, &b.BillDate, &b.DueDay,
		&servicesJSON, &b.TotalAmount, &b.PaidAmount, &status, &b.Approved, &b.IsTerminationBill,
		&contractID, &b.PaidDate, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBillNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status = Status(status)
	if contractID != nil {
		b.ContractID = *contractID
	}
	if err := json.Unmarshal(servicesJSON, &b.Services); err != nil {
		return nil, fmt.Errorf("unmarshal services: %w", err)
	}
	return &b, nil
}

// GetBill retrieves a bill by id.
func (r *Repository) GetBill(ctx context.Context, id int64) (*Bill, error) {
	return scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id))
}

// UpdateBill applies a merge-style partial update.
func (r *Repository) UpdateBill(ctx context.Context, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+1)
	argNum := 1
	for col, val := range updates {
		if col == "services" {
			data, err := json.Marshal(val)
			if err != nil {
				return fmt.Errorf("marshal services: %w", err)
			}
			val = data
		}
		if s, ok := val.(Status); ok {
			val = string(s)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argNum))
		args = append(args, val)
		argNum++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE bills SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argNum)
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

// DeleteBill removes a bill.
func (r *Repository) DeleteBill(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

// ListBills returns bills matching the filter and the total count.
func (r *Repository) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, int, error) {
	where := []string{"1=1"}
	args := []any{}
	argNum := 1

	add := func(clause string, val any) {
		where = append(where, fmt.Sprintf(clause, argNum))
		args = append(args, val)
		argNum++
	}

	if req.BuildingID > 0 {
		add("building_id = $%d", req.BuildingID)
	}
	if req.Room != "" {
		add("room = $%d", req.Room)
	}
	if req.CustomerID > 0 {
		add("customer_id = $%d", req.CustomerID)
	}
	if req.Period > 0 {
		add("period = $%d", req.Period)
	}
	if req.Year > 0 {
		add("year = $%d", req.Year)
	}
	if req.Status != "" {
		add("status = $%d", string(req.Status))
	}
	if req.Approved != nil {
		add("approved = $%d", *req.Approved)
	}

	whereClause := strings.Join(where, " AND ")
	countArgs := append([]any{}, args...)

	query := "SELECT " + billColumns + " FROM bills WHERE " + whereClause + " ORDER BY year DESC, period DESC, room"
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, req.Limit)
		argNum++
	}
	if req.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, req.Offset)
	}

	var bills []Bill
	var total int
	// Count and page read the same snapshot.
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM bills WHERE "+whereClause, countArgs...).Scan(&total); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			b, err := scanBill(rows)
			if err != nil {
				return err
			}
			bills = append(bills, *b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return bills, total, nil
}

// PreviousBill finds the most recent regular bill for a room before
// the given period, used to seed meter readings.
func (r *Repository) PreviousBill(ctx context.Context, buildingID int64, room string, year, period int) (*Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills
		WHERE building_id = $1 AND room = $2 AND NOT is_termination_bill
		AND (year < $3 OR (year = $3 AND period < $4))
		ORDER BY year DESC, period DESC
		LIMIT 1`
	return scanBill(r.pool.QueryRow(ctx, query, buildingID, room, year, period))
}

// TerminationBillByContract finds the wind-down bill for a lease.
func (r *Repository) TerminationBillByContract(ctx context.Context, contractID int64) (*Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills
		WHERE is_termination_bill AND contract_id = $1
		LIMIT 1`
	return scanBill(r.pool.QueryRow(ctx, query, contractID))
}
