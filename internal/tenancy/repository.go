package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for buildings,
// customers and leases.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetBuilding retrieves a building with its service catalog.
func (r *Repository) GetBuilding(ctx context.Context, id int64) (*Building, error) {
	var b Building
	var catalogJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, address, catalog, created_at, updated_at
		FROM buildings WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.Address, &catalogJSON, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBuildingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(catalogJSON, &b.Catalog); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	return &b, nil
}

// GetCustomer retrieves a customer.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const leaseColumns = `id, building_id, room, customer_id, rent_price, start_date, end_date,
	initial_electric_reading, initial_water_reading, service_quantities, status,
	created_at, updated_at`

func scanLease(row pgx.Row) (*Lease, error) {
	var l Lease
	var status string
	var quantitiesJSON []byte
	err := row.Scan(
		&l.ID, &l.BuildingID, &l.Room, &l.CustomerID, &l.RentPrice, &l.StartDate, &l.EndDate,
		&l.InitialElectricReading, &l.InitialWaterReading, &quantitiesJSON, &status,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLeaseNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Status = LeaseStatus(status)
	if len(quantitiesJSON) > 0 {
		if err := json.Unmarshal(quantitiesJSON, &l.ServiceQuantities); err != nil {
			return nil, fmt.Errorf("unmarshal service quantities: %w", err)
		}
	}
	return &l, nil
}

// GetLease retrieves a lease by id.
func (r *Repository) GetLease(ctx context.Context, id int64) (*Lease, error) {
	return scanLease(r.pool.QueryRow(ctx, `SELECT `+leaseColumns+` FROM leases WHERE id = $1`, id))
}

// ActiveLeaseByRoom finds the current lease occupying a room. Expired
// and terminated leases do not count as occupancy.
func (r *Repository) ActiveLeaseByRoom(ctx context.Context, buildingID int64, room string) (*Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases
		WHERE building_id = $1 AND room = $2 AND status IN ('active', 'expiring')
		ORDER BY start_date DESC
		LIMIT 1`
	return scanLease(r.pool.QueryRow(ctx, query, buildingID, room))
}

// UpdateLease applies a merge-style partial update.
func (r *Repository) UpdateLease(ctx context.Context, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+1)
	argNum := 1
	for col, val := range updates {
		if s, ok := val.(LeaseStatus); ok {
			val = string(s)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argNum))
		args = append(args, val)
		argNum++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE leases SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argNum)
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrLeaseNotFound
	}
	return nil
}

// ListLeasesWithEndDates returns every non-terminated lease id with its
// end date, for the nightly status refresh.
func (r *Repository) ListLeasesWithEndDates(ctx context.Context) ([]Lease, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leaseColumns+` FROM leases WHERE status <> 'terminated'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
