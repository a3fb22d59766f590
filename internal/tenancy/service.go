package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhatro-erp/nhatro-erp/internal/billing"
	"github.com/nhatro-erp/nhatro-erp/internal/shared"
)

// RepositoryPort defines data access for master data.
type RepositoryPort interface {
	GetBuilding(ctx context.Context, id int64) (*Building, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	GetLease(ctx context.Context, id int64) (*Lease, error)
	ActiveLeaseByRoom(ctx context.Context, buildingID int64, room string) (*Lease, error)
	UpdateLease(ctx context.Context, id int64, updates map[string]any) error
	ListLeasesWithEndDates(ctx context.Context) ([]Lease, error)
}

// TerminationPort is the slice of the billing engine lease wind-down
// uses. The lease id doubles as the billing contract id.
type TerminationPort interface {
	CreateTerminationBill(ctx context.Context, in billing.TerminationInput) (*billing.Bill, error)
	DeleteTerminationBill(ctx context.Context, contractID, actorID int64) error
}

// ServiceConfig tunes lease status derivation.
type ServiceConfig struct {
	// ExpiringWindowDays is how far ahead a lease end date counts as
	// expiring rather than active.
	ExpiringWindowDays int
}

// Service owns buildings, customers and leases, and drives lease
// wind-down through the billing engine.
type Service struct {
	repo    RepositoryPort
	billing TerminationPort
	cfg     ServiceConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a tenancy service.
func NewService(repo RepositoryPort, billingPort TerminationPort, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.ExpiringWindowDays <= 0 {
		cfg.ExpiringWindowDays = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, billing: billingPort, cfg: cfg, logger: logger, now: time.Now}
}

// GetBuilding returns one building with its catalog.
func (s *Service) GetBuilding(ctx context.Context, id int64) (*Building, error) {
	return s.repo.GetBuilding(ctx, id)
}

// GetLease returns one lease.
func (s *Service) GetLease(ctx context.Context, id int64) (*Lease, error) {
	return s.repo.GetLease(ctx, id)
}

// RoomBillingContext resolves the master data bill assembly needs for
// one room. A vacant room still yields the building catalog so the
// operator can hand-enter charges.
func (s *Service) RoomBillingContext(ctx context.Context, buildingID int64, room string) (billing.RoomContext, error) {
	b, err := s.repo.GetBuilding(ctx, buildingID)
	if err != nil {
		return billing.RoomContext{}, fmt.Errorf("load building: %w", err)
	}
	catalog := make([]billing.CatalogService, len(b.Catalog))
	for i, row := range b.Catalog {
		catalog[i] = billing.CatalogService{Name: row.Name, UnitPrice: row.UnitPrice, Unit: row.Unit}
	}
	out := billing.RoomContext{Catalog: catalog}

	lease, err := s.repo.ActiveLeaseByRoom(ctx, buildingID, room)
	if errors.Is(err, ErrLeaseNotFound) {
		return out, nil
	}
	if err != nil {
		return billing.RoomContext{}, fmt.Errorf("load lease: %w", err)
	}

	out.HasContract = true
	out.ContractID = lease.ID
	out.CustomerID = lease.CustomerID
	out.RentPrice = lease.RentPrice
	out.InitialElectricReading = lease.InitialElectricReading
	out.InitialWaterReading = lease.InitialWaterReading
	if len(lease.ServiceQuantities) > 0 {
		out.ServiceQuantities = make(map[string]float64, len(lease.ServiceQuantities))
		for name, qty := range lease.ServiceQuantities {
			out.ServiceQuantities[shared.FoldVietnamese(name)] = qty
		}
	}
	return out, nil
}

// TerminateLease starts the wind-down: a termination bill is created
// and the lease moves to the terminated status.
func (s *Service) TerminateLease(ctx context.Context, leaseID, actorID int64) (*billing.Bill, error) {
	lease, err := s.repo.GetLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if lease.Status == LeaseTerminated {
		return nil, ErrLeaseTerminated
	}
	bill, err := s.billing.CreateTerminationBill(ctx, billing.TerminationInput{
		ContractID: lease.ID,
		BuildingID: lease.BuildingID,
		Room:       lease.Room,
		CustomerID: lease.CustomerID,
		ActorID:    actorID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLease(ctx, leaseID, map[string]any{"status": LeaseTerminated}); err != nil {
		return nil, fmt.Errorf("mark lease terminated: %w", err)
	}
	return bill, nil
}

// UnterminateLease retracts the wind-down: the termination bill is
// deleted and the lease status is re-derived from its end date.
func (s *Service) UnterminateLease(ctx context.Context, leaseID, actorID int64) (*Lease, error) {
	lease, err := s.repo.GetLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if lease.Status != LeaseTerminated {
		return nil, ErrLeaseNotTerminated
	}
	if err := s.billing.DeleteTerminationBill(ctx, lease.ID, actorID); err != nil {
		return nil, err
	}
	restored := StatusForEndDate(lease.EndDate, s.now(), s.cfg.ExpiringWindowDays)
	if err := s.repo.UpdateLease(ctx, leaseID, map[string]any{"status": restored}); err != nil {
		return nil, fmt.Errorf("restore lease status: %w", err)
	}
	lease.Status = restored
	return lease, nil
}

// RefreshLeaseStatuses re-derives every non-terminated lease status
// from its end date and reports how many changed. Run nightly.
func (s *Service) RefreshLeaseStatuses(ctx context.Context) (int, error) {
	leases, err := s.repo.ListLeasesWithEndDates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list leases: %w", err)
	}
	now := s.now()
	changed := 0
	for _, lease := range leases {
		next := StatusForEndDate(lease.EndDate, now, s.cfg.ExpiringWindowDays)
		if next == lease.Status {
			continue
		}
		if err := s.repo.UpdateLease(ctx, lease.ID, map[string]any{"status": next}); err != nil {
			return changed, fmt.Errorf("update lease %d: %w", lease.ID, err)
		}
		s.logger.Info("lease status changed",
			slog.Int64("lease_id", lease.ID),
			slog.String("from", string(lease.Status)),
			slog.String("to", string(next)))
		changed++
	}
	return changed, nil
}
