package tenancy

import (
	"errors"
	"time"
)

// LeaseStatus tracks where a lease sits in its life.
type LeaseStatus string

const (
	LeaseActive   LeaseStatus = "active"
	LeaseExpiring LeaseStatus = "expiring"
	LeaseExpired  LeaseStatus = "expired"
	// LeaseTerminated marks an early wind-down in progress.
	LeaseTerminated LeaseStatus = "terminated"
)

var (
	ErrBuildingNotFound   = errors.New("tenancy: building not found")
	ErrCustomerNotFound   = errors.New("tenancy: customer not found")
	ErrLeaseNotFound      = errors.New("tenancy: lease not found")
	ErrLeaseTerminated    = errors.New("tenancy: lease already terminated")
	ErrLeaseNotTerminated = errors.New("tenancy: lease is not terminated")
)

// CatalogRow is one billable service a building offers.
type CatalogRow struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Unit      string `json:"unit"`
}

// Building groups rooms under one address and carries the service
// catalog every bill in the building draws from.
type Building struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Address   string       `json:"address"`
	Catalog   []CatalogRow `json:"catalog"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Customer is a tenant.
type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Lease binds a customer to a room with agreed prices and the meter
// readings taken at move-in.
type Lease struct {
	ID         int64     `json:"id"`
	BuildingID int64     `json:"buildingId"`
	Room       string    `json:"room"`
	CustomerID int64     `json:"customerId"`
	RentPrice  int64     `json:"rentPrice"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	// InitialElectricReading and InitialWaterReading seed the first
	// bill's meters.
	InitialElectricReading int64 `json:"initialElectricReading"`
	InitialWaterReading    int64 `json:"initialWaterReading"`
	// ServiceQuantities maps catalog service names to contracted
	// quantities, e.g. number of occupants for a per-person fee.
	ServiceQuantities map[string]float64 `json:"serviceQuantities,omitempty"`
	Status            LeaseStatus        `json:"status"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// StatusForEndDate derives a lease status from its end date: expired
// when past, expiring when the end falls inside the warning window.
func StatusForEndDate(endDate, now time.Time, windowDays int) LeaseStatus {
	// Compare calendar days, not 24h intervals since the epoch, so the
	// boundary does not shift near midnight in non-UTC zones.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, time.UTC)
	if end.Before(today) {
		return LeaseExpired
	}
	if !end.After(today.AddDate(0, 0, windowDays)) {
		return LeaseExpiring
	}
	return LeaseActive
}
