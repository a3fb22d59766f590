package billing

import (
	"sort"
	"time"

	"github.com/nhatro-erp/nhatro-erp/internal/shared"
)

// CatalogService is one entry of a building's service catalog.
type CatalogService struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Unit      string `json:"unit"`
}

// RoomContext is the master data needed to assemble a bill for a room.
// When no active lease exists HasContract is false and prices are left
// at zero so the operator can hand-enter incidental charges.
type RoomContext struct {
	HasContract            bool
	ContractID             int64
	CustomerID             int64
	RentPrice              int64
	InitialElectricReading int64
	InitialWaterReading    int64
	// ServiceQuantities maps folded catalog service names to the
	// quantity contracted in the lease.
	ServiceQuantities map[string]float64
	Catalog           []CatalogService
}

// AssembleInput bundles everything the assembler consumes.
type AssembleInput struct {
	Year     int
	Period   int
	Room     RoomContext
	Previous *Bill
}

const (
	electricKeyword = "điện"
	waterKeyword    = "nước"
)

func isVolumetricUnit(unit string) bool {
	folded := shared.FoldVietnamese(unit)
	return folded == "m3" || folded == "m³" || folded == "khoi" || folded == "m3/thang"
}

// classify decides which line type a catalog service becomes.
func classify(svc CatalogService) LineType {
	if shared.ContainsFolded(svc.Name, electricKeyword) {
		return LineElectric
	}
	if shared.ContainsFolded(svc.Name, waterKeyword) && isVolumetricUnit(svc.Unit) {
		return LineWaterMeter
	}
	return LineService
}

// previousLine finds the matching line on last month's bill.
func previousLine(prev *Bill, typ LineType, name string) *LineItem {
	if prev == nil {
		return nil
	}
	for i := range prev.Services {
		li := &prev.Services[i]
		if li.Type != typ {
			continue
		}
		if typ == LineService && !shared.ContainsFolded(li.Name, name) && !shared.ContainsFolded(name, li.Name) {
			continue
		}
		return li
	}
	return nil
}

// Assemble builds the initial line items for a new bill: one rent line
// covering the full month, then the building catalog with meter lines
// seeded from the previous bill.
func Assemble(in AssembleInput) []LineItem {
	monthStart := time.Date(in.Year, time.Month(in.Period), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := time.Date(in.Year, time.Month(in.Period), DaysInMonth(in.Year, time.Month(in.Period)), 0, 0, 0, 0, time.UTC)

	rent := LineItem{
		Type:     LineRent,
		Name:     "Tiền thuê phòng",
		FromDate: &monthStart,
		ToDate:   &monthEnd,
	}
	if in.Room.HasContract {
		rent.UnitPrice = in.Room.RentPrice
	}

	var lines []LineItem
	for _, svc := range in.Room.Catalog {
		li := LineItem{Type: classify(svc), Name: svc.Name}
		if in.Room.HasContract {
			li.UnitPrice = svc.UnitPrice
		}
		switch li.Type {
		case LineElectric, LineWaterMeter:
			seed := in.Room.InitialElectricReading
			if li.Type == LineWaterMeter {
				seed = in.Room.InitialWaterReading
			}
			if prev := previousLine(in.Previous, li.Type, svc.Name); prev != nil && prev.NewReading != nil {
				seed = *prev.NewReading
			}
			old := seed
			li.OldReading = &old
			// NewReading stays blank for the operator to enter.
		default:
			li.Quantity = 1
			if prev := previousLine(in.Previous, LineService, svc.Name); prev != nil && prev.Quantity > 0 {
				li.Quantity = prev.Quantity
			}
			if qty, ok := in.Room.ServiceQuantities[shared.FoldVietnamese(svc.Name)]; ok && qty > 0 {
				li.Quantity = qty
			}
		}
		lines = append(lines, li)
	}

	// Electric first, water second, the rest in catalog order.
	sort.SliceStable(lines, func(i, j int) bool {
		return lineRank(lines[i].Type) < lineRank(lines[j].Type)
	})

	out := make([]LineItem, 0, len(lines)+1)
	out = append(out, rent)
	out = append(out, lines...)
	out, _, _ = Recompute(out)
	return out
}

func lineRank(t LineType) int {
	switch t {
	case LineElectric:
		return 0
	case LineWaterMeter:
		return 1
	default:
		return 2
	}
}
