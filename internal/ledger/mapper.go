package ledger

import (
	"github.com/nhatro-erp/nhatro-erp/internal/shared"
)

// DefaultIncomeCategoryName is the sink for collected bill amounts.
const DefaultIncomeCategoryName = "Tiền hóa đơn"

// Legacy per-service bucket names, still used by reporting exports.
const (
	bucketElectric = "Tiền điện"
	bucketWater    = "Tiền nước"
	bucketRent     = "Tiền thuê + phí dịch vụ"
)

func findCategoryByName(categories []Category, name string) (Category, bool) {
	for _, c := range categories {
		if shared.FoldVietnamese(c.Name) == shared.FoldVietnamese(name) {
			return c, true
		}
	}
	return Category{}, false
}

func firstIncomeCategory(categories []Category) (Category, bool) {
	for _, c := range categories {
		if c.Type == string(TypeIncome) {
			return c, true
		}
	}
	return Category{}, false
}

// DefaultIncomeItems maps a bill total to a single item under the
// default bill-income category, falling back to the first income
// category when it does not exist.
func DefaultIncomeItems(total int64, categories []Category) ([]TransactionItem, error) {
	cat, ok := findCategoryByName(categories, DefaultIncomeCategoryName)
	if !ok {
		cat, ok = firstIncomeCategory(categories)
	}
	if !ok {
		return nil, ErrNoIncomeCategory
	}
	return []TransactionItem{{Name: DefaultIncomeCategoryName, Amount: total, CategoryID: cat.ID}}, nil
}

// SplitByServiceType is the legacy mapper bucketing bill lines into
// electric, water, and rent-plus-services categories. It is not on the
// collect path; it is retained for reporting use.
func SplitByServiceType(lines []BillLine, categories []Category) ([]TransactionItem, error) {
	buckets := map[string]int64{}
	for _, l := range lines {
		switch l.Type {
		case "electric":
			buckets[bucketElectric] += l.Amount
		case "water_meter":
			buckets[bucketWater] += l.Amount
		default:
			buckets[bucketRent] += l.Amount
		}
	}
	var items []TransactionItem
	for _, name := range []string{bucketElectric, bucketWater, bucketRent} {
		amount, ok := buckets[name]
		if !ok || amount == 0 {
			continue
		}
		cat, found := findCategoryByName(categories, name)
		if !found {
			cat, found = firstIncomeCategory(categories)
		}
		if !found {
			return nil, ErrNoIncomeCategory
		}
		items = append(items, TransactionItem{Name: name, Amount: amount, CategoryID: cat.ID})
	}
	return items, nil
}

// ScaleItems reduces category items proportionally so they sum to the
// collected amount; any rounding remainder lands on the first item.
func ScaleItems(items []TransactionItem, amount, total int64) []TransactionItem {
	if total <= 0 || len(items) == 0 {
		return items
	}
	scaled := make([]TransactionItem, len(items))
	var sum int64
	for i, it := range items {
		it.Amount = roundDiv(it.Amount*amount, total)
		scaled[i] = it
		sum += it.Amount
	}
	scaled[0].Amount += amount - sum
	return scaled
}

// roundDiv divides rounding to nearest, half away from zero.
func roundDiv(n, d int64) int64 {
	if d == 0 {
		return 0
	}
	if (n >= 0) == (d >= 0) {
		return (n + d/2) / d
	}
	return (n - d/2) / d
}
