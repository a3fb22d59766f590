package billing

import (
	"fmt"
	"math"
	"time"
)

// DaysInMonth returns the calendar length of a month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SpanDays counts the days covered by a range, inclusive of both endpoints.
func SpanDays(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours()/24)) + 1
}

func roundVND(x float64) int64 {
	return int64(math.Round(x))
}

// prorate scales a full-month amount by the covered fraction of the
// month the range starts in.
func prorate(total int64, from, to time.Time) int64 {
	days := SpanDays(from, to)
	monthDays := DaysInMonth(from.Year(), from.Month())
	return roundVND(float64(total) * float64(days) / float64(monthDays))
}

// ComputeAmount calculates the amount for a single line item. It is a
// pure function: the line is not mutated.
func ComputeAmount(li LineItem) (int64, error) {
	switch li.Type {
	case LineRent:
		if li.FromDate == nil || li.ToDate == nil {
			return li.UnitPrice, nil
		}
		return prorate(li.UnitPrice, *li.FromDate, *li.ToDate), nil

	case LineElectric, LineWaterMeter:
		var prev, curr int64
		if li.OldReading != nil {
			prev = *li.OldReading
		}
		if li.NewReading != nil {
			curr = *li.NewReading
		}
		qty := curr - prev
		if qty < 0 {
			// Reversed readings clamp to zero rather than erroring.
			qty = 0
		}
		return qty * li.UnitPrice, nil

	case LineService, LineCustom:
		qty := li.Quantity
		if qty == 0 {
			qty = 1
		}
		// Prorate the total, not the unit price; rounding differs otherwise.
		total := roundVND(float64(li.UnitPrice) * qty)
		if li.FromDate != nil && li.ToDate != nil {
			return prorate(total, *li.FromDate, *li.ToDate), nil
		}
		return total, nil

	case LineTermination:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLineType, li.Type)
}

// MeterQuantity returns the billed consumption for a metered line.
func MeterQuantity(li LineItem) int64 {
	var prev, curr int64
	if li.OldReading != nil {
		prev = *li.OldReading
	}
	if li.NewReading != nil {
		curr = *li.NewReading
	}
	if curr < prev {
		return 0
	}
	return curr - prev
}

// Recompute fills in every line amount and returns the bill total.
func Recompute(services []LineItem) ([]LineItem, int64, error) {
	out := make([]LineItem, len(services))
	var total int64
	for i, li := range services {
		amount, err := ComputeAmount(li)
		if err != nil {
			return nil, 0, err
		}
		li.Amount = amount
		if li.Type == LineElectric || li.Type == LineWaterMeter {
			li.Quantity = float64(MeterQuantity(li))
		}
		out[i] = li
		total += amount
	}
	return out, total, nil
}
