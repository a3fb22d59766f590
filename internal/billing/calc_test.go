package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func i64(v int64) *int64 { return &v }

func TestDaysInMonth(t *testing.T) {
	require.Equal(t, 30, DaysInMonth(2025, time.June))
	require.Equal(t, 31, DaysInMonth(2025, time.July))
	require.Equal(t, 28, DaysInMonth(2025, time.February))
	require.Equal(t, 29, DaysInMonth(2024, time.February))
}

func TestSpanDaysInclusive(t *testing.T) {
	require.Equal(t, 1, SpanDays(*date(2025, time.June, 1), *date(2025, time.June, 1)))
	require.Equal(t, 15, SpanDays(*date(2025, time.June, 1), *date(2025, time.June, 15)))
	require.Equal(t, 30, SpanDays(*date(2025, time.June, 1), *date(2025, time.June, 30)))
}

func TestComputeAmount(t *testing.T) {
	cases := []struct {
		name string
		line LineItem
		want int64
	}{
		{
			name: "rent full month",
			line: LineItem{Type: LineRent, UnitPrice: 3000000, FromDate: date(2025, time.June, 1), ToDate: date(2025, time.June, 30)},
			want: 3000000,
		},
		{
			name: "rent half month",
			line: LineItem{Type: LineRent, UnitPrice: 3000000, FromDate: date(2025, time.June, 1), ToDate: date(2025, time.June, 15)},
			want: 1500000,
		},
		{
			name: "rent without dates",
			line: LineItem{Type: LineRent, UnitPrice: 3000000},
			want: 3000000,
		},
		{
			name: "electric meter delta",
			line: LineItem{Type: LineElectric, UnitPrice: 3500, OldReading: i64(100), NewReading: i64(150)},
			want: 175000,
		},
		{
			name: "reversed readings clamp to zero",
			line: LineItem{Type: LineElectric, UnitPrice: 3500, OldReading: i64(150), NewReading: i64(100)},
			want: 0,
		},
		{
			name: "water meter",
			line: LineItem{Type: LineWaterMeter, UnitPrice: 15000, OldReading: i64(10), NewReading: i64(18)},
			want: 120000,
		},
		{
			name: "meter missing new reading",
			line: LineItem{Type: LineWaterMeter, UnitPrice: 15000, OldReading: i64(10)},
			want: 0,
		},
		{
			name: "service default quantity one",
			line: LineItem{Type: LineService, UnitPrice: 100000},
			want: 100000,
		},
		{
			name: "service quantity two",
			line: LineItem{Type: LineService, UnitPrice: 100000, Quantity: 2},
			want: 200000,
		},
		{
			name: "service prorates the total",
			line: LineItem{Type: LineService, UnitPrice: 100000, Quantity: 2, FromDate: date(2025, time.June, 1), ToDate: date(2025, time.June, 15)},
			want: 100000,
		},
		{
			name: "custom follows service rules",
			line: LineItem{Type: LineCustom, UnitPrice: 50000, Quantity: 3},
			want: 150000,
		},
		{
			name: "termination is always zero",
			line: LineItem{Type: LineTermination, UnitPrice: 999999},
			want: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeAmount(tc.line)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestComputeAmountUnknownType(t *testing.T) {
	_, err := ComputeAmount(LineItem{Type: "deposit"})
	require.ErrorIs(t, err, ErrUnknownLineType)
}

func TestComputeAmountRoundsHalfAwayFromZero(t *testing.T) {
	// 31-day month, one day of 100,000: 100000/31 = 3225.8... -> 3226.
	got, err := ComputeAmount(LineItem{
		Type:      LineRent,
		UnitPrice: 100000,
		FromDate:  date(2025, time.July, 1),
		ToDate:    date(2025, time.July, 1),
	})
	require.NoError(t, err)
	require.Equal(t, int64(3226), got)
}

func TestRecompute(t *testing.T) {
	services := []LineItem{
		{Type: LineRent, UnitPrice: 3000000},
		{Type: LineElectric, UnitPrice: 3500, OldReading: i64(100), NewReading: i64(150)},
		{Type: LineService, Name: "Internet", UnitPrice: 100000},
	}
	out, total, err := Recompute(services)
	require.NoError(t, err)
	require.Equal(t, int64(3275000), total)
	require.Equal(t, int64(3000000), out[0].Amount)
	require.Equal(t, int64(175000), out[1].Amount)
	require.Equal(t, float64(50), out[1].Quantity)
	require.Equal(t, int64(100000), out[2].Amount)
	// Input is not mutated.
	require.Zero(t, services[0].Amount)
}

func TestRecomputeRejectsUnknownType(t *testing.T) {
	_, _, err := Recompute([]LineItem{{Type: "mystery", UnitPrice: 1}})
	require.ErrorIs(t, err, ErrUnknownLineType)
}
