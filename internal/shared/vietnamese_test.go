package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFoldVietnamese(t *testing.T) {
	cases := map[string]string{
		"Tiền hóa đơn": "tien hoa don",
		"Điện":         "dien",
		"Nước sạch":    "nuoc sach",
		"  Rác  ":      "rac",
		"dien":         "dien",
	}
	for in, want := range cases {
		require.Equal(t, want, FoldVietnamese(in), "input %q", in)
	}
}

func TestContainsFolded(t *testing.T) {
	require.True(t, ContainsFolded("Tiền điện tháng 5", "điện"))
	require.True(t, ContainsFolded("NUOC SINH HOAT", "nước"))
	require.False(t, ContainsFolded("Phí gửi xe", "điện"))
}
