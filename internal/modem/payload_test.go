package modem

import (
	"errors"
	"testing"
)

func TestMaxPayloadForDataRate(t *testing.T) {
	tests := []struct {
		name     string
		dataRate uint8
		want     int
	}{
		{"DR0", 0, 11},
		{"DR1", 1, 53},
		{"DR2", 2, 125},
		{"DR3", 3, 242},
		{"DR4", 4, 242},
		{"表外索引取最保守", 5, 11},
		{"表外最大索引", 255, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxPayloadForDataRate(tt.dataRate); got != tt.want {
				t.Fatalf("MaxPayloadForDataRate(%d) = %d, 期望 %d", tt.dataRate, got, tt.want)
			}
		})
	}
}

func TestValidatePayloadSize(t *testing.T) {
	// 每档边界：等于上限放行，超一字节拒绝
	for dr := uint8(0); dr <= DataRateMax; dr++ {
		limit := MaxPayloadForDataRate(dr)
		if err := ValidatePayloadSize(limit, dr); err != nil {
			t.Fatalf("DR%d 上限 %d 字节应放行: %v", dr, limit, err)
		}
		if err := ValidatePayloadSize(limit+1, dr); !errors.Is(err, ErrTooLarge) {
			t.Fatalf("DR%d 超限应拒绝: %v", dr, err)
		}
	}

	// 表外索引按最保守档校验
	if err := ValidatePayloadSize(11, 9); err != nil {
		t.Fatalf("表外索引11字节应放行: %v", err)
	}
	if err := ValidatePayloadSize(12, 9); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("表外索引12字节应拒绝: %v", err)
	}
}
