package core

import "testing"

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  string
	}{
		{"zero", 0, "R$ 0,00"},
		{"cents only", 0.5, "R$ 0,50"},
		{"no grouping", 150, "R$ 150,00"},
		{"thousands grouping", 1234.5, "R$ 1.234,50"},
		{"millions grouping", 1234567.89, "R$ 1.234.567,89"},
		{"negative", -150, "-R$ 150,00"},
		{"half-up rounding", 10.005, "R$ 10,01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBRL(tt.value); got != tt.want {
				t.Errorf("FormatBRL(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(25.0); got != "25,0%" {
		t.Errorf("FormatPercent(25.0) = %q, want %q", got, "25,0%")
	}
	if got := FormatPercent(12.34); got != "12,3%" {
		t.Errorf("FormatPercent(12.34) = %q, want %q", got, "12,3%")
	}
}
