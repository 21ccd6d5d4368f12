package security

import (
	"errors"
	"testing"
	"time"
)

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"500ms", 500 * time.Millisecond},
		{"30s", 30 * time.Second},
		{"15m", 15 * time.Minute},
		{"1h", time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"1y", 8766 * time.Hour},
		{"4y", (4*365 + 1) * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTTL(tt.in)
			if err != nil {
				t.Fatalf("ParseTTL(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTTL(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTTL_Invalid(t *testing.T) {
	for _, in := range []string{"", "15", "m", "15 m", "15min", "1.5h", "-1h", "0s", "168h0m", "99999999999999999999y"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTTL(in)
			if err == nil {
				t.Fatalf("ParseTTL(%q) should fail", in)
			}
			if !errors.Is(err, ErrInvalidTTL) {
				t.Errorf("error = %v, want ErrInvalidTTL", err)
			}
		})
	}
}
