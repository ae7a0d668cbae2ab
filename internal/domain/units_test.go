package domain

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string // wei, decimal
	}{
		{"3.2", "3200000000000000000"},
		{"0.08", "80000000000000000"},
		{"1", "1000000000000000000"},
		{" 0.000000000000000001 ", "1"},
		{"0", "0"},
		{"123456789012345678901234567890", "123456789012345678901234567890000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if err != nil {
				t.Fatalf("ParseAmount(%q) error: %v", tt.in, err)
			}
			if got.Dec() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got.Dec(), tt.want)
			}
		})
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, in := range []string{"", "   ", "-1", "abc", "0.0000000000000000001", "1e80"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) should fail", in)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(MustParseAmount("2.80")); got != "2.8" {
		t.Errorf("expected 2.8, got %s", got)
	}
	if got := FormatAmount(nil); got != "0" {
		t.Errorf("expected 0 for nil, got %s", got)
	}
	if got := FormatAmount(uint256.NewInt(1)); got != "0.000000000000000001" {
		t.Errorf("unexpected smallest unit rendering %s", got)
	}
}

func TestParseWei(t *testing.T) {
	v, err := ParseWei("0x2c68af0bb140000")
	if err != nil {
		t.Fatalf("hex parse failed: %v", err)
	}
	if v.Dec() != "200000000000000000" {
		t.Errorf("expected 0.2 unit in wei, got %s", v.Dec())
	}

	// Beyond 53-bit float precision
	v, err = ParseWei("9007199254740993")
	if err != nil || v.Uint64() != 9007199254740993 {
		t.Errorf("precision lost: %v %v", v, err)
	}

	if _, err := ParseWei("1.5"); err == nil {
		t.Error("fractional wei must be rejected")
	}
}
