package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFormatRupees(t *testing.T) {
	cases := map[string]string{
		"0":         "₹0.00",
		"999":       "₹999.00",
		"1000":      "₹1,000.00",
		"123456.5":  "₹1,23,456.50",
		"12345678":  "₹1,23,45,678.00",
		"-25000.25": "-₹25,000.25",
	}
	for in, want := range cases {
		if got := FormatRupees(decimal.RequireFromString(in)); got != want {
			t.Fatalf("FormatRupees(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatDatePtr(t *testing.T) {
	if got := FormatDatePtr(nil); got != "" {
		t.Fatalf("expected empty string for nil got %q", got)
	}
	d := time.Date(2024, 3, 5, 12, 0, 0, 0, time.Local)
	if got := FormatDatePtr(&d); got != "05 Mar 2024" {
		t.Fatalf("unexpected date %q", got)
	}
}
