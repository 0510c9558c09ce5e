package domain

import (
	"math"
	"testing"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{"", false},
		{"x", true},
		{float64(0), false},
		{float64(3), true},
		{math.NaN(), false},
		{[]any{}, true},
		{[]any{"a"}, true},
		{[]any(nil), false},
		{map[string]any{}, true},
		{map[string]any{"k": 1}, true},
	}
	for _, tc := range cases {
		if got := Truthy(tc.v); got != tc.want {
			t.Fatalf("Truthy(%#v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestScoreReportValidate(t *testing.T) {
	if err := (ScoreReport{ForgeryProbability: 1.2}).Validate(); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if err := (ScoreReport{ForgeryProbability: 0.5}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
