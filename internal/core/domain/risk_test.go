package domain

import "testing"

func TestClassifyRiskTiers(t *testing.T) {
	cases := []struct {
		p    float64
		want RiskStatus
	}{
		{0, RiskSafe},
		{0.3, RiskSafe},
		{0.30001, RiskLow},
		{0.42, RiskLow},
		{0.5, RiskLow},
		{0.55, RiskMedium},
		{0.8, RiskMedium},
		{0.80001, RiskHigh},
		{1, RiskHigh},
	}
	for _, tc := range cases {
		if got := ClassifyRisk(tc.p); got != tc.want {
			t.Fatalf("ClassifyRisk(%v) = %s, want %s", tc.p, got, tc.want)
		}
	}
}

func TestClassifyRiskIsMonotonic(t *testing.T) {
	rank := map[RiskStatus]int{RiskSafe: 0, RiskLow: 1, RiskMedium: 2, RiskHigh: 3}
	prev := ClassifyRisk(0)
	for i := 1; i <= 1000; i++ {
		cur := ClassifyRisk(float64(i) / 1000)
		if rank[cur] < rank[prev] {
			t.Fatalf("tier decreased at p=%v: %s after %s", float64(i)/1000, cur, prev)
		}
		prev = cur
	}
}
