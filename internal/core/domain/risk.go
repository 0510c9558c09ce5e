package domain

type RiskStatus string

const (
	RiskHigh   RiskStatus = "high_risk"
	RiskMedium RiskStatus = "medium_risk"
	RiskLow    RiskStatus = "low_risk"
	RiskSafe   RiskStatus = "safe"
)

const (
	highRiskThreshold   = 0.8
	mediumRiskThreshold = 0.5
	lowRiskThreshold    = 0.3

	// ImageManipulationThreshold marks a record as an image-manipulation indicator.
	ImageManipulationThreshold = 0.7
)

// ClassifyRisk maps a forgery probability to its tier. Each bound is exclusive,
// so a probability equal to a threshold falls into the lower tier.
func ClassifyRisk(p float64) RiskStatus {
	switch {
	case p > highRiskThreshold:
		return RiskHigh
	case p > mediumRiskThreshold:
		return RiskMedium
	case p > lowRiskThreshold:
		return RiskLow
	default:
		return RiskSafe
	}
}
