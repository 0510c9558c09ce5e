package domain

import (
	"fmt"
	"math"
	"reflect"
)

// MetadataIssuesKey is the text-analysis flag counted as a metadata issue.
const MetadataIssuesKey = "metadata_issues"

// ScoreReport is the scorer's output. Only ForgeryProbability and TextAnalysis
// drive pipeline decisions; the remaining fields are carried through as reported.
type ScoreReport struct {
	ForgeryProbability float64        `json:"forgery_probability"`
	TextAnalysis       map[string]any `json:"text_analysis"`

	IsAuthentic     *bool    `json:"is_authentic,omitempty"`
	AnomalyScore    *float64 `json:"anomaly_score,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	RiskLevel       string   `json:"risk_level,omitempty"`
	Recommendation  string   `json:"recommendation,omitempty"`
	Details         []string `json:"details,omitempty"`
}

func (r ScoreReport) Validate() error {
	if r.ForgeryProbability < 0 || r.ForgeryProbability > 1 {
		return fmt.Errorf("forgery_probability %v outside [0,1]", r.ForgeryProbability)
	}
	return nil
}

// HasTextInconsistency reports whether any text-analysis value is truthy.
func (r ScoreReport) HasTextInconsistency() bool {
	for _, v := range r.TextAnalysis {
		if Truthy(v) {
			return true
		}
	}
	return false
}

func (r ScoreReport) HasMetadataIssues() bool {
	return Truthy(r.TextAnalysis[MetadataIssuesKey])
}

// Truthy follows JavaScript truthiness for decoded JSON: nil, false, zero,
// NaN and the empty string are false. Arrays and objects are true even when
// empty.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	case int:
		return x != 0
	case int64:
		return x != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
