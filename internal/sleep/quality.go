package sleep

import "fmt"

// Quality is a qualitative label derived from a session's movement count.
type Quality string

const (
	QualityVeryRestful   Quality = "Very Restful"
	QualityFairlyRestful Quality = "Fairly Restful"
	QualityRestless      Quality = "Restless / High Movement"
)

// QualityThresholds are the movement-count bucket boundaries. A count below
// VeryRestfulBelow is very restful, below FairlyRestfulBelow is fairly
// restful, anything else is restless.
type QualityThresholds struct {
	VeryRestfulBelow   int64
	FairlyRestfulBelow int64
}

// DefaultThresholds are uncalibrated heuristics kept as defaults.
var DefaultThresholds = QualityThresholds{
	VeryRestfulBelow:   10,
	FairlyRestfulBelow: 50,
}

// Validate checks that the buckets are ordered and non-negative
func (q QualityThresholds) Validate() error {
	if q.VeryRestfulBelow < 0 {
		return fmt.Errorf("very restful threshold must not be negative: %d", q.VeryRestfulBelow)
	}
	if q.FairlyRestfulBelow < q.VeryRestfulBelow {
		return fmt.Errorf("fairly restful threshold %d is below very restful threshold %d",
			q.FairlyRestfulBelow, q.VeryRestfulBelow)
	}
	return nil
}

// Classify maps a movement count to a quality label.
func Classify(movements int64, t QualityThresholds) Quality {
	switch {
	case movements < t.VeryRestfulBelow:
		return QualityVeryRestful
	case movements < t.FairlyRestfulBelow:
		return QualityFairlyRestful
	default:
		return QualityRestless
	}
}
