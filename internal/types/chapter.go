// Package types provides shared types used across multiple packages.
// This package has no dependencies on other scroll packages to avoid import cycles.
package types

// DetectionSource indicates how the chapter of a unit was established.
type DetectionSource string

const (
	// SourceMarker indicates an explicit chapter marker ("Chapter 3", a standalone "3").
	SourceMarker DetectionSource = "marker"
	// SourceFirstUnit indicates chapter 1 was inferred from unit 1 appearing with no chapter.
	SourceFirstUnit DetectionSource = "inferred_first_unit"
	// SourceUnitReset indicates a new chapter inferred from a unit numbering reset.
	SourceUnitReset DetectionSource = "inferred_unit_reset"
	// SourceHeading indicates a paragraph-profile chapter heading.
	SourceHeading DetectionSource = "heading"
)

// ConfidenceLevel indicates the confidence of a detection.
// Informational only; no structural decision depends on it.
type ConfidenceLevel string

const (
	// ConfidenceHigh indicates high confidence in the detection.
	ConfidenceHigh ConfidenceLevel = "high"
	// ConfidenceMedium indicates medium confidence in the detection.
	ConfidenceMedium ConfidenceLevel = "medium"
	// ConfidenceLow indicates low confidence in the detection.
	ConfidenceLow ConfidenceLevel = "low"
)

// ParseConfidenceLevel converts a string to a ConfidenceLevel.
// Returns ConfidenceLow if the string is not recognized.
func ParseConfidenceLevel(s string) ConfidenceLevel {
	switch s {
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	case "low":
		return ConfidenceLow
	default:
		return ConfidenceLow
	}
}

// Score maps a detection source to the numeric confidence stored on units.
func (s DetectionSource) Score() float64 {
	switch s {
	case SourceMarker, SourceHeading:
		return 0.95
	case SourceFirstUnit:
		return 0.9
	case SourceUnitReset:
		return 0.75
	default:
		return 0.5
	}
}

// Level buckets a detection source into a ConfidenceLevel.
func (s DetectionSource) Level() ConfidenceLevel {
	score := s.Score()
	switch {
	case score >= 0.9:
		return ConfidenceHigh
	case score >= 0.7:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
