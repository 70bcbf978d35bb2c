package event

// Severity is the per-event clinical severity. The zero value is ok.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityOK:       0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityWarning:  3,
	SeverityHigh:     4,
	SeverityCritical: 5,
}

// Rank returns the severity's position in the ordering
// ok < low < medium < warning < high < critical. Unknown severities rank
// as ok.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Exceeds reports whether s is strictly more severe than other.
func (s Severity) Exceeds(other Severity) bool {
	return s.Rank() > other.Rank()
}

// MaxSeverity returns the most severe of the given severities, or ok when
// none are given.
func MaxSeverity(severities ...Severity) Severity {
	max := SeverityOK
	for _, s := range severities {
		if s.Exceeds(max) {
			max = s
		}
	}
	return max
}

// FromScorer maps the anomaly scorer's severity vocabulary onto the
// pipeline ordering: "normal" becomes ok, "warning" subsumes medium.
func FromScorer(s string) Severity {
	switch s {
	case "normal", "":
		return SeverityOK
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityOK
	}
}
