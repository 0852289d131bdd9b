package model

// FindingKind classifies a validation finding.
type FindingKind string

const (
	FindingError   FindingKind = "error"
	FindingWarning FindingKind = "warning"
)

// Severity ranks a finding for the reviewer.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Finding is a positioned validation result. Findings are a derived,
// disposable view: they are recomputed from current cell values and never
// persisted as part of TableData.
type Finding struct {
	Row      int         `json:"row"`
	Col      int         `json:"col"`
	Kind     FindingKind `json:"kind"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
}
