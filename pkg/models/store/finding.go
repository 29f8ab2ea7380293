package store

import "time"

const (
	FindingOpen     = "open"
	FindingResolved = "resolved"
)

// Finding is one reconciled observation recorded for a single assessment
// run. Rows are append-only; they are never updated after insertion.
type Finding struct {
	AssessmentID    string
	ModuleCode      string
	SubscriptionID  string
	Severity        string
	Category        string
	ResourceID      string
	ResourceName    string
	ResourceType    string
	FindingText     string
	Recommendation  string
	ContentHash     string
	ChangeStatus    string
	Status          string
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
	OccurrenceCount int
}

// CustomerFinding is the durable cross-run history row for a recurring
// issue, keyed by (customer, module, content hash). It outlives any single
// assessment and is never deleted.
type CustomerFinding struct {
	CustomerID       string
	ModuleCode       string
	ContentHash      string
	Severity         string
	Category         string
	ResourceID       string
	ResourceName     string
	ResourceType     string
	FindingText      string
	Recommendation   string
	Status           string
	FirstSeenAt      time.Time
	LastSeenAt       time.Time
	OccurrenceCount  int
	ResolvedAt       *time.Time
	LastAssessmentID string
}
