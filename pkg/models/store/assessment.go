package store

import "time"

const (
	AssessmentQueued    = "queued"
	AssessmentRunning   = "running"
	AssessmentCompleted = "completed"
	AssessmentFailed    = "failed"
)

type Assessment struct {
	ID             string
	CustomerID     string
	ConnectionID   string
	ModuleID       int
	ModuleCode     string
	Status         string
	TotalUnits     int
	CompletedUnits int
	TotalFindings  *int
	HighFindings   *int
	MediumFindings *int
	LowFindings    *int
	Score          *int
	ErrorMessage   *string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// Aggregate carries the values written exactly once at finalization.
type Aggregate struct {
	TotalFindings  int
	HighFindings   int
	MediumFindings int
	LowFindings    int
	Score          int
	CompletedAt    time.Time
}

const (
	ModuleResultCompleted = "completed"
	ModuleResultFailed    = "failed"
)

// ModuleResult is the per-unit outcome record: one row per
// (assessment, subscription), written by the worker that processed it.
type ModuleResult struct {
	AssessmentID     string
	SubscriptionID   string
	SubscriptionName string
	Status           string
	TotalFindings    int
	HighFindings     int
	MediumFindings   int
	LowFindings      int
	Score            int
	ErrorMessage     *string
	CompletedAt      time.Time
}
