package domain

import "time"

type AssessmentStatus string

const (
	StatusPending   AssessmentStatus = "pending"
	StatusQueued    AssessmentStatus = "queued"
	StatusRunning   AssessmentStatus = "running"
	StatusCompleted AssessmentStatus = "completed"
	StatusFailed    AssessmentStatus = "failed"
)

// Assessment is one logical multi-subscription audit job. It is split into
// TotalUnits independent units of work, one per in-scope subscription, and
// finalized exactly once when the last unit completes.
type Assessment struct {
	ID             string
	CustomerID     string
	ConnectionID   string
	Module         ModuleCode
	Status         AssessmentStatus
	TotalUnits     int
	CompletedUnits int
	Counts         SeverityCounts
	Score          int
	ErrorMessage   string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// UnitOfWork is one subscription's share of an assessment. TotalUnits is
// denormalized onto every unit so any worker can recognize the last one
// without an extra lookup.
type UnitOfWork struct {
	AssessmentID     string
	CustomerID       string
	Module           ModuleCode
	SubscriptionID   string
	SubscriptionName string
	CredentialsRef   string
	TotalUnits       int
}

type Subscription struct {
	ID   string
	Name string
}
