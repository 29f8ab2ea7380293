package api

import "time"

type StartAssessmentRequest struct {
	ConnectionID string `json:"connection_id"`
	Module       string `json:"module"`
}

type StartAssessmentResponse struct {
	AssessmentID string `json:"assessment_id"`
	Status       string `json:"status"`
	TotalUnits   int    `json:"total_units"`
}

type SeverityCounts struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

type Assessment struct {
	ID             string         `json:"id"`
	CustomerID     string         `json:"customer_id"`
	ConnectionID   string         `json:"connection_id"`
	Module         string         `json:"module"`
	Status         string         `json:"status"`
	TotalUnits     int            `json:"total_units"`
	CompletedUnits int            `json:"completed_units"`
	Counts         SeverityCounts `json:"counts"`
	Score          int            `json:"score"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	ModuleResults  []ModuleResult `json:"module_results,omitempty"`
}

type ModuleResult struct {
	SubscriptionID   string         `json:"subscription_id"`
	SubscriptionName string         `json:"subscription_name"`
	Status           string         `json:"status"`
	Counts           SeverityCounts `json:"counts"`
	Score            int            `json:"score"`
	ErrorMessage     string         `json:"error_message,omitempty"`
}

type Finding struct {
	SubscriptionID  string    `json:"subscription_id"`
	Severity        string    `json:"severity"`
	Category        string    `json:"category"`
	ResourceID      string    `json:"resource_id"`
	ResourceName    string    `json:"resource_name"`
	ResourceType    string    `json:"resource_type"`
	FindingText     string    `json:"finding_text"`
	Recommendation  string    `json:"recommendation"`
	ContentHash     string    `json:"content_hash"`
	ChangeStatus    string    `json:"change_status"`
	Status          string    `json:"status"`
	FirstSeenAt     time.Time `json:"first_seen_at"`
	LastSeenAt      time.Time `json:"last_seen_at"`
	OccurrenceCount int       `json:"occurrence_count"`
}

type CustomerFinding struct {
	ContentHash      string     `json:"content_hash"`
	Module           string     `json:"module"`
	Severity         string     `json:"severity"`
	Category         string     `json:"category"`
	ResourceID       string     `json:"resource_id"`
	ResourceName     string     `json:"resource_name"`
	FindingText      string     `json:"finding_text"`
	Status           string     `json:"status"`
	FirstSeenAt      time.Time  `json:"first_seen_at"`
	LastSeenAt       time.Time  `json:"last_seen_at"`
	OccurrenceCount  int        `json:"occurrence_count"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	LastAssessmentID string     `json:"last_assessment_id"`
}

type Error struct {
	Error string `json:"error"`
}
