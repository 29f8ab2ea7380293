package adapters

import (
	"github.com/de-tools/compliance-atlas/pkg/models/api"
	"github.com/de-tools/compliance-atlas/pkg/models/store"
)

func MapFindingStoreToApi(f store.Finding) api.Finding {
	return api.Finding{
		SubscriptionID:  f.SubscriptionID,
		Severity:        f.Severity,
		Category:        f.Category,
		ResourceID:      f.ResourceID,
		ResourceName:    f.ResourceName,
		ResourceType:    f.ResourceType,
		FindingText:     f.FindingText,
		Recommendation:  f.Recommendation,
		ContentHash:     f.ContentHash,
		ChangeStatus:    f.ChangeStatus,
		Status:          f.Status,
		FirstSeenAt:     f.FirstSeenAt,
		LastSeenAt:      f.LastSeenAt,
		OccurrenceCount: f.OccurrenceCount,
	}
}

func MapCustomerFindingStoreToApi(f store.CustomerFinding) api.CustomerFinding {
	return api.CustomerFinding{
		ContentHash:      f.ContentHash,
		Module:           f.ModuleCode,
		Severity:         f.Severity,
		Category:         f.Category,
		ResourceID:       f.ResourceID,
		ResourceName:     f.ResourceName,
		FindingText:      f.FindingText,
		Status:           f.Status,
		FirstSeenAt:      f.FirstSeenAt,
		LastSeenAt:       f.LastSeenAt,
		OccurrenceCount:  f.OccurrenceCount,
		ResolvedAt:       f.ResolvedAt,
		LastAssessmentID: f.LastAssessmentID,
	}
}
