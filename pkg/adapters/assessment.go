package adapters

import (
	"github.com/de-tools/compliance-atlas/pkg/models/api"
	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/de-tools/compliance-atlas/pkg/models/store"
)

func MapAssessmentStoreToDomain(a *store.Assessment) *domain.Assessment {
	res := &domain.Assessment{
		ID:             a.ID,
		CustomerID:     a.CustomerID,
		ConnectionID:   a.ConnectionID,
		Module:         domain.ModuleCode(a.ModuleCode),
		Status:         domain.AssessmentStatus(a.Status),
		TotalUnits:     a.TotalUnits,
		CompletedUnits: a.CompletedUnits,
		CreatedAt:      a.CreatedAt,
		StartedAt:      a.StartedAt,
		CompletedAt:    a.CompletedAt,
	}
	if a.TotalFindings != nil {
		res.Counts = domain.SeverityCounts{
			Total:  *a.TotalFindings,
			High:   intOrZero(a.HighFindings),
			Medium: intOrZero(a.MediumFindings),
			Low:    intOrZero(a.LowFindings),
		}
	}
	if a.Score != nil {
		res.Score = *a.Score
	}
	if a.ErrorMessage != nil {
		res.ErrorMessage = *a.ErrorMessage
	}
	return res
}

func MapAssessmentDomainToApi(a *domain.Assessment) api.Assessment {
	return api.Assessment{
		ID:             a.ID,
		CustomerID:     a.CustomerID,
		ConnectionID:   a.ConnectionID,
		Module:         a.Module.String(),
		Status:         string(a.Status),
		TotalUnits:     a.TotalUnits,
		CompletedUnits: a.CompletedUnits,
		Counts:         MapSeverityCountsDomainToApi(a.Counts),
		Score:          a.Score,
		ErrorMessage:   a.ErrorMessage,
		CreatedAt:      a.CreatedAt,
		StartedAt:      a.StartedAt,
		CompletedAt:    a.CompletedAt,
	}
}

func MapSeverityCountsDomainToApi(c domain.SeverityCounts) api.SeverityCounts {
	return api.SeverityCounts{
		Total:  c.Total,
		High:   c.High,
		Medium: c.Medium,
		Low:    c.Low,
	}
}

func MapModuleResultStoreToApi(r store.ModuleResult) api.ModuleResult {
	res := api.ModuleResult{
		SubscriptionID:   r.SubscriptionID,
		SubscriptionName: r.SubscriptionName,
		Status:           r.Status,
		Counts: api.SeverityCounts{
			Total:  r.TotalFindings,
			High:   r.HighFindings,
			Medium: r.MediumFindings,
			Low:    r.LowFindings,
		},
		Score: r.Score,
	}
	if r.ErrorMessage != nil {
		res.ErrorMessage = *r.ErrorMessage
	}
	return res
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
