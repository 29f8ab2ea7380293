package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/de-tools/compliance-atlas/pkg/models/domain"
)

// rawReport is the blob payload layout. It is the collector's unfiltered
// output, kept for audit; reconciled findings live in the relational store.
type rawReport struct {
	AssessmentID   string           `json:"assessment_id"`
	SubscriptionID string           `json:"subscription_id"`
	Module         string           `json:"module"`
	CollectedAt    time.Time        `json:"collected_at"`
	Findings       []reportFinding  `json:"findings"`
}

type reportFinding struct {
	Severity       string `json:"severity"`
	Category       string `json:"category"`
	ResourceID     string `json:"resource_id"`
	ResourceName   string `json:"resource_name"`
	ResourceType   string `json:"resource_type"`
	FindingText    string `json:"finding_text"`
	Recommendation string `json:"recommendation"`
}

type ReportStore struct {
	client    *azblob.Client
	container string
}

func NewReportStore(serviceURL, container string, cred azcore.TokenCredential) (*ReportStore, error) {
	if container == "" {
		return nil, fmt.Errorf("container name is required")
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return &ReportStore{client: client, container: container}, nil
}

// SaveRawReport uploads one unit's raw collector output to
// assessments/{assessmentID}/{subscriptionID}.json.
func (s *ReportStore) SaveRawReport(
	ctx context.Context,
	unit domain.UnitOfWork,
	findings []domain.Finding,
) error {
	report := rawReport{
		AssessmentID:   unit.AssessmentID,
		SubscriptionID: unit.SubscriptionID,
		Module:         unit.Module.String(),
		CollectedAt:    time.Now().UTC(),
		Findings:       make([]reportFinding, 0, len(findings)),
	}
	for _, f := range findings {
		report.Findings = append(report.Findings, reportFinding{
			Severity:       f.Severity.String(),
			Category:       f.Category,
			ResourceID:     f.Resource.ID,
			ResourceName:   f.Resource.Name,
			ResourceType:   f.Resource.Type,
			FindingText:    f.Text,
			Recommendation: f.Recommendation,
		})
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal raw report: %w", err)
	}

	name := fmt.Sprintf("assessments/%s/%s.json", unit.AssessmentID, unit.SubscriptionID)
	_, err = s.client.UploadBuffer(ctx, s.container, name, payload, nil)
	if err != nil {
		return fmt.Errorf("upload raw report %s: %w", name, err)
	}
	return nil
}
