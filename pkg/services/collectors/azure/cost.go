package azure

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"
	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/de-tools/compliance-atlas/pkg/services/collectors"
	"github.com/de-tools/compliance-atlas/pkg/services/credentials"
)

// CostSettings contains the thresholds the cost collector flags against.
type CostSettings struct {
	// LookbackDays is the usage window queried per subscription (default: 30)
	LookbackDays int
	// HighSpendThreshold flags a resource as high severity above this amount (default: 5000)
	HighSpendThreshold float64
	// MediumSpendThreshold flags a resource as medium severity above this amount (default: 1000)
	MediumSpendThreshold float64
	// LowSpendThreshold flags a resource as low severity above this amount (default: 250)
	LowSpendThreshold float64
}

func DefaultCostSettings() CostSettings {
	return CostSettings{
		LookbackDays:         30,
		HighSpendThreshold:   5000,
		MediumSpendThreshold: 1000,
		LowSpendThreshold:    250,
	}
}

type costCollector struct {
	factory  *armcostmanagement.ClientFactory
	settings CostSettings
}

// NewCostCollectorFactory returns the factory registered for the COST
// module. The collector queries Cost Management for the subscription's
// actual cost per resource and reports spend-threshold findings.
func NewCostCollectorFactory(settings CostSettings) collectors.Factory {
	return func(_ context.Context, session *credentials.Session) (collectors.Collector, error) {
		factory, err := armcostmanagement.NewClientFactory(session.Credential, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cost management client factory: %w", err)
		}
		return &costCollector{factory: factory, settings: settings}, nil
	}
}

func (c *costCollector) Collect(ctx context.Context, sub domain.Subscription) ([]domain.Finding, error) {
	client := c.factory.NewQueryClient()
	scope := fmt.Sprintf("/subscriptions/%s", sub.ID)

	timeTo := time.Now()
	timeFrom := timeTo.AddDate(0, 0, -c.settings.LookbackDays)

	exportType := armcostmanagement.ExportTypeActualCost
	granularity := armcostmanagement.GranularityType("None")
	timeframe := armcostmanagement.TimeframeTypeCustom
	dimension := armcostmanagement.QueryColumnTypeDimension
	sumFn := armcostmanagement.FunctionTypeSum

	params := armcostmanagement.QueryDefinition{
		Type: &exportType,
		Dataset: &armcostmanagement.QueryDataset{
			Granularity: &granularity,
			Aggregation: map[string]*armcostmanagement.QueryAggregation{
				"totalCost": {
					Name:     to.Ptr("Cost"),
					Function: &sumFn,
				},
			},
			Grouping: []*armcostmanagement.QueryGrouping{
				{
					Name: to.Ptr("ResourceId"),
					Type: &dimension,
				},
			},
		},
		Timeframe: &timeframe,
		TimePeriod: &armcostmanagement.QueryTimePeriod{
			From: &timeFrom,
			To:   &timeTo,
		},
	}

	result, err := client.Usage(ctx, scope, params, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription costs: %w", err)
	}

	var findings []domain.Finding
	for _, row := range result.Properties.Rows {
		if len(row) < 2 {
			continue
		}
		amount, ok := row[0].(float64)
		if !ok {
			continue
		}
		resourceID := fmt.Sprintf("%v", row[1])

		severity := c.classify(amount)
		if severity == domain.SeverityInfo {
			continue
		}

		findings = append(findings, domain.Finding{
			Severity: severity,
			Category: "Cost Management",
			Resource: domain.ResourceDef{
				ID:   resourceID,
				Name: resourceID,
				Type: "azure_resource",
			},
			Text: fmt.Sprintf("Resource accumulated %.2f in cost over the last %d days",
				amount, c.settings.LookbackDays),
			Recommendation: "Review sizing, schedule or reservation coverage for this resource",
		})
	}

	return findings, nil
}

func (c *costCollector) classify(amount float64) domain.Severity {
	switch {
	case amount >= c.settings.HighSpendThreshold:
		return domain.SeverityHigh
	case amount >= c.settings.MediumSpendThreshold:
		return domain.SeverityMedium
	case amount >= c.settings.LowSpendThreshold:
		return domain.SeverityLow
	default:
		return domain.SeverityInfo
	}
}
