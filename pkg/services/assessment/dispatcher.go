package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/compliance-atlas/pkg/adapters"
	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/de-tools/compliance-atlas/pkg/models/store"
	"github.com/de-tools/compliance-atlas/pkg/queue"
	assessmentstore "github.com/de-tools/compliance-atlas/pkg/store/duckdb/assessment"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/scope"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Validation failures surface through these sentinels so the HTTP layer
// can map them to a 400 without inspecting message text.
var (
	ErrUnknownModule      = errors.New("unknown audit module")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrNoSubscriptions    = errors.New("no subscriptions configured for this module")
)

// Dispatcher accepts an assessment request, fans it out into one unit of
// work per in-scope subscription and returns immediately; workers carry
// the job from there.
type Dispatcher struct {
	assessments assessmentstore.Store
	scope       scope.Store
	transport   queue.Transport
}

func NewDispatcher(assessments assessmentstore.Store, scopeStore scope.Store, transport queue.Transport) *Dispatcher {
	return &Dispatcher{
		assessments: assessments,
		scope:       scopeStore,
		transport:   transport,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, connectionID, moduleCode string) (*domain.Assessment, error) {
	logger := zerolog.Ctx(ctx)

	code, err := domain.ParseModuleCode(moduleCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, moduleCode)
	}

	conn, err := d.scope.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("resolve connection: %w", err)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: %q", ErrConnectionNotFound, connectionID)
	}

	moduleID, err := d.scope.GetModuleID(ctx, code.String())
	if err != nil {
		return nil, fmt.Errorf("resolve module id: %w", err)
	}

	subs, err := d.scope.ListSubscriptionsInScope(ctx, connectionID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("resolve subscriptions in scope: %w", err)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: connection %s, module %s", ErrNoSubscriptions, connectionID, code)
	}

	a := store.Assessment{
		ID:             uuid.NewString(),
		CustomerID:     conn.CustomerID,
		ConnectionID:   conn.ID,
		ModuleID:       moduleID,
		ModuleCode:     code.String(),
		Status:         store.AssessmentQueued,
		TotalUnits:     len(subs),
		CompletedUnits: 0,
		CreatedAt:      time.Now().UTC(),
	}
	if err := d.assessments.Create(ctx, &a); err != nil {
		return nil, fmt.Errorf("create assessment: %w", err)
	}

	for _, sub := range subs {
		unit := domain.UnitOfWork{
			AssessmentID:     a.ID,
			CustomerID:       a.CustomerID,
			Module:           code,
			SubscriptionID:   sub.ID,
			SubscriptionName: sub.Name,
			CredentialsRef:   conn.CredentialsRef,
			TotalUnits:       a.TotalUnits,
		}
		if err := d.transport.Publish(ctx, unit); err != nil {
			// Units already published will complete; the assessment can
			// never reach total_units, so fail it rather than leave it
			// queued forever.
			msg := fmt.Sprintf("failed to enqueue subscription %s: %v", sub.ID, err)
			if markErr := d.assessments.MarkFailed(ctx, a.ID, msg); markErr != nil {
				logger.Error().Err(markErr).Str("assessment_id", a.ID).Msg("failed to mark assessment failed")
			}
			return nil, fmt.Errorf("publish unit of work: %w", err)
		}
	}

	logger.Info().
		Str("assessment_id", a.ID).
		Str("module", code.String()).
		Int("total_units", a.TotalUnits).
		Msg("assessment dispatched")

	return adapters.MapAssessmentStoreToDomain(&a), nil
}
