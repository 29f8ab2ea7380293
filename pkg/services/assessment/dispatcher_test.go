package assessment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/de-tools/compliance-atlas/pkg/models/store"
	"github.com/de-tools/compliance-atlas/pkg/queue"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb"
	assessmentstore "github.com/de-tools/compliance-atlas/pkg/store/duckdb/assessment"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	published []domain.UnitOfWork
	failAfter int
}

func (t *recordingTransport) Publish(_ context.Context, unit domain.UnitOfWork) error {
	if t.failAfter > 0 && len(t.published) >= t.failAfter {
		return errors.New("broker unavailable")
	}
	t.published = append(t.published, unit)
	return nil
}

func (t *recordingTransport) Consume(_ context.Context, _ int, _ queue.Handler) error {
	return nil
}

type dispatcherFixture struct {
	db          *sql.DB
	assessments assessmentstore.Store
	transport   *recordingTransport
	dispatcher  *Dispatcher
}

func setupDispatcherFixture(t *testing.T) *dispatcherFixture {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	seed := []string{
		`INSERT INTO connections (id, customer_id, name, credentials_ref)
			VALUES ('conn-1', 'cust-1', 'Contoso Production', 'contoso')`,
		// tier "standard" includes SECURITY (8), tier "basic" does not.
		`INSERT INTO tier_modules (tier_id, module_id) VALUES ('standard', 8), ('standard', 3), ('basic', 3)`,
		`INSERT INTO subscriptions (id, connection_id, name, tier_id) VALUES
			('sub-1', 'conn-1', 'Production', 'standard'),
			('sub-2', 'conn-1', 'Staging', 'standard'),
			('sub-3', 'conn-1', 'Dev', 'standard'),
			('sub-4', 'conn-1', 'Sandbox', 'basic')`,
	}
	for _, q := range seed {
		_, err := db.Exec(q)
		require.NoError(t, err)
	}

	assessments, err := assessmentstore.NewStore(db)
	require.NoError(t, err)
	scopeStore, err := scope.NewStore(db)
	require.NoError(t, err)

	transport := &recordingTransport{}
	return &dispatcherFixture{
		db:          db,
		assessments: assessments,
		transport:   transport,
		dispatcher:  NewDispatcher(assessments, scopeStore, transport),
	}
}

func TestDispatch_FansOutOneUnitPerSubscription(t *testing.T) {
	f := setupDispatcherFixture(t)
	ctx := context.Background()

	a, err := f.dispatcher.Dispatch(ctx, "conn-1", "SECURITY")
	require.NoError(t, err)
	require.NotNil(t, a)

	assert.Equal(t, "cust-1", a.CustomerID)
	assert.Equal(t, domain.ModuleSecurity, a.Module)
	assert.Equal(t, domain.StatusQueued, a.Status)
	// sub-4 is on the basic tier, which does not include SECURITY.
	assert.Equal(t, 3, a.TotalUnits)

	require.Len(t, f.transport.published, 3)
	for _, unit := range f.transport.published {
		assert.Equal(t, a.ID, unit.AssessmentID)
		assert.Equal(t, "cust-1", unit.CustomerID)
		assert.Equal(t, domain.ModuleSecurity, unit.Module)
		assert.Equal(t, "contoso", unit.CredentialsRef)
		assert.Equal(t, 3, unit.TotalUnits)
	}
	assert.Equal(t, "sub-1", f.transport.published[0].SubscriptionID)
	assert.Equal(t, "sub-2", f.transport.published[1].SubscriptionID)
	assert.Equal(t, "sub-3", f.transport.published[2].SubscriptionID)

	persisted, err := f.assessments.Get(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, store.AssessmentQueued, persisted.Status)
	assert.Equal(t, 0, persisted.CompletedUnits)
}

func TestDispatch_ValidationFailures(t *testing.T) {
	f := setupDispatcherFixture(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		connection string
		module     string
		wantErr    error
	}{
		{name: "unknown module", connection: "conn-1", module: "TURBO", wantErr: ErrUnknownModule},
		{name: "lowercase module rejected", connection: "conn-1", module: "security", wantErr: ErrUnknownModule},
		{name: "missing connection", connection: "conn-missing", module: "SECURITY", wantErr: ErrConnectionNotFound},
		{name: "module outside tier", connection: "conn-1", module: "NETWORK", wantErr: ErrNoSubscriptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := f.dispatcher.Dispatch(ctx, tt.connection, tt.module)
			assert.Nil(t, a)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Nothing reached the queue.
	assert.Empty(t, f.transport.published)
}

func TestDispatch_PublishFailureFailsAssessment(t *testing.T) {
	f := setupDispatcherFixture(t)
	f.transport.failAfter = 1
	ctx := context.Background()

	a, err := f.dispatcher.Dispatch(ctx, "conn-1", "SECURITY")
	require.Error(t, err)
	assert.Nil(t, a)

	// The created assessment is failed, not left queued forever.
	id := f.transport.published[0].AssessmentID
	persisted, getErr := f.assessments.Get(ctx, id)
	require.NoError(t, getErr)
	require.NotNil(t, persisted)
	assert.Equal(t, store.AssessmentFailed, persisted.Status)
	require.NotNil(t, persisted.ErrorMessage)
	assert.Contains(t, *persisted.ErrorMessage, fmt.Sprintf("subscription %s", "sub-2"))
}
