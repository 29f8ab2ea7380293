package assessment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/de-tools/compliance-atlas/pkg/models/api"
	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/de-tools/compliance-atlas/pkg/models/store"
	"github.com/de-tools/compliance-atlas/pkg/queue"
	svc "github.com/de-tools/compliance-atlas/pkg/services/assessment"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb"
	assessmentstore "github.com/de-tools/compliance-atlas/pkg/store/duckdb/assessment"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/finding"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/history"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/scope"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopTransport struct{}

func (nopTransport) Publish(_ context.Context, _ domain.UnitOfWork) error  { return nil }
func (nopTransport) Consume(_ context.Context, _ int, _ queue.Handler) error { return nil }

type handlerFixture struct {
	router      chi.Router
	assessments assessmentstore.Store
	findings    finding.Store
	history     history.Store
}

func setupHandlerFixture(t *testing.T) *handlerFixture {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	seed := []string{
		`INSERT INTO connections (id, customer_id, name, credentials_ref)
			VALUES ('conn-1', 'cust-1', 'Contoso', 'contoso')`,
		`INSERT INTO tier_modules (tier_id, module_id) VALUES ('standard', 8)`,
		`INSERT INTO subscriptions (id, connection_id, name, tier_id)
			VALUES ('sub-1', 'conn-1', 'Production', 'standard')`,
	}
	for _, q := range seed {
		_, err := db.Exec(q)
		require.NoError(t, err)
	}

	assessments, err := assessmentstore.NewStore(db)
	require.NoError(t, err)
	findings, err := finding.NewStore(db)
	require.NoError(t, err)
	historyStore, err := history.NewStore(db)
	require.NoError(t, err)
	scopeStore, err := scope.NewStore(db)
	require.NoError(t, err)

	dispatcher := svc.NewDispatcher(assessments, scopeStore, nopTransport{})
	handler := NewHandler(dispatcher, assessments, findings, historyStore)

	router := chi.NewRouter()
	router.Post("/api/v1/assessments", handler.StartAssessment)
	router.Get("/api/v1/assessments/{assessment}", handler.GetAssessment)
	router.Get("/api/v1/assessments/{assessment}/findings", handler.ListFindings)
	router.Get("/api/v1/customers/{customer}/findings", handler.ListCustomerFindings)

	return &handlerFixture{
		router:      router,
		assessments: assessments,
		findings:    findings,
		history:     historyStore,
	}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestStartAssessment_Accepted(t *testing.T) {
	f := setupHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/assessments", api.StartAssessmentRequest{
		ConnectionID: "conn-1",
		Module:       "SECURITY",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp api.StartAssessmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.AssessmentID)
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, 1, resp.TotalUnits)
}

func TestStartAssessment_BadRequests(t *testing.T) {
	f := setupHandlerFixture(t)

	tests := []struct {
		name string
		req  api.StartAssessmentRequest
	}{
		{name: "unknown module", req: api.StartAssessmentRequest{ConnectionID: "conn-1", Module: "TURBO"}},
		{name: "missing connection", req: api.StartAssessmentRequest{ConnectionID: "conn-missing", Module: "SECURITY"}},
		{name: "module outside tier", req: api.StartAssessmentRequest{ConnectionID: "conn-1", Module: "NETWORK"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/assessments", tt.req)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp api.Error
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestStartAssessment_MalformedBody(t *testing.T) {
	f := setupHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAssessment(t *testing.T) {
	f := setupHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.assessments.Create(ctx, &store.Assessment{
		ID:           "a-1",
		CustomerID:   "cust-1",
		ConnectionID: "conn-1",
		ModuleID:     8,
		ModuleCode:   "SECURITY",
		Status:       store.AssessmentQueued,
		TotalUnits:   2,
		CreatedAt:    time.Now().UTC(),
	}))
	require.NoError(t, f.assessments.AddModuleResult(ctx, store.ModuleResult{
		AssessmentID:     "a-1",
		SubscriptionID:   "sub-1",
		SubscriptionName: "Production",
		Status:           store.ModuleResultCompleted,
		TotalFindings:    1,
		HighFindings:     1,
		Score:            77,
		CompletedAt:      time.Now().UTC(),
	}))

	rec := f.do(t, http.MethodGet, "/api/v1/assessments/a-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.Assessment
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "a-1", resp.ID)
	assert.Equal(t, "SECURITY", resp.Module)
	assert.Equal(t, 2, resp.TotalUnits)
	require.Len(t, resp.ModuleResults, 1)
	assert.Equal(t, "sub-1", resp.ModuleResults[0].SubscriptionID)
	assert.Equal(t, 77, resp.ModuleResults[0].Score)
}

func TestGetAssessment_NotFound(t *testing.T) {
	f := setupHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/assessments/a-missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListFindings(t *testing.T) {
	f := setupHandlerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, f.findings.Add(ctx, []store.Finding{{
		AssessmentID:    "a-1",
		ModuleCode:      "SECURITY",
		SubscriptionID:  "sub-1",
		Severity:        "high",
		Category:        "Network",
		ResourceID:      "vm-1",
		ResourceName:    "vm-1",
		ResourceType:    "azure_vm",
		FindingText:     "Open ports",
		Recommendation:  "Close the port",
		ContentHash:     "hash-a",
		ChangeStatus:    "new",
		Status:          store.FindingOpen,
		FirstSeenAt:     now,
		LastSeenAt:      now,
		OccurrenceCount: 1,
	}}))

	rec := f.do(t, http.MethodGet, "/api/v1/assessments/a-1/findings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []api.Finding
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "hash-a", resp[0].ContentHash)
	assert.Equal(t, "new", resp[0].ChangeStatus)
}

func TestListCustomerFindings(t *testing.T) {
	f := setupHandlerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, f.history.Upsert(ctx, store.CustomerFinding{
		CustomerID:       "cust-1",
		ModuleCode:       "SECURITY",
		ContentHash:      "hash-a",
		Severity:         "high",
		Category:         "Network",
		ResourceID:       "vm-1",
		ResourceName:     "vm-1",
		ResourceType:     "azure_vm",
		FindingText:      "Open ports",
		Recommendation:   "Close the port",
		Status:           store.FindingOpen,
		FirstSeenAt:      now,
		LastSeenAt:       now,
		LastAssessmentID: "a-1",
	}))

	rec := f.do(t, http.MethodGet, "/api/v1/customers/cust-1/findings?module=SECURITY", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []api.CustomerFinding
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "hash-a", resp[0].ContentHash)
	assert.Equal(t, "a-1", resp[0].LastAssessmentID)
}

func TestListCustomerFindings_RequiresModule(t *testing.T) {
	f := setupHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/customers/cust-1/findings", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
