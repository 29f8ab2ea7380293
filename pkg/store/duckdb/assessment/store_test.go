package assessment

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/de-tools/compliance-atlas/pkg/models/store"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (Store, *sql.DB) {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	s, err := NewStore(db)
	require.NoError(t, err)
	return s, db
}

func createAssessment(t *testing.T, s Store, id string, totalUnits int) {
	t.Helper()
	err := s.Create(context.Background(), &store.Assessment{
		ID:           id,
		CustomerID:   "cust-1",
		ConnectionID: "conn-1",
		ModuleID:     8,
		ModuleCode:   "SECURITY",
		Status:       store.AssessmentQueued,
		TotalUnits:   totalUnits,
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestGet_MissingAssessmentReturnsNil(t *testing.T) {
	s, _ := setupStore(t)

	a, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestRecordUnitComplete_ConcurrentIncrementsExactlyOneObservesBoundary(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	// One pooled connection: duckdb's optimistic concurrency would abort
	// same-row updates racing across connections. The callers still race
	// on ordering, which is what the boundary guarantee is about.
	db.SetMaxOpenConns(1)

	const total = 16
	createAssessment(t, s, "a-1", total)

	observed := make(chan int, total)
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			completed, err := s.RecordUnitComplete(ctx, "a-1")
			assert.NoError(t, err)
			observed <- completed
		}()
	}
	wg.Wait()
	close(observed)

	// Every caller sees a distinct count; exactly one sees the boundary.
	seen := make(map[int]bool, total)
	boundary := 0
	for c := range observed {
		assert.False(t, seen[c], "count %d returned twice", c)
		seen[c] = true
		if c == total {
			boundary++
		}
	}
	assert.Len(t, seen, total)
	assert.Equal(t, 1, boundary)

	a, err := s.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, total, a.CompletedUnits)
}

func TestMarkRunning_Idempotent(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	createAssessment(t, s, "a-1", 2)

	require.NoError(t, s.MarkRunning(ctx, "a-1"))
	first, err := s.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, store.AssessmentRunning, first.Status)
	require.NotNil(t, first.StartedAt)

	require.NoError(t, s.MarkRunning(ctx, "a-1"))
	second, err := s.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, first.StartedAt, second.StartedAt)
}

func TestFinalize_WriteOnce(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	createAssessment(t, s, "a-1", 1)

	first := store.Aggregate{
		TotalFindings: 4, HighFindings: 2, MediumFindings: 1, LowFindings: 1,
		Score: 71, CompletedAt: time.Now().UTC(),
	}
	require.NoError(t, s.Finalize(ctx, "a-1", first))

	// A second finalize is a no-op: the status guard rejects it.
	second := store.Aggregate{TotalFindings: 99, Score: 1, CompletedAt: time.Now().UTC()}
	require.NoError(t, s.Finalize(ctx, "a-1", second))

	a, err := s.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, store.AssessmentCompleted, a.Status)
	assert.Equal(t, 4, *a.TotalFindings)
	assert.Equal(t, 71, *a.Score)
}

func TestMarkFailed_DoesNotOverrideCompleted(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	createAssessment(t, s, "a-1", 1)

	require.NoError(t, s.Finalize(ctx, "a-1", store.Aggregate{Score: 100, CompletedAt: time.Now().UTC()}))
	require.NoError(t, s.MarkFailed(ctx, "a-1", "late failure"))

	a, err := s.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, store.AssessmentCompleted, a.Status)
	assert.Nil(t, a.ErrorMessage)
}

func TestAddModuleResult_RedeliveryOverwrites(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	createAssessment(t, s, "a-1", 1)

	result := store.ModuleResult{
		AssessmentID:     "a-1",
		SubscriptionID:   "sub-1",
		SubscriptionName: "Production",
		Status:           store.ModuleResultCompleted,
		TotalFindings:    2,
		HighFindings:     1,
		MediumFindings:   1,
		Score:            69,
		CompletedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.AddModuleResult(ctx, result))

	result.TotalFindings = 3
	result.LowFindings = 1
	result.Score = 67
	require.NoError(t, s.AddModuleResult(ctx, result))

	results, err := s.ListModuleResults(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].TotalFindings)
	assert.Equal(t, 67, results[0].Score)
}

func TestAddModuleResult_ErrorMessageRoundTrip(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	createAssessment(t, s, "a-1", 2)

	msg := "subscription access denied"
	failed := store.ModuleResult{
		AssessmentID:     "a-1",
		SubscriptionID:   "sub-1",
		SubscriptionName: "Production",
		Status:           store.ModuleResultFailed,
		Score:            100,
		ErrorMessage:     &msg,
		CompletedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.AddModuleResult(ctx, failed))

	ok := failed
	ok.SubscriptionID = "sub-2"
	ok.Status = store.ModuleResultCompleted
	ok.ErrorMessage = nil
	require.NoError(t, s.AddModuleResult(ctx, ok))

	results, err := s.ListModuleResults(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NotNil(t, results[0].ErrorMessage)
	assert.Equal(t, msg, *results[0].ErrorMessage)
	assert.Nil(t, results[1].ErrorMessage)
}

// The coordinator must be one atomic increment-and-return statement, not a
// read followed by a write.
func TestRecordUnitComplete_SingleStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := NewStore(db)
	require.NoError(t, err)

	mock.ExpectQuery(`UPDATE assessments\s+SET completed_units = completed_units \+ 1\s+WHERE id = \?\s+RETURNING completed_units`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"completed_units"}).AddRow(3))

	completed, err := s.RecordUnitComplete(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, 3, completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
