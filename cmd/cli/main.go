package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/de-tools/compliance-atlas/pkg/adapters"
	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/de-tools/compliance-atlas/pkg/models/store"
	"github.com/de-tools/compliance-atlas/pkg/queue"
	"github.com/de-tools/compliance-atlas/pkg/runtime/terminal"
	svc "github.com/de-tools/compliance-atlas/pkg/services/assessment"
	"github.com/de-tools/compliance-atlas/pkg/services/collectors"
	"github.com/de-tools/compliance-atlas/pkg/services/collectors/azure"
	"github.com/de-tools/compliance-atlas/pkg/services/credentials"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb"
	assessmentstore "github.com/de-tools/compliance-atlas/pkg/store/duckdb/assessment"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/finding"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/history"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/scope"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	dbPath       string
	azureCfgPath string
	collectorCfg string
	connectionID string
	moduleCode   string
	workers      int
	timeout      time.Duration
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "assess",
		Short: "Run one compliance assessment and print the result",
		RunE:  runAssessment,
	}

	homeDir, _ := os.UserHomeDir()
	defaultAzureCfg := filepath.Join(homeDir, ".azure", "config")

	rootCmd.Flags().StringVarP(&dbPath, "db", "d", "compliance-atlas.db",
		"Path to the embedded assessment database")
	rootCmd.Flags().StringVarP(&azureCfgPath, "azure-config", "c", defaultAzureCfg,
		"Path to the Azure profile config")
	rootCmd.Flags().StringVar(&collectorCfg, "collector-config", "",
		"Optional path to collector threshold config")
	rootCmd.Flags().StringVar(&connectionID, "connection", "",
		"Connection id to assess")
	rootCmd.Flags().StringVarP(&moduleCode, "module", "m", "",
		"Audit module code (e.g. COST, SECURITY)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 4,
		"Number of concurrent assessment workers")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute,
		"Give up waiting for the assessment after this long")

	_ = rootCmd.MarkFlagRequired("connection")
	_ = rootCmd.MarkFlagRequired("module")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAssessment(cmd *cobra.Command, _ []string) error {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	ctx, cancel := context.WithTimeout(logger.WithContext(cmd.Context()), timeout)
	defer cancel()

	db, err := duckdb.NewDB(duckdb.Settings{DbPath: dbPath})
	if err != nil {
		return fmt.Errorf("failed to open assessment database: %w", err)
	}

	assessments, err := assessmentstore.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create assessment store: %w", err)
	}
	findings, err := finding.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create finding store: %w", err)
	}
	historyStore, err := history.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create history store: %w", err)
	}
	scopeStore, err := scope.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create scope store: %w", err)
	}

	costSettings, err := azure.LoadCostSettings(collectorCfg)
	if err != nil {
		return fmt.Errorf("failed to load collector settings: %w", err)
	}

	registry := collectors.NewRegistry()
	if err := registry.Register(domain.ModuleCost, azure.NewCostCollectorFactory(costSettings)); err != nil {
		return fmt.Errorf("failed to register cost collector: %w", err)
	}

	provider := credentials.NewProviderWithPath(azureCfgPath)

	transport := queue.NewMemoryTransport(queue.DefaultMemoryConfig())
	worker := svc.NewWorker(db, assessments, findings, historyStore, registry, provider, nil)
	go func() {
		_ = transport.Consume(ctx, workers, worker.Handle)
	}()

	dispatcher := svc.NewDispatcher(assessments, scopeStore, transport)
	a, err := dispatcher.Dispatch(ctx, connectionID, moduleCode)
	if err != nil {
		return err
	}

	final, err := awaitCompletion(ctx, assessments, a.ID)
	if err != nil {
		return err
	}

	response := adapters.MapAssessmentDomainToApi(adapters.MapAssessmentStoreToDomain(final))
	results, err := assessments.ListModuleResults(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("failed to load module results: %w", err)
	}
	for _, result := range results {
		response.ModuleResults = append(response.ModuleResults, adapters.MapModuleResultStoreToApi(result))
	}

	return terminal.NewReporter(os.Stdout).Handle(response)
}

func awaitCompletion(
	ctx context.Context,
	assessments assessmentstore.Store,
	id string,
) (*store.Assessment, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up waiting for assessment %s: %w", id, ctx.Err())
		case <-ticker.C:
			a, err := assessments.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if a == nil {
				return nil, fmt.Errorf("assessment %s disappeared", id)
			}
			if a.Status == store.AssessmentCompleted || a.Status == store.AssessmentFailed {
				return a, nil
			}
		}
	}
}
