package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/de-tools/compliance-atlas/pkg/models/domain"
	"github.com/de-tools/compliance-atlas/pkg/queue"
	"github.com/de-tools/compliance-atlas/pkg/server"
	svc "github.com/de-tools/compliance-atlas/pkg/services/assessment"
	"github.com/de-tools/compliance-atlas/pkg/services/collectors"
	"github.com/de-tools/compliance-atlas/pkg/services/collectors/azure"
	"github.com/de-tools/compliance-atlas/pkg/services/credentials"
	"github.com/de-tools/compliance-atlas/pkg/store/blob"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb"
	assessmentstore "github.com/de-tools/compliance-atlas/pkg/store/duckdb/assessment"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/finding"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/history"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/scope"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	dbPath       string
	azureCfgPath string
	collectorCfg string
	workers      int
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the Compliance Atlas assessment server",
		RunE:  runServer,
	}

	homeDir, _ := os.UserHomeDir()
	defaultAzureCfg := filepath.Join(homeDir, ".azure", "config")

	rootCmd.Flags().StringVarP(&dbPath, "db", "d", "compliance-atlas.db",
		"Path to the embedded assessment database")
	rootCmd.Flags().StringVarP(&azureCfgPath, "azure-config", "c", defaultAzureCfg,
		"Path to the Azure profile config (default is $HOME/.azure/config)")
	rootCmd.Flags().StringVar(&collectorCfg, "collector-config", "",
		"Optional path to collector threshold config")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 4,
		"Number of concurrent assessment workers")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

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

	reports, err := reportSink(ctx, provider)
	if err != nil {
		return err
	}
	if reports == nil {
		logger.Warn().Msg("REPORTS_ACCOUNT_URL not set, raw reports will not be persisted")
	}

	transport := queue.NewMemoryTransport(queue.DefaultMemoryConfig())
	worker := svc.NewWorker(db, assessments, findings, historyStore, registry, provider, reports)
	go func() {
		if err := transport.Consume(ctx, workers, worker.Handle); err != nil {
			logger.Error().Err(err).Msg("worker pool stopped")
		}
	}()

	dispatcher := svc.NewDispatcher(assessments, scopeStore, transport)

	host := os.Getenv("SERVER_HOST")
	port := os.Getenv("SERVER_PORT")
	if host == "" || port == "" {
		logger.Error().Msg("Missing server configuration from .env file")
		os.Exit(1)
	}

	api := server.NewWebAPI(logger, server.Config{
		Addr: net.JoinHostPort(host, port),
		Dependencies: server.Dependencies{
			Dispatcher:  dispatcher,
			Assessments: assessments,
			Findings:    findings,
			History:     historyStore,
		},
	})

	logger.Info().Int("workers", workers).Msg("assessment pipeline ready")

	return api.Start()
}

// reportSink builds the blob report store when an account URL is
// configured; raw report persistence is optional for local setups.
func reportSink(ctx context.Context, provider credentials.Provider) (svc.ReportSink, error) {
	accountURL := os.Getenv("REPORTS_ACCOUNT_URL")
	if accountURL == "" {
		return nil, nil
	}
	container := os.Getenv("REPORTS_CONTAINER")
	if container == "" {
		container = "assessment-reports"
	}

	session, err := provider.Acquire(ctx, credentials.DefaultProfile)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire report storage credentials: %w", err)
	}
	defer session.Close()

	store, err := blob.NewReportStore(accountURL, container, session.Credential)
	if err != nil {
		return nil, fmt.Errorf("failed to create report store: %w", err)
	}
	return store, nil
}
