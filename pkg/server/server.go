package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/de-tools/compliance-atlas/pkg/handlers/assessment"

	atlasmiddleware "github.com/de-tools/compliance-atlas/pkg/server/middleware"
	svc "github.com/de-tools/compliance-atlas/pkg/services/assessment"
	assessmentstore "github.com/de-tools/compliance-atlas/pkg/store/duckdb/assessment"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/finding"
	"github.com/de-tools/compliance-atlas/pkg/store/duckdb/history"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type WebAPI struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server
}

type Dependencies struct {
	Dispatcher  *svc.Dispatcher
	Assessments assessmentstore.Store
	Findings    finding.Store
	History     history.Store
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

func NewWebAPI(logger zerolog.Logger, config Config) *WebAPI {
	handler := handlers.NewHandler(
		config.Dependencies.Dispatcher,
		config.Dependencies.Assessments,
		config.Dependencies.Findings,
		config.Dependencies.History,
	)

	router := chi.NewRouter()

	router.Use(atlasmiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/assessments", handler.StartAssessment)
		r.Get("/assessments/{assessment}", handler.GetAssessment)
		r.Get("/assessments/{assessment}/findings", handler.ListFindings)
		r.Get("/customers/{customer}/findings", handler.ListCustomerFindings)
	})

	return &WebAPI{
		router: router,
		logger: &logger,
		server: &http.Server{
			Addr:    config.Addr,
			Handler: router,
		},
	}
}

func (w *WebAPI) Router() *chi.Mux {
	return w.router
}

func (w *WebAPI) Start() error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-shutdown:
		w.logger.Info().Msg("shutdown initiated")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := w.server.Shutdown(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			err = w.server.Close()
		}

		if err != nil {
			return err
		}
	}

	return nil
}
