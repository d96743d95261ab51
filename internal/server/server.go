package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"rfpdesk/internal/correlator"
	"rfpdesk/internal/mailer"
	"rfpdesk/internal/pipeline"
	"rfpdesk/internal/storage"
)

// Server wires storage, mail and the extraction pipeline behind the
// REST API. Mailer and Correlator may be nil when SMTP or the mailbox
// is not configured; the routes that need them fail with a clear
// message instead of at startup.
type Server struct {
	db         *storage.DB
	extractor  *pipeline.Extractor
	comparer   *pipeline.Comparer
	mailer     *mailer.Mailer
	correlator *correlator.Correlator
	port       int
}

func New(db *storage.DB, extractor *pipeline.Extractor, comparer *pipeline.Comparer,
	m *mailer.Mailer, corr *correlator.Correlator, port int) *Server {
	return &Server{
		db:         db,
		extractor:  extractor,
		comparer:   comparer,
		mailer:     m,
		correlator: corr,
		port:       port,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/vendors", s.handleCreateVendor)
		r.Get("/vendors", s.handleListVendors)

		r.Post("/rfps", s.handleCreateRfp)
		r.Get("/rfps", s.handleListRfps)
		r.Get("/rfps/{id}", s.handleGetRfp)
		r.Post("/rfps/{id}/vendors", s.handleAttachVendors)
		r.Post("/rfps/{id}/send", s.handleSendInvitations)
		r.Get("/rfps/{id}/proposals", s.handleListProposals)
		r.Post("/rfps/{id}/proposals/from-email", s.handleProposalFromEmail)
		r.Get("/rfps/{id}/comparison", s.handleComparison)
		r.Get("/rfps/{id}/comparison.xlsx", s.handleComparisonExport)

		r.Post("/emails/poll", s.handlePollEmails)
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http server listening", zap.Int("port", s.port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		zap.L().Info("http server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
