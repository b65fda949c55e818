// Package api serves tenant placement and folder browsing over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/zzenonn/vidshard/internal/domain"
	"github.com/zzenonn/vidshard/internal/metrics"
)

type TenantProvisioner interface {
	ProvisionTenant(ctx context.Context, tenantID string, hint domain.Region) (domain.PlacementDescriptor, error)
	Deactivate(ctx context.Context, tenantID string) (domain.TenantAssignment, error)
}

type FolderBrowser interface {
	GetFolderTree(ctx context.Context, tenantID string) (*domain.TreeNode, error)
	CreateFolder(ctx context.Context, tenantID, name, parentID string) (domain.Collection, error)
}

type ShardLoads interface {
	Loads(ctx context.Context) ([]domain.ShardLoad, error)
}

// Server wires the HTTP routes to the services.
type Server struct {
	router      *chi.Mux
	provisioner TenantProvisioner
	folders     FolderBrowser
	shards      ShardLoads
	metrics     *metrics.Metrics
	server      *http.Server
}

// NewServer creates the router. Requests time out after requestTimeout.
func NewServer(provisioner TenantProvisioner, folders FolderBrowser, shards ShardLoads, m *metrics.Metrics, requestTimeout time.Duration) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))

	s := &Server{
		router:      router,
		provisioner: provisioner,
		folders:     folders,
		shards:      shards,
		metrics:     m,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Post("/placement", s.handleProvision)
		r.Delete("/placement", s.handleDeactivate)
		r.Get("/folders", s.handleFolderTree)
		r.Post("/folders", s.handleCreateFolder)
	})

	s.router.Get("/shards", s.handleShards)
}

// ServeHTTP makes Server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.metrics.WrapHTTPServer(s.router).ServeHTTP(w, r)
}

// Start listens on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("HTTP server listening on %s", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(started),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}
