package handler

import (
	"net/http"

	"github.com/docker/go-units"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"research_intake/config"
	"research_intake/identity"
	"research_intake/intake"
)

// multipartOverhead is the room left for form fields and part headers on top
// of the largest accepted file.
const multipartOverhead = 1 * units.MiB

type Server struct {
	intake       *intake.Service
	resolver     *identity.Resolver
	cors         config.CORSConfig
	maxBodyBytes int64
}

func NewServer(svc *intake.Service, resolver *identity.Resolver, corsCfg config.CORSConfig) *Server {
	return &Server{
		intake:       svc,
		resolver:     resolver,
		cors:         corsCfg,
		maxBodyBytes: svc.Config().MaxFileSizeBytes + multipartOverhead,
	}
}

func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(s.cors))

	router.Get("/healthz", s.Health)

	router.Group(func(r chi.Router) {
		r.Use(identity.Middleware(s.resolver))
		r.Post("/upload", s.Upload)
		r.Get("/upload/options", s.Options)
		r.Get("/upload/config", s.Config)
		r.Get("/upload/files", s.Files)
		r.Get("/upload/files/info", s.FileInfo)
		r.Head("/upload/files/info", s.FileExists)
	})
	return router
}
