package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	chitrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/go-chi/chi.v5"
)

// Server is responsible for the transport layer of the API.
type Server struct {
	Logger            zerolog.Logger
	AsyncErrorHandler func(error)
	TraceExtractor    traceExtractor
	SessionService    handlerSessionService
	ViewerService     handlerViewerService
	URLSigningSecret  string
	Addr              string

	writer writer
	server http.Server
	router chi.Mux
}

// Init the server internal state.
func (s *Server) Init() error {
	if s.AsyncErrorHandler == nil {
		return errors.New("missing 'AsyncErrorHandler'")
	}
	if s.TraceExtractor == nil {
		return errors.New("missing TraceExtractor")
	}
	if s.SessionService == nil {
		return errors.New("missing SessionService")
	}
	if s.ViewerService == nil {
		return errors.New("missing ViewerService")
	}
	if s.Addr == "" {
		s.Addr = ":8080"
	}
	s.router = *chi.NewRouter()
	s.writer.logger = s.Logger
	s.writer.traceExtractor = s.TraceExtractor
	s.initMiddleware()
	s.initHandler()
	return nil
}

// Start the server.
func (s *Server) Start() {
	// Rendering fetches the image to probe its size, the write timeout has to cover the upstream latency.
	s.server = http.Server{
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    maxBodySize,
		Addr:              s.Addr,
		Handler:           &s.router,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.AsyncErrorHandler(fmt.Errorf("fail to start the http server: %w", err))
		}
	}()
}

// Stop the server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("fail to close the http server: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be mounted without listening, which is how the handlers are tested.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initMiddleware() {
	m := middleware{log: s.Logger, writer: s.writer, traceExtractor: s.TraceExtractor, secret: s.URLSigningSecret}
	s.router.Use(m.recoverer)
	s.router.Use(chitrace.Middleware(chitrace.WithServiceName("iiifviewer")))
	s.router.Use(chiMiddleware.NoCache)
	s.router.Use(chiMiddleware.RealIP)
	s.router.Use(chiMiddleware.RequestID)
	s.router.Use(chiMiddleware.StripSlashes)
	s.router.Use(chiMiddleware.NewCompressor(5, "application/json").Handler)
	s.router.Use(m.logger)
	s.router.Use(m.limitReader(maxBodySize))
	s.router.Use(m.signature)
}

func (s *Server) initHandler() {
	h := handler{
		writer:         s.writer,
		logger:         s.Logger,
		traceExtractor: s.TraceExtractor,
		sessions:       s.SessionService,
		viewer:         s.ViewerService,
	}

	s.router.MethodNotAllowed(h.methodNotAllowed)
	s.router.NotFound(h.notFound)
	s.router.Get("/health", h.health)
	s.router.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.session)
			r.Post("/member", h.selectMember)
			r.Post("/render", h.render)
			r.Post("/overlay", h.overlay)
			r.Post("/rois", h.saveRegion)
			r.Get("/rois/{canvas}", h.listRegions)
			r.Post("/rois/{canvas}/{roi}/url", h.regionURL)
			r.Post("/zoom", h.zoom)
			r.Post("/stack", h.stack)
			r.Get("/describe", h.describe)
		})
	})
}
