package server

import (
	"Pictor/core"
	"Pictor/lib/sl"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	conf    *core.Config
	log     *slog.Logger
	images  core.ImageService
	metrics *Metrics
	router  *mux.Router
	http    *http.Server
}

// NewServer wires the HTTP routes to the image service; metrics are
// registered in registry and exposed on /metrics
func NewServer(conf *core.Config, log *slog.Logger, images core.ImageService, registry *prometheus.Registry) *Server {
	s := &Server{
		conf:    conf,
		log:     log.With(sl.Module("http-server")),
		images:  images,
		metrics: NewMetrics(registry),
		router:  mux.NewRouter(),
	}

	s.router.Use(s.logRequests)
	s.router.HandleFunc("/generate-image", s.generateImage).Methods(http.MethodPost)
	s.router.HandleFunc("/images-data", s.imagesData).Methods(http.MethodGet)
	s.router.HandleFunc(core.ImagesRoute+"{filename}", s.serveImage).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	if info, err := os.Stat(conf.PublicDir); err == nil && info.IsDir() {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(conf.PublicDir))).Methods(http.MethodGet, http.MethodHead)
		s.log.With(slog.String("dir", conf.PublicDir)).Info("serving public files")
	}

	s.http = &http.Server{
		Addr:              conf.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops; a stop through Stop is not an error
func (s *Server) Start() error {
	s.log.With(slog.String("addr", s.http.Addr)).Info("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
