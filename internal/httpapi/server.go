package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/text/language"

	"github.com/MimeLyc/srt-translator/internal/config"
	"github.com/MimeLyc/srt-translator/internal/persistence"
	"github.com/MimeLyc/srt-translator/internal/service"
)

const defaultMaxBodyBytes = 8 << 20

type translationService interface {
	TranslateSRT(ctx context.Context, data []byte, target language.Tag, source persistence.Source) (*service.Result, error)
	History(ctx context.Context, limit int) ([]persistence.TranslationRun, error)
	TargetLanguage() language.Tag
}

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type Server struct {
	svc      translationService
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

	allowedOrigins []string
	maxBodyBytes   int64

	router *chi.Mux
	server *http.Server
}

type Option func(*Server)

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

// WithAllowedOrigins sets the CORS origins. Empty means "*".
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithMaxBodyBytes limits the size of uploaded subtitles.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

func NewServer(svc translationService, opts ...Option) *Server {
	s := &Server{
		svc:          svc,
		maxBodyBytes: defaultMaxBodyBytes,
		router:       chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	r := s.router
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(cors.Handler(corsOptions(s.allowedOrigins)))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.With(maxBodySize(s.maxBodyBytes)).Post("/translate", s.handleTranslate)
		r.Get("/history", s.handleHistory)
		r.Get("/settings", s.handleGetSettings)
		r.With(maxBodySize(64<<10)).Put("/settings", s.handleUpdateSettings)
	})
}
