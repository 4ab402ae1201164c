package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgstream/config"
	"tgstream/core/job"
	"tgstream/logger"
	"tgstream/storage"

	"github.com/gorilla/mux"
)

//go:embed templates/*.html
var templateFS embed.FS

// ObjectSource reads mirrored stream files.
type ObjectSource interface {
	Open(ctx context.Context, jobID, file string) (io.ReadCloser, *storage.ObjectInfo, error)
}

// SegmentStore caches mirrored stream files.
type SegmentStore interface {
	Get(ctx context.Context, jobID, file string) []byte
	Set(ctx context.Context, jobID, file string, data []byte)
}

// Server is the HTTP surface of the service.
type Server struct {
	cfg      *config.Config
	jobs     *job.Service
	store    ObjectSource
	segments SegmentStore
	limiter  *RateLimiter
	proxies  TrustedProxies
	pages    *template.Template

	// how long a stream request waits for a transcoding job to publish its output
	readyWait time.Duration
}

// New creates a Server. store and segments may be nil.
func New(cfg *config.Config, jobs *job.Service, store ObjectSource, segments SegmentStore) *Server {
	proxies, err := ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Warn("Ignoring invalid TRUSTED_PROXIES entries", logger.ErrorField(err))
	}
	return &Server{
		cfg:       cfg,
		jobs:      jobs,
		store:     store,
		segments:  segments,
		limiter:   NewRateLimiter(cfg.RateLimitPerMin, time.Minute),
		proxies:   proxies,
		pages:     template.Must(template.ParseFS(templateFS, "templates/*.html")),
		readyWait: 3 * time.Second,
	}
}

func (s *Server) clientIP(r *http.Request) string {
	return s.proxies.ClientIP(r)
}

// Router wires every route.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/", s.IndexHandler).Methods(http.MethodGet)
	router.HandleFunc("/", s.limiter.Limit(s.clientIP, s.formRateLimited, s.SubmitFormHandler)).Methods(http.MethodPost)

	router.HandleFunc("/streams/{id}/{file}", s.StreamHandler).Methods(http.MethodGet, http.MethodHead)

	router.HandleFunc("/api/jobs", s.limiter.Middleware(s.clientIP, s.CreateJobHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/jobs/{id}", s.GetJobHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws/jobs/{id}", s.JobEventsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/cleanup", s.AdminMiddleware(s.CleanupHandler)).Methods(http.MethodPost)

	router.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)
	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
		return err
	}

	server := &http.Server{
		Addr:        ":" + s.cfg.Port,
		Handler:     s.Router(),
		ReadTimeout: 30 * time.Second,
		// form posts run the whole pipeline before responding
		WriteTimeout: s.cfg.JobTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			logger.String("addr", server.Addr),
			logger.String("outputDir", s.cfg.OutputDir),
			logger.Bool("bot", s.cfg.BotToken != ""),
			logger.Bool("session", s.cfg.SessionEnabled()),
			logger.Bool("minio", s.store != nil))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-stop:
	}

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	s.jobs.Close()
	logger.Info("Server stopped")
	return nil
}
