package admin

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"github.com/mnohosten/laura-db/pkg/storage"
)

// StatsSource is whatever the admin surface reports on. *storage.Engine
// and *index.BTree (root page id and height) both satisfy it; New merges
// an index source's Stats() output into /_stats under the "index" key.
type StatsSource interface {
	Stats() map[string]any
}

// Server is a thin, read-only HTTP surface over a storage engine's
// Stats() accessors. It never mutates core state and is entirely
// optional: the engine works standalone with zero admin wiring.
type Server struct {
	config  *Config
	engine  *storage.Engine
	index   StatsSource // optional, may be nil
	router  *chi.Mux
	httpSrv *http.Server
}

// New builds an admin server over engine. index, if non-nil, is merged
// into /_stats under the "index" key.
func New(config *Config, engine *storage.Engine, index StatsSource) *Server {
	s := &Server{
		config: config,
		engine: engine,
		index:  index,
		router: chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(s.corsMiddleware)

	s.router.Get("/_health", s.handleHealth)
	s.router.Get("/_stats", s.handleStats)
	s.router.Get("/_pages/{id}/checksum", s.handlePageChecksum)
	s.router.Get("/_ws/stats", s.handleStatsWebSocket)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      gzhttp.GzipHandler(s.router),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.config.AllowedOrigins) > 0 {
			origin = s.config.AllowedOrigins[0]
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// snapshot merges engine and (if present) index stats into one payload.
func (s *Server) snapshot() map[string]any {
	out := s.engine.Stats()
	if s.index != nil {
		out["index"] = s.index.Stats()
	}
	return out
}

// Start begins serving and blocks until the server stops or ctx is
// cancelled, in which case it shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// Addr returns the address the server is configured to listen on.
func (s *Server) Addr() string {
	return s.httpSrv.Addr
}
