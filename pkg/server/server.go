// Package server wires the authentication chains, stores, and HTTP
// handlers into a runnable server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/einlass-dev/einlass/pkg/auth"
	"github.com/einlass-dev/einlass/pkg/auth/factory"
	"github.com/einlass-dev/einlass/pkg/auth/session"
	"github.com/einlass-dev/einlass/pkg/auth/token"
	"github.com/einlass-dev/einlass/pkg/config"
	"github.com/einlass-dev/einlass/pkg/observability"
)

// Server is the einlass HTTP server. It owns the default authentication
// chain, any per-endpoint overrides, and the route table.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	deps    factory.Deps
	chain   *auth.Chain
	chains  map[string]*auth.Chain
	limiter auth.RateLimiter
	mux     *http.ServeMux
	httpSrv *http.Server
}

// Option customizes the server.
type Option func(*Server)

// WithLogger sets the logger used for request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New builds a server from configuration and shared collaborators. The
// default chain and the per-endpoint overrides are constructed once at
// startup; unknown strategy identifiers fail fast here rather than on
// the first request.
func New(cfg *config.Config, deps factory.Deps, opts ...Option) (*Server, error) {
	chain, overrides, err := factory.Chains(&cfg.Auth, deps)
	if err != nil {
		return nil, fmt.Errorf("building authentication chains: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		logger: slog.Default(),
		deps:   deps,
		chain:  chain,
		chains: overrides,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Throttle.Enabled {
		tiers := make(map[string]auth.TierConfig, len(cfg.Throttle.Tiers))
		for name, rpm := range cfg.Throttle.Tiers {
			tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
		}
		s.limiter = auth.NewInProcessLimiter(tiers, cfg.Throttle.DefaultRPM)
	}

	s.mux = s.routes()
	return s, nil
}

// chainFor returns the chain serving the given path, falling back to
// the default chain when no override is configured.
func (s *Server) chainFor(path string) *auth.Chain {
	if c, ok := s.chains[path]; ok {
		return c
	}
	return s.chain
}

// routes builds the route table. Credential-issuing endpoints (login,
// token obtain) are left outside the authentication middleware; every
// other API route resolves its chain before the handler runs.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /api/token", &token.ObtainHandler{
		Users:  s.deps.Users,
		Tokens: s.deps.Tokens,
	})

	if s.deps.Sessions != nil {
		mux.Handle("POST /api/login", &session.LoginHandler{
			Users:   s.deps.Users,
			Manager: s.deps.Sessions,
		})
		mux.Handle("POST /api/logout", &session.LogoutHandler{
			Manager: s.deps.Sessions,
		})
	}

	mux.Handle("GET /api/whoami", s.protect("/api/whoami", http.HandlerFunc(handleWhoami)))
	mux.Handle("GET /api/private", s.protectAuthenticated("/api/private", http.HandlerFunc(handlePrivate)))
	mux.Handle("GET /api/admin", s.protectScoped("/api/admin", http.HandlerFunc(handleAdmin), "admin"))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	if s.cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+s.cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	return mux
}

// protect resolves the path's chain and passes anonymous requests through.
func (s *Server) protect(path string, h http.Handler) http.Handler {
	return auth.Middleware(s.chainFor(path), s.limiter, nil)(h)
}

// protectAuthenticated resolves the path's chain and denies anonymous
// requests.
func (s *Server) protectAuthenticated(path string, h http.Handler) http.Handler {
	chain := s.chainFor(path)
	return auth.Middleware(chain, s.limiter, nil)(auth.RequireAuthenticated(chain, h))
}

// protectScoped resolves the path's chain and requires every listed scope.
func (s *Server) protectScoped(path string, h http.Handler, scopes ...string) http.Handler {
	chain := s.chainFor(path)
	return auth.Middleware(chain, s.limiter, nil)(auth.RequireScopes(chain, h, scopes...))
}

// Handler returns the fully assembled handler stack. Recovery runs
// outermost so panics anywhere below are converted to 500s; CSRF runs
// after the observability layers so rejected requests still show up in
// logs and metrics.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.deps.Sessions != nil {
		h = session.CSRF(s.deps.Sessions)(h)
	}
	h = observability.MetricsMiddleware(h)
	h = Logging(s.logger)(h)
	h = RequestID(h)
	h = Recovery(h)
	return h
}

// ListenAndServe starts the HTTP server and blocks until the context is
// canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down server")
	return s.httpSrv.Shutdown(shutdownCtx)
}
