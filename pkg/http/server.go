package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"SellerGuard/pkg/http/middleware"
	applogger "SellerGuard/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerOption configures Server.
type ServerOption func(*serverOptions)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type serverOptions struct {
	addr          string
	readTimeout   time.Duration
	writeTimeout  time.Duration
	corsOrigins   []string // nil disables CORS, "*" admits any origin
	metricsPath   string   // empty disables /metrics
	slowThreshold time.Duration
	logger        *applogger.Logger
	checks        map[string]HealthCheck
}

// Server is the Echo instance serving the API, /healthz and /metrics.
type Server struct {
	echo *echo.Echo
	opts serverOptions
	addr string
}

// NewServer builds the middleware stack and lets every handler register its routes.
func NewServer(handlers []Handler, opts ...ServerOption) *Server {
	o := serverOptions{
		addr:          ":8080",
		readTimeout:   10 * time.Second,
		writeTimeout:  10 * time.Second,
		metricsPath:   "/metrics",
		slowThreshold: time.Second,
		checks:        map[string]HealthCheck{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := echo.New()
	e.HideBanner, e.HidePort = true, true
	e.Server.ReadTimeout = o.readTimeout
	e.Server.WriteTimeout = o.writeTimeout
	e.HTTPErrorHandler = errorHandler(o.logger)

	e.Use(
		middleware.Recover(o.logger),
		middleware.Metrics(o.logger, o.slowThreshold),
		middleware.RequestLogging(o.logger),
	)
	if o.corsOrigins != nil {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowOrigins: o.corsOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			MaxAge:       600,
		}))
	}

	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
	e.GET("/healthz", healthHandler(o.checks))
	if o.metricsPath != "" {
		e.GET(o.metricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	return &Server{echo: e, opts: o}
}

// Start binds the listen address and serves in the background. Bind errors are returned.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.addr, err)
	}
	s.echo.Listener = ln
	s.addr = ln.Addr().String()

	l := s.opts.logger
	if l != nil {
		l.Info("http server listening", applogger.String("addr", s.addr))
	}
	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) && l != nil {
			l.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once Start returned.
func (s *Server) Addr() string { return s.addr }

// Stop drains in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if s.opts.logger != nil {
		s.opts.logger.Info("http server stopped")
	}
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// errorHandler renders errors that escaped the handlers in the APIResponse envelope.
func errorHandler(l *applogger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var (
			he   *echo.HTTPError
			perr *middleware.PanicError
		)
		switch {
		case errors.As(err, &he):
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			err = NewAppError(fmt.Sprintf("ERR_HTTP_%d", he.Code), "", msg, he.Code)
		case errors.As(err, &perr):
			err = InternalError("Internal Server Error").WithError(perr)
		default:
			if l != nil {
				l.Error("unhandled handler error", applogger.String("route", c.Path()), applogger.Error(err))
			}
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(statusOf(err))
			return
		}
		_ = AppErrorResponse(c, err)
	}
}

func statusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func healthHandler(checks map[string]HealthCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		report := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				report[name] = err.Error()
				healthy = false
				continue
			}
			report[name] = "ok"
		}
		if !healthy {
			return DataResponse(c, http.StatusServiceUnavailable, report)
		}
		return SuccessResponse(c, report)
	}
}

// WithAddr sets the listen address, e.g. ":8080" or "127.0.0.1:0".
func WithAddr(addr string) ServerOption {
	return func(o *serverOptions) { o.addr = addr }
}

func WithPort(port int) ServerOption {
	return func(o *serverOptions) { o.addr = fmt.Sprintf(":%d", port) }
}

func WithTimeouts(read, write time.Duration) ServerOption {
	return func(o *serverOptions) { o.readTimeout, o.writeTimeout = read, write }
}

// WithCORSOrigins enables CORS for the given origins. An empty list leaves CORS off.
func WithCORSOrigins(origins []string) ServerOption {
	return func(o *serverOptions) {
		if len(origins) > 0 {
			o.corsOrigins = origins
		}
	}
}

func WithLogger(l *applogger.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// WithMetricsPath sets the Prometheus scrape path; empty disables it.
func WithMetricsPath(path string) ServerOption {
	return func(o *serverOptions) { o.metricsPath = path }
}

// WithHealthCheck adds a named dependency check to /healthz. Nil checks are ignored.
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(o *serverOptions) {
		if check != nil {
			o.checks[name] = check
		}
	}
}
