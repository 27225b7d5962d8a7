package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/eekfonky/healthcore/internal/health"
	"github.com/eekfonky/healthcore/internal/metrics"
)

// OpsServer is the metrics listener, kept separate from the operator API so
// scrapers never share a port with mutating endpoints.
// Endpoints:
//
//	GET /metrics           Prometheus exposition
//	GET /metrics/summary   one-line human summary
//	GET /metrics/keyvalue  key=value pairs, one per line
//	GET /healthz           liveness
type OpsServer struct {
	e   *echo.Echo
	agg *health.Aggregator
}

func NewOpsServer(agg *health.Aggregator) *OpsServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &OpsServer{e: e, agg: agg}
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/metrics/summary", s.handleSummary)
	e.GET("/metrics/keyvalue", s.handleKeyValue)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

// Start serves on addr without blocking.
func (s *OpsServer) Start(addr string) {
	go func() { _ = s.e.Start(addr) }()
}

// Shutdown drains the listener within the given timeout.
func (s *OpsServer) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.e.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests and embedding.
func (s *OpsServer) Handler() http.Handler { return s.e }

func (s *OpsServer) handleSummary(c echo.Context) error {
	st := s.agg.Status()
	return c.String(http.StatusOK, metrics.Summary(string(st.Overall), st.Metrics, st.GeneratedAt))
}

func (s *OpsServer) handleKeyValue(c echo.Context) error {
	st := s.agg.Status()
	return c.String(http.StatusOK, metrics.KeyValue(string(st.Overall), st.Metrics))
}
