package blogsync

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) handleHome(c echo.Context) error {
	report, err := s.latestReport(c.Request().Context())
	if errors.Is(err, ErrNotFound) {
		return RenderStatus(c, http.StatusOK, emptyReportPage())
	}
	if err != nil {
		return err
	}
	return Render(c, reportPage(report))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRuns(c echo.Context) error {
	if s.ledger == nil {
		return c.JSON(http.StatusOK, []RunRecord{})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := s.ledger.ListRuns(c.Request().Context(), c.QueryParam("kind"), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list runs")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if runs == nil {
		runs = []RunRecord{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleLatestCheck(c echo.Context) error {
	report, err := s.latestReport(c.Request().Context())
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no check has run yet"})
	}
	if err != nil {
		s.log.Error().Err(err).Msg("load latest check")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	return c.JSON(http.StatusOK, report)
}

func metricsHandler(g prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}
	if code >= 500 {
		s.log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("server error")
	}
	s.Echo.DefaultHTTPErrorHandler(err, c)
}
