package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/core"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/search"
	"github.com/mohammad-safakhou/deepresearch/internal/session"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

type researchRequest struct {
	Query      string `json:"query"`
	ReportType string `json:"report_type"`
}

type researchResponse struct {
	ID         string  `json:"id"`
	Query      string  `json:"query"`
	Tasks      int     `json:"tasks"`
	Findings   int     `json:"findings"`
	ReportType string  `json:"report_type"`
	ReportFile string  `json:"report_file"`
	ReportPath string  `json:"report_path"`
	Duration   float64 `json:"duration_seconds"`
	Report     string  `json:"report"`
}

// Run starts the HTTP API and blocks until the listener fails.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	tel := telemetry.New(cfg.Telemetry.Enabled)
	if reg := tel.Registry(); reg != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	orch, err := core.BuildOrchestrator(cfg, tel)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var st *store.Store
	if cfg.Storage.Postgres.Enabled() {
		dsn := cfg.Storage.Postgres.DSN()
		if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		st, err = store.New(ctx, dsn)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	var idx *search.Index
	if cfg.Search.Enabled {
		idx, err = search.Open(cfg.Search.IndexDir)
		if err != nil {
			return err
		}
		defer idx.Close()
	}

	sess := session.New(time.Now())

	api := e.Group("/api")
	api.POST("/research", func(c echo.Context) error {
		var req researchRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.Query == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "query is required")
		}
		reportType, err := core.ParseReportType(req.ReportType)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		result, err := orch.Run(c.Request().Context(), req.Query, reportType)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}

		rec := session.Record{
			Timestamp:  result.CreatedAt,
			Query:      result.Query,
			ReportType: string(result.ReportType),
			ReportFile: result.ReportFile,
			ReportPath: result.ReportPath,
			Duration:   result.Duration.Seconds(),
		}
		sess.Append(rec)
		if _, err := sess.Save(cfg.General.ReportsDir); err != nil {
			baseLogger.Printf("saving session: %v", err)
		}
		if st != nil {
			if err := st.SaveRecord(c.Request().Context(), sess.ID, rec); err != nil {
				baseLogger.Printf("persisting record: %v", err)
			}
		}
		if idx != nil {
			doc := search.ReportDoc{
				Query:     result.Query,
				Type:      string(result.ReportType),
				Content:   result.Report,
				CreatedAt: result.CreatedAt,
			}
			if err := idx.IndexReport(result.ReportFile, doc); err != nil {
				baseLogger.Printf("indexing report: %v", err)
			}
		}

		return c.JSON(http.StatusOK, researchResponse{
			ID:         result.ID,
			Query:      result.Query,
			Tasks:      len(result.Tasks),
			Findings:   len(result.Findings),
			ReportType: string(result.ReportType),
			ReportFile: result.ReportFile,
			ReportPath: result.ReportPath,
			Duration:   result.Duration.Seconds(),
			Report:     result.Report,
		})
	})

	api.GET("/sessions", func(c echo.Context) error {
		if st != nil {
			records, err := st.ListRecords(c.Request().Context(), 50)
			if err != nil {
				return err
			}
			return c.JSON(http.StatusOK, records)
		}
		sessions, err := session.List(cfg.General.ReportsDir)
		if err != nil {
			return err
		}
		if sessions == nil {
			sessions = []*session.Session{}
		}
		return c.JSON(http.StatusOK, sessions)
	})

	return e.Start(cfg.Server.Address)
}
