package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/core"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/telemetry"
	"github.com/mohammad-safakhou/deepresearch/internal/search"
	srv "github.com/mohammad-safakhou/deepresearch/internal/server"
	"github.com/mohammad-safakhou/deepresearch/internal/session"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

func main() {
	var root = &cobra.Command{Use: "deepresearch", Short: "Multi-stage LLM research assistant"}

	var cfgPath string
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")

	root.AddCommand(
		researchCMD(&cfgPath),
		serveCMD(&cfgPath),
		sessionsCMD(&cfgPath),
		searchCMD(&cfgPath),
		indexCMD(&cfgPath),
		migrateCMD(&cfgPath),
		doctorCMD(&cfgPath),
	)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func researchCMD(cfgPath *string) *cobra.Command {
	var reportType string
	var noCache bool
	cmd := &cobra.Command{
		Use:   "research <query>",
		Short: "Run the research pipeline for one query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if noCache {
				cfg.Cache.Backend = "none"
			}
			rt, err := core.ParseReportType(reportType)
			if err != nil {
				return err
			}

			tel := telemetry.New(cfg.Telemetry.Enabled)
			orch, err := core.BuildOrchestrator(cfg, tel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			query := strings.Join(args, " ")
			result, err := orch.Run(ctx, query, rt)
			if err != nil {
				return err
			}

			sess := session.New(time.Now())
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
				fmt.Fprintf(os.Stderr, "warning: saving session: %v\n", err)
			}
			if cfg.Storage.Postgres.Enabled() {
				st, err := store.New(ctx, cfg.Storage.Postgres.DSN())
				if err != nil {
					fmt.Fprintf(os.Stderr, "warning: postgres unavailable: %v\n", err)
				} else {
					defer st.Close()
					if err := st.SaveRecord(ctx, sess.ID, rec); err != nil {
						fmt.Fprintf(os.Stderr, "warning: persisting record: %v\n", err)
					}
				}
			}
			if cfg.Search.Enabled {
				if idx, err := search.Open(cfg.Search.IndexDir); err == nil {
					defer idx.Close()
					_ = idx.IndexReport(result.ReportFile, search.ReportDoc{
						Query:     result.Query,
						Type:      string(result.ReportType),
						Content:   result.Report,
						CreatedAt: result.CreatedAt,
					})
				}
			}

			fmt.Println(result.Report)
			fmt.Fprintf(os.Stderr, "\nreport saved to %s (%d tasks, %d findings, %s)\n",
				result.ReportPath, len(result.Tasks), len(result.Findings), result.Duration.Round(time.Second))
			return nil
		},
	}
	cmd.Flags().StringVarP(&reportType, "type", "t", "detailed", "report type: detailed, executive, technical, summary")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the content cache")
	return cmd
}

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			return srv.Run(cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func sessionsCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List recorded research sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			sessions, err := session.List(cfg.General.ReportsDir)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions recorded")
				return nil
			}
			for _, s := range sessions {
				fmt.Printf("session %s (%d runs)\n", s.ID, len(s.Records))
				for _, r := range s.Records {
					fmt.Printf("  %s  %-10s  %6.1fs  %s\n",
						r.Timestamp.Format("2006-01-02 15:04:05"), r.ReportType, r.Duration, r.Query)
				}
			}
			return nil
		},
	}
}

func searchCMD(cfgPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over generated reports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			idx, err := search.Open(cfg.Search.IndexDir)
			if err != nil {
				return err
			}
			defer idx.Close()

			hits, err := idx.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("no matching reports")
				return nil
			}
			for _, h := range hits {
				fmt.Printf("%.3f  %s  %s (%s)\n", h.Score, h.ID, h.Query, h.Type)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	return cmd
}

func indexCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the search index from existing report files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			idx, err := search.Open(cfg.Search.IndexDir)
			if err != nil {
				return err
			}
			defer idx.Close()

			matches, err := filepath.Glob(filepath.Join(cfg.General.ReportsDir, "research_*.md"))
			if err != nil {
				return err
			}
			indexed := 0
			for _, path := range matches {
				data, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "warning: reading %s: %v\n", path, err)
					continue
				}
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				name := filepath.Base(path)
				doc := search.ReportDoc{
					Query:     reportHeaderField(string(data), "Query"),
					Type:      reportHeaderField(string(data), "Report Type"),
					Content:   string(data),
					CreatedAt: info.ModTime(),
				}
				if err := idx.IndexReport(name, doc); err != nil {
					return err
				}
				indexed++
			}
			fmt.Printf("indexed %d reports\n", indexed)
			return nil
		},
	}
}

// reportHeaderField pulls a "**Key:** value" line out of a report's metadata
// header.
func reportHeaderField(report, key string) string {
	marker := "**" + key + ":** "
	for _, line := range strings.Split(report, "\n") {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker))
		}
	}
	return ""
}

func migrateCMD(cfgPath *string) *cobra.Command {
	var dir string
	var direction string
	var steps int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			dsn := ""
			if cfg.Storage.Postgres.Enabled() {
				dsn = cfg.Storage.Postgres.DSN()
			}
			return srv.Migrate(dir, dsn, direction, steps)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source")
	cmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}

func doctorCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and local environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			fmt.Println("config: ok")

			if _, err := core.NewLLMProvider(cfg.LLM); err != nil {
				return fmt.Errorf("llm provider: %w", err)
			}
			fmt.Printf("llm provider: ok (%s, model %s)\n", cfg.LLM.Provider, cfg.LLM.Model)

			if err := os.MkdirAll(cfg.General.ReportsDir, 0o755); err != nil {
				return fmt.Errorf("reports dir: %w", err)
			}
			fmt.Printf("reports dir: ok (%s)\n", cfg.General.ReportsDir)

			switch cfg.Cache.Backend {
			case "file":
				if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
					return fmt.Errorf("cache dir: %w", err)
				}
				fmt.Printf("cache: ok (file, %s)\n", cfg.Cache.Dir)
			case "redis":
				rdb := core.NewRedisClient(cfg.Cache.Redis)
				defer rdb.Close()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("cache redis: %w", err)
				}
				fmt.Println("cache: ok (redis)")
			default:
				fmt.Println("cache: disabled")
			}

			if cfg.Storage.Postgres.Enabled() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				st, err := store.New(ctx, cfg.Storage.Postgres.DSN())
				if err != nil {
					return fmt.Errorf("postgres: %w", err)
				}
				st.Close()
				fmt.Println("postgres: ok")
			} else {
				fmt.Println("postgres: not configured")
			}

			if cfg.Search.Enabled {
				idx, err := search.Open(cfg.Search.IndexDir)
				if err != nil {
					return fmt.Errorf("search index: %w", err)
				}
				idx.Close()
				fmt.Printf("search index: ok (%s)\n", cfg.Search.IndexDir)
			}
			return nil
		},
	}
}
