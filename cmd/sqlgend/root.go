package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sqlgend/internal/config"
	"sqlgend/internal/httpapi"
	"sqlgend/internal/schema"
	"sqlgend/internal/sqlcheck"
)

func buildRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "sqlgend",
		Short:         "Natural-language to SQL conversion daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "Path to config file (yaml, json, or toml)")

	root.AddCommand(buildServeCmd(&cfgPath))
	root.AddCommand(buildAskCmd(&cfgPath))
	root.AddCommand(buildModelsCmd(&cfgPath))
	return root
}

func defaultConfigPath() string {
	if v := os.Getenv("SQLGEND_CONFIG"); v != "" {
		return v
	}
	return "sqlgend.yaml"
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = schema.DefaultContextLimit
	}
	return cfg, nil
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if v := os.Getenv("SQLGEND_LOG_LEVEL"); v != "" {
		if l, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = l
		}
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func buildServeCmd(cfgPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP daemon",
		Example: "  sqlgend serve --config sqlgend.yaml --addr :8080",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			logger := newLogger()

			svc, err := buildService(cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			httpapi.SetLogger(logger)
			httpapi.SetBaseContext(baseCtx)
			srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(svc)}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", cfg.Addr).Str("weights_dir", cfg.WeightsDir).Msg("sqlgend listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-baseCtx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("graceful shutdown")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}

func buildAskCmd(cfgPath *string) *cobra.Command {
	var profileID string
	var execute bool
	cmd := &cobra.Command{
		Use:     "ask <question>",
		Short:   "Convert one question to SQL and print it",
		Example: "  sqlgend ask \"total revenue by month\"\n  sqlgend ask --execute \"how many customers ordered twice\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			svc, err := buildService(cfg, newLogger())
			if err != nil {
				return err
			}
			defer svc.Close()

			question := strings.Join(args, " ")
			res, err := svc.Convert(cmd.Context(), question, profileID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.SQL)
			for _, c := range res.Corrections {
				fmt.Fprintf(cmd.ErrOrStderr(), "-- corrected: %s\n", c)
			}
			if !execute {
				return nil
			}
			if err := sqlcheck.Check(res.SQL); err != nil {
				return fmt.Errorf("refusing to execute: %w", err)
			}
			rs, err := svc.exec.Query(cmd.Context(), res.SQL)
			if err != nil {
				return err
			}
			renderResultSet(cmd.OutOrStdout(), rs)
			return nil
		},
	}
	cmd.Flags().StringVar(&profileID, "profile", "", "Model profile id (defaults to config default_profile)")
	cmd.Flags().BoolVar(&execute, "execute", false, "Run the generated statement and print the rows")
	return cmd
}

func renderResultSet(w io.Writer, rs *schema.ResultSet) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	header := make(table.Row, 0, len(rs.Columns))
	for _, c := range rs.Columns {
		header = append(header, c)
	}
	t.AppendHeader(header)
	for _, row := range rs.Rows {
		r := make(table.Row, 0, len(row))
		for _, v := range row {
			r = append(r, v)
		}
		t.AppendRow(r)
	}
	t.Render()
	if rs.Truncated {
		fmt.Fprintln(w, "(result truncated)")
	}
}

func buildModelsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "models",
		Short:   "List configured model profiles",
		Example: "  sqlgend models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			svc, err := buildService(cfg, newLogger())
			if err != nil {
				return err
			}
			defer svc.Close()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "FAMILY", "MIN MEM (MB)", "PRECISION", "RESOLVED"})
			for _, p := range svc.Profiles() {
				t.AppendRow(table.Row{p.ID, p.Family, p.MinMemMB, p.Precision, p.Resolved})
			}
			t.Render()
			return nil
		},
	}
}
