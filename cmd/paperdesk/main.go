// Package main provides the paperdesk binary entry point. Paperdesk is an
// AI-assisted academic writing backend: a structured paper editor with
// dependency-gated sections, plus a literature analysis pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	// Register LLM providers via init()
	_ "github.com/paperdesk/paperdesk/llm/providers"

	"github.com/spf13/cobra"

	"github.com/paperdesk/paperdesk/analysis"
	"github.com/paperdesk/paperdesk/config"
	"github.com/paperdesk/paperdesk/export"
	"github.com/paperdesk/paperdesk/llm"
	"github.com/paperdesk/paperdesk/section"
	"github.com/paperdesk/paperdesk/server"
	"github.com/paperdesk/paperdesk/store"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "paperdesk"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Structured academic paper writing backend",
		Long: `Paperdesk serves a structured paper editor backend: papers are
section DAGs whose statuses derive from dependency completion, AI
actions propose rewrites that go through diff review, and a
literature pipeline converts, analyzes and synthesizes PDFs.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(&configPath))
	cmd.AddCommand(exportCmd(&configPath))
	cmd.AddCommand(versionCmd())

	return cmd
}

func configureLogging(logLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.NewLoader(slog.Default()).Load()
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backend HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	logger := slog.Default()
	graph := section.DefaultStructure()

	completer := llm.NewClient(llm.WithLogger(logger))

	papers, err := store.Open(cfg.Server.DataDir+"/papers", graph, store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open paper store: %w", err)
	}
	defer papers.Close()

	pipeline, err := analysis.NewService(cfg.Server.DataDir, completer, analysis.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create analysis service: %w", err)
	}

	srv := server.NewServer(graph, papers, completer, cfg.Model,
		server.WithLogger(logger),
		server.WithAnalysis(pipeline))

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("paperdesk listening",
			"addr", cfg.Server.Listen,
			"data_dir", cfg.Server.DataDir,
			"provider", cfg.Model.Provider)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func exportCmd(configPath *string) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <paper-id>",
		Short: "Export a paper as Markdown or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			graph := section.DefaultStructure()
			papers, err := store.Open(cfg.Server.DataDir+"/papers", graph)
			if err != nil {
				return fmt.Errorf("open paper store: %w", err)
			}
			defer papers.Close()

			doc, err := papers.Load(args[0])
			if err != nil {
				return err
			}

			var rendered string
			switch format {
			case "markdown":
				rendered = export.Markdown(graph, doc)
			case "html":
				rendered, err = export.HTML(graph, doc)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported format %q", format)
			}

			if output == "" {
				fmt.Print(rendered)
				return nil
			}
			return os.WriteFile(output, []byte(rendered), 0o644)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format (markdown, html)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}
