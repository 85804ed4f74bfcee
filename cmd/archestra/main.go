// Package main provides the CLI entry point for archestra, a
// security-enforcing proxy between AI clients and OpenAI-compatible
// LLM services.
//
// The proxy applies three guardrails to every guarded completion:
// tool-invocation policies on assistant-proposed tool calls,
// trusted-data policies on inbound tool results, and dual-LLM
// quarantine sanitisation for untrusted results.
//
// # Basic Usage
//
// Start the server:
//
//	archestra serve --config archestra.yaml
//
// Manage database migrations:
//
//	archestra migrate up
//	archestra migrate status
//
// Inspect configuration:
//
//	archestra config schema
//	archestra config validate --config archestra.yaml
//
// # Environment Variables
//
//   - ARCHESTRA_DATABASE_URL (preferred) or DATABASE_URL: Postgres DSN
//   - OPENAI_API_KEY: upstream and dual-LLM OpenAI key
//   - ANTHROPIC_API_KEY: dual-LLM Anthropic key
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Geetk172/archestra/internal/config"
	"github.com/Geetk172/archestra/internal/dualllm"
	"github.com/Geetk172/archestra/internal/gateway"
	"github.com/Geetk172/archestra/internal/observability"
	"github.com/Geetk172/archestra/internal/providers"
	"github.com/Geetk172/archestra/internal/storage"
)

// Build information, populated by ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "archestra",
		Short:   "Security-enforcing proxy for LLM tool use",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}
	cmd.AddCommand(buildServeCmd())
	cmd.AddCommand(buildMigrateCmd())
	cmd.AddCommand(buildConfigCmd())
	return cmd
}

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the proxy server",
		Long: `Start the archestra proxy server.

The server will:
1. Load configuration from the specified file and the environment
2. Connect to Postgres and apply pending migrations
3. Initialize the upstream OpenAI client and the dual-LLM providers
4. Serve the guarded completion and management API

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	metrics := observability.NewMetrics()

	stores, db, err := storage.NewPostgresStores(cfg.Database.URL, &storage.PostgresConfig{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer stores.Close()

	migrator, err := storage.NewMigrator(db)
	if err != nil {
		return err
	}
	applied, err := migrator.Up(ctx, 0)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, id := range applied {
		logger.Info(ctx, "Applied migration", "id", id)
	}

	openAI := providers.NewOpenAI(cfg.LLM.OpenAI, metrics)
	anthropic := providers.NewAnthropic(cfg.LLM.Anthropic, metrics)
	sanitizer := dualllm.NewSanitizer(stores.DualLLM, openAI, anthropic, logger, metrics)

	server := gateway.NewServer(cfg, stores, openAI, sanitizer, logger, metrics, db)
	logger.Info(ctx, "Starting archestra", "version", version, "commit", commit)
	return server.Start(ctx)
}

func buildMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}
	cmd.AddCommand(buildMigrateUpCmd())
	cmd.AddCommand(buildMigrateDownCmd())
	cmd.AddCommand(buildMigrateStatusCmd())
	return cmd
}

func withMigrator(configPath string, fn func(ctx context.Context, m *storage.Migrator) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	stores, db, err := storage.NewPostgresStores(cfg.Database.URL, nil)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer stores.Close()

	migrator, err := storage.NewMigrator(db)
	if err != nil {
		return err
	}
	return fn(context.Background(), migrator)
}

func buildMigrateUpCmd() *cobra.Command {
	var (
		configPath string
		steps      int
	)
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(configPath, func(ctx context.Context, m *storage.Migrator) error {
				applied, err := m.Up(ctx, steps)
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Println("No pending migrations")
					return nil
				}
				for _, id := range applied {
					fmt.Println("Applied", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().IntVar(&steps, "steps", 0, "Apply at most N migrations (0 = all)")
	return cmd
}

func buildMigrateDownCmd() *cobra.Command {
	var (
		configPath string
		steps      int
	)
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(configPath, func(ctx context.Context, m *storage.Migrator) error {
				reverted, err := m.Down(ctx, steps)
				if err != nil {
					return err
				}
				if len(reverted) == 0 {
					fmt.Println("Nothing to roll back")
					return nil
				}
				for _, id := range reverted {
					fmt.Println("Reverted", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().IntVar(&steps, "steps", 1, "Roll back at most N migrations")
	return cmd
}

func buildMigrateStatusCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(configPath, func(ctx context.Context, m *storage.Migrator) error {
				applied, pending, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, a := range applied {
					fmt.Printf("applied  %s  %s\n", a.ID, a.AppliedAt.Format("2006-01-02 15:04:05"))
				}
				for _, p := range pending {
					fmt.Printf("pending  %s\n", p.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	cmd.AddCommand(buildConfigSchemaCmd())
	cmd.AddCommand(buildConfigValidateCmd())
	return cmd
}

func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the configuration JSON schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.JSONSchema()
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(configPath); err != nil {
				return err
			}
			fmt.Println("Configuration OK")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}
