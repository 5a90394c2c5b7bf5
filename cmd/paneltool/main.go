package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"cutx/catalog/internal/config"
	"cutx/catalog/internal/container"
	"cutx/catalog/internal/domain"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "paneltool",
	Short: "Operator tool for the CutX panel catalogue",
	Long: `paneltool runs the maintenance jobs of the panel catalogue:
schema migrations, catalogue seeding, backups, reclassification and cleanup.

Configuration is read from config.yaml (or CUTX_CONFIG) and the environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Debug("No .env file, using the process environment")
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if verbose {
			loaded.Log.Level = "debug"
		}
		container.SetupLogging(loaded.Log)
		log.SetOutput(os.Stderr)
		cfg = loaded
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(reclassifyCmd)
	rootCmd.AddCommand(assignCategoriesCmd)
	rootCmd.AddCommand(deactivateStaleCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(searchCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// withContainer connects to the database for the duration of fn.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, app *container.Container) error) error {
	ctx := cmd.Context()
	app, err := container.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

// withMaintenance is withContainer plus the maintenance service.
func withMaintenance(cmd *cobra.Command, fn func(ctx context.Context, app *container.Container) error) error {
	return withContainer(cmd, func(ctx context.Context, app *container.Container) error {
		if err := app.BuildMaintenance(ctx); err != nil {
			return err
		}
		return fn(ctx, app)
	})
}

func printReport(w io.Writer, report *domain.BatchReport) {
	if report == nil {
		return
	}
	fmt.Fprintln(w, report.String())

	fields := make([]string, 0, len(report.Changes))
	for field := range report.Changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintf(w, "  %-32s %d\n", field, report.Changes[field])
	}

	for _, itemErr := range report.Errors {
		if itemErr.Stage != "" {
			fmt.Fprintf(w, "  ✗ %s [%s]: %s\n", itemErr.Key, itemErr.Stage, itemErr.Error)
			continue
		}
		fmt.Fprintf(w, "  ✗ %s: %s\n", itemErr.Key, itemErr.Error)
	}
}
