package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"text/tabwriter"
	"time"

	"cutx/catalog/internal/container"
	"cutx/catalog/internal/migrations"
	"cutx/catalog/internal/search"
	"cutx/catalog/internal/service"
	"cutx/catalog/internal/storage"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|status]",
	Short:     "Apply or inspect the database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "up"
		if len(args) == 1 {
			action = args[0]
		}
		return withContainer(cmd, func(ctx context.Context, app *container.Container) error {
			if action == "status" {
				return migrations.Status(ctx, app.DB)
			}
			return migrations.Up(ctx, app.DB)
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Store the configured catalogues and their category trees",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, app *container.Container) error {
			ingest := service.NewIngestService(app.Catalogues, app.Categories, app.Panels, nil, nil, nil, app.Cache(ctx), cfg)
			if err := ingest.SyncCatalogues(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d catalogues\n", len(cfg.Suppliers))
			return nil
		})
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a gzip JSON backup of the catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		upload, _ := cmd.Flags().GetBool("upload")

		return withMaintenance(cmd, func(ctx context.Context, app *container.Container) error {
			if upload {
				key, report, err := app.Maintenance.BackupToStore(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s\n", key)
				printReport(cmd.OutOrStdout(), report)
				return nil
			}

			if out == "" {
				out = path.Base(storage.BackupKey(time.Now()))
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer f.Close()

			report, err := app.Maintenance.Backup(ctx, f)
			if err != nil {
				return err
			}
			if err := f.Sync(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			printReport(cmd.OutOrStdout(), report)
			return nil
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Load a backup from a file or from the backup store",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, _ := cmd.Flags().GetString("in")
		key, _ := cmd.Flags().GetString("key")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		return withMaintenance(cmd, func(ctx context.Context, app *container.Container) error {
			if key != "" {
				report, err := app.Maintenance.RestoreFromStore(ctx, key, batchSize)
				printReport(cmd.OutOrStdout(), report)
				return err
			}

			f, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", in, err)
			}
			defer f.Close()

			report, err := app.Maintenance.Restore(ctx, f, batchSize)
			printReport(cmd.OutOrStdout(), report)
			return err
		})
	},
}

var reclassifyCmd = &cobra.Command{
	Use:   "reclassify",
	Short: "Run the classification heuristics again over stored panels",
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts service.ReclassifyOptions
		opts.Catalogue, _ = cmd.Flags().GetString("catalogue")
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.Force, _ = cmd.Flags().GetBool("force")

		return withMaintenance(cmd, func(ctx context.Context, app *container.Container) error {
			report, err := app.Maintenance.Reclassify(ctx, opts)
			printReport(cmd.OutOrStdout(), report)
			return err
		})
	},
}

var assignCategoriesCmd = &cobra.Command{
	Use:   "assign-categories",
	Short: "Attach panels to the category derived from their classification",
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts service.AssignOptions
		opts.Catalogue, _ = cmd.Flags().GetString("catalogue")
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.Force, _ = cmd.Flags().GetBool("force")

		return withMaintenance(cmd, func(ctx context.Context, app *container.Container) error {
			report, err := app.Maintenance.AssignCategories(ctx, opts)
			printReport(cmd.OutOrStdout(), report)
			return err
		})
	},
}

var deactivateStaleCmd = &cobra.Command{
	Use:   "deactivate-stale",
	Short: "Hide the panels of a catalogue that recent scrapes no longer list",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalogue, _ := cmd.Flags().GetString("catalogue")
		days, _ := cmd.Flags().GetInt("days")

		return withMaintenance(cmd, func(ctx context.Context, app *container.Container) error {
			count, err := app.Maintenance.DeactivateStale(ctx, catalogue, time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deactivated %d panels of %s\n", count, catalogue)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count panels per catalogue and product type",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMaintenance(cmd, func(ctx context.Context, app *container.Container) error {
			counts, err := app.Maintenance.Stats(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CATALOGUE\tPRODUCT TYPE\tACTIVE\tTOTAL")
			for _, c := range counts {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", c.Catalogue, c.ProductType, c.Active, c.Total)
			}
			return tw.Flush()
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   `search "<query>"`,
	Short: "Show how a smart search query is parsed, and optionally run it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, _ := cmd.Flags().GetBool("run")
		limit, _ := cmd.Flags().GetInt("limit")
		out := cmd.OutOrStdout()

		q := search.ParseSmartQuery(args[0])
		parsed, err := json.MarshalIndent(q, "", "  ")
		if err != nil {
			return err
		}
		where, sqlArgs := search.BuildSmartSearchSQL(q, 1)

		fmt.Fprintf(out, "canonical: %s\n", q.String())
		fmt.Fprintf(out, "parsed:\n%s\n", parsed)
		fmt.Fprintf(out, "sql: %s\n", where)
		for i, arg := range sqlArgs {
			fmt.Fprintf(out, "  $%d = %v\n", i+1, arg)
		}

		if !run {
			return nil
		}
		if q.IsEmpty() {
			return fmt.Errorf("query %q has no search criteria", args[0])
		}

		return withContainer(cmd, func(ctx context.Context, app *container.Container) error {
			panels, total, err := app.Panels.Search(ctx, q, 1, limit)
			if err != nil {
				return err
			}
			log.Debugf("search returned %d of %d panels", len(panels), total)

			fmt.Fprintf(out, "\n%d panels match\n", total)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, p := range panels {
				price := "-"
				if p.PricePerM2 != nil {
					price = p.PricePerM2.StringFixed(2) + " €/m²"
				}
				fmt.Fprintf(tw, "%s\t%s\t%gmm\t%s\t%s\n", p.Reference, p.Name, p.ThicknessMM, p.ProductType, price)
			}
			return tw.Flush()
		})
	},
}

func init() {
	backupCmd.Flags().String("out", "", "Backup file (default cutx-<timestamp>.json.gz)")
	backupCmd.Flags().Bool("upload", false, "Upload to the backup store instead of writing a file")

	restoreCmd.Flags().String("in", "", "Backup file to restore")
	restoreCmd.Flags().String("key", "", "Key of the backup in the backup store")
	restoreCmd.Flags().Int("batch-size", 500, "Panels written per batch")
	restoreCmd.MarkFlagsOneRequired("in", "key")
	restoreCmd.MarkFlagsMutuallyExclusive("in", "key")

	for _, c := range []*cobra.Command{reclassifyCmd, assignCategoriesCmd} {
		c.Flags().String("catalogue", "", "Only process this catalogue")
		c.Flags().Bool("dry-run", false, "Report changes without writing them")
		c.Flags().Bool("force", false, "Overwrite values that are already set")
	}

	deactivateStaleCmd.Flags().String("catalogue", "", "Catalogue slug")
	deactivateStaleCmd.Flags().Int("days", 30, "Deactivate panels not scraped for this many days")
	_ = deactivateStaleCmd.MarkFlagRequired("catalogue")

	searchCmd.Flags().Bool("run", false, "Execute the query against the database")
	searchCmd.Flags().Int("limit", 20, "Maximum number of results to print")
}
