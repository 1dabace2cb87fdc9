package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/diabcrf/crf/internal/config"
	"github.com/diabcrf/crf/internal/domain/casereport"
	"github.com/diabcrf/crf/internal/domain/patient"
	"github.com/diabcrf/crf/internal/platform/db"
	"github.com/diabcrf/crf/internal/platform/form"
	"github.com/diabcrf/crf/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crf-server",
		Short:         "Diabetes admission case report form API",
		SilenceUsage: true,
	}
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(schemaCmd())
	cmd.AddCommand(exportCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(cfg.Level()).With().Timestamp().Logger()
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the embedded form schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "lint",
		Short: "Load and lint the form schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := casereport.LoadSchema()
			if err != nil {
				return err
			}
			fields := 0
			for _, sec := range schema.Sections {
				fields += countFields(sec.Fields)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema %s ok: %d sections, %d fields\n", schema.ID, len(schema.Sections), fields)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the form schema source",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := casereport.SchemaSource()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(src)
			return err
		},
	})

	return cmd
}

func countFields(fields []form.Field) int {
	n := 0
	for _, f := range fields {
		n += 1 + countFields(f.Fields)
	}
	return n
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export data",
	}

	patientsCmd := &cobra.Command{
		Use:   "patients",
		Short: "Export every patient record as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("out")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			return exportPatients(ctx, patient.NewService(patient.NewRepo(pool)), path, cmd.OutOrStdout())
		},
	}
	patientsCmd.Flags().String("out", "-", "Output file, - for stdout")
	cmd.AddCommand(patientsCmd)
	return cmd
}

func exportPatients(ctx context.Context, svc *patient.Service, path string, stdout io.Writer) error {
	out := stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	n, err := svc.ExportCSV(ctx, patient.Scope{All: true}, w)
	if err != nil {
		return fmt.Errorf("export after %d rows: %w", n, err)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if path != "-" {
		fmt.Fprintf(stdout, "Exported %d patient(s) to %s\n", n, path)
	}
	return nil
}
