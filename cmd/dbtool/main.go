package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"field-visit-service/internal/adapters/repositories"
	"field-visit-service/internal/config"
	"field-visit-service/internal/platform/db"
	"field-visit-service/internal/services"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "dbtool",
		Short:        "Job store maintenance for the field visit service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c",
		config.Get("CONFIG_PATH", "config.yaml"), "path to service config file")

	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newDeriveCmd(opts))
	return cmd
}

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the job and geocode cache tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := connect(opts)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := repositories.InitSchema(cmd.Context(), conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema ready.")
			return nil
		},
	}
}

func newSeedCmd(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load jobs from a JSON file",
		Long:  "Creates the schema if needed and upserts every job in the seed file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := connect(opts)
			if err != nil {
				return err
			}
			defer conn.Close()

			path := file
			if path == "" {
				path = cfg.Database.SeedPath
			}
			if path == "" {
				return fmt.Errorf("seed: no seed file given (use --file or database.seed_path)")
			}

			if err := repositories.InitSchema(cmd.Context(), conn); err != nil {
				return err
			}
			n, err := repositories.SeedFromJSON(cmd.Context(), conn, cfg.Database.Driver, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d jobs from %s\n", n, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (default database.seed_path)")
	return cmd
}

func newDeriveCmd(opts *options) *cobra.Command {
	var (
		date       string
		technician string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the visits derived from the stored jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := connect(opts)
			if err != nil {
				return err
			}
			defer conn.Close()

			repo := repositories.NewSQLJobRepository(conn, cfg.Database.Driver, nil)
			jobs, err := repo.ListJobs(cmd.Context())
			if err != nil {
				return err
			}

			f := services.VisitFilter{TechnicianID: technician}
			if date != "" {
				if f.Date, err = services.NormalizeDate(date); err != nil {
					return err
				}
			}
			visits := services.FilterVisits(services.DeriveVisits(jobs), f)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(visits)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tTIME\tEND\tMIN\tSTATUS\tTECHNICIAN\tCLIENT")
			for _, v := range visits {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					v.ID, v.ScheduledDate, v.ScheduledTime, v.EndTime, v.EstimatedDuration,
					v.Status, v.TechnicianName, v.ClientName)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "only visits on this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&technician, "technician", "", "only visits of this technician id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func connect(opts *options) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	return cfg, conn, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
