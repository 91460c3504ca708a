package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/psgc"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/postgres"
)

func importCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Load a CSV or XLSX datafile into the PostgreSQL records table",
		Long: `Import replaces the contents of the configured records table
(dataset.table) with the rows of --file, in datafile order, inside a single
transaction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.file == "" {
				return fmt.Errorf("--file is required")
			}
			ctx := cmd.Context()
			ds, err := opts.load(ctx)
			if err != nil {
				return err
			}

			pg, err := postgres.New(ctx, opts.cfg.Postgres)
			if err != nil {
				return err
			}
			defer pg.Close()
			store, err := dataset.NewStore(pg, opts.cfg.Dataset.Table)
			if err != nil {
				return err
			}
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			n, err := store.Import(ctx, ds.Records)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return opts.printJSON(cmd.OutOrStdout(), map[string]any{
					"table":    opts.cfg.Dataset.Table,
					"imported": n,
					"skipped":  ds.Skipped,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records into %s (%d rows skipped)\n", n, opts.cfg.Dataset.Table, ds.SkippedTotal())
			return nil
		},
	}
}

func validateCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a dataset for code, name and hierarchy problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scheme, err := opts.scheme()
			if err != nil {
				return err
			}
			ds, err := opts.load(cmd.Context())
			if err != nil {
				return err
			}
			report := psgc.Validate(ds.Records, scheme)

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				if err := opts.printJSON(out, report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "%d records checked under scheme %s\n", report.Records, report.Scheme)
				for _, kind := range slices.Sorted(maps.Keys(report.Counts)) {
					fmt.Fprintf(out, "  %-20s %d\n", kind, report.Counts[kind])
				}
				for i, issue := range report.Issues {
					if i == limit {
						fmt.Fprintf(out, "  ... %d more\n", len(report.Issues)-limit)
						break
					}
					fmt.Fprintf(out, "  %s  %s: %s\n", issue.Code, issue.Kind, issue.Detail)
				}
			}
			if !report.OK() {
				return fmt.Errorf("%d issues found", len(report.Issues))
			}
			if !opts.jsonOutput {
				fmt.Fprintln(out, "ok")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of issues to print")
	return cmd
}

func resolveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <code>...",
		Short: "Print the full path of one or more PSGC codes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}
			entries := make([]psgc.Entry, 0, len(args))
			for _, code := range args {
				entry, err := svc.Lookup(code)
				if err != nil {
					return err
				}
				entries = append(entries, entry)
			}
			return printEntries(cmd, opts, entries)
		},
	}
}

func searchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "search <level> [query]",
		Short: "Search a level by case-insensitive partial name",
		Long: `Search lists the records at <level> whose name contains [query].
Levels: regions, provinces, municipalities (cities and municipalities),
cities, barangays, or a datafile tag such as Reg, Prov, City, Mun, Bgy.
An empty query lists the whole level.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}
			var query string
			if len(args) == 2 {
				query = args[1]
			}
			entries, err := svc.SearchByName(args[0], query)
			if err != nil {
				return err
			}
			return printEntries(cmd, opts, entries)
		},
	}
}

func printEntries(cmd *cobra.Command, opts *options, entries []psgc.Entry) error {
	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		return opts.printJSON(out, entries)
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\t%s\n", e.Code, e.FullPath)
	}
	return nil
}
