// Command psgcctl is the operator CLI for the PSGC dataset: it imports a
// datafile into PostgreSQL, checks a dataset against the hierarchy rules, and
// answers resolve and search queries without starting the API.
//
// Usage:
//
//	psgcctl import --file PSGC-2Q-2025.xlsx
//	psgcctl validate --file data/psgc.csv --segmentation 2-4-6
//	psgcctl resolve 1381300001
//	psgcctl search barangays "pob"
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/internal/psgc"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags shared by every subcommand.
type options struct {
	configPath   string
	file         string
	sheet        string
	segmentation string
	jsonOutput   bool

	cfg *config.Config
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "psgcctl",
		Short:         "Manage and query the PSGC dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.segmentation != "" {
				cfg.PSGC.Segmentation = opts.segmentation
			}
			if opts.sheet != "" {
				cfg.Dataset.Sheet = opts.sheet
			}
			opts.cfg = cfg
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), cfg.Logging.Level, "text"))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config file (defaults and PSGC_* env when empty)")
	flags.StringVar(&opts.file, "file", "", "read the dataset from this CSV or XLSX file instead of the configured source")
	flags.StringVar(&opts.sheet, "sheet", "", "worksheet to read from an XLSX file")
	flags.StringVar(&opts.segmentation, "segmentation", "", "code segmentation scheme (2-5-7, 2-4-6, standard, legacy)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	cmd.AddCommand(
		importCmd(opts),
		validateCmd(opts),
		resolveCmd(opts),
		searchCmd(opts),
	)
	return cmd
}

// source picks the --file override, or the configured dataset source.
func (o *options) source(pg *postgres.Client) (dataset.Source, error) {
	if o.file == "" {
		return dataset.Open(o.cfg.Dataset, pg)
	}
	switch strings.ToLower(filepath.Ext(o.file)) {
	case ".xlsx", ".xlsm":
		return &dataset.XLSXSource{Path: o.file, Sheet: o.cfg.Dataset.Sheet}, nil
	default:
		return &dataset.CSVSource{Path: o.file}, nil
	}
}

func (o *options) scheme() (psgc.Scheme, error) {
	return psgc.ParseScheme(o.cfg.PSGC.Segmentation)
}

// load reads the dataset, connecting to PostgreSQL only when the configured
// source needs it.
func (o *options) load(ctx context.Context) (*dataset.Dataset, error) {
	var pg *postgres.Client
	if o.file == "" && o.cfg.Dataset.Source == config.SourcePostgres {
		var err error
		pg, err = postgres.New(ctx, o.cfg.Postgres)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
	}
	src, err := o.source(pg)
	if err != nil {
		return nil, err
	}
	return dataset.Load(ctx, src, o.cfg.Dataset.LoadTimeout)
}

func (o *options) service(ctx context.Context) (*psgc.Service, error) {
	scheme, err := o.scheme()
	if err != nil {
		return nil, err
	}
	ds, err := o.load(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := psgc.NewIndex(ds.Records)
	if err != nil {
		return nil, err
	}
	return psgc.NewService(idx, scheme, psgc.WithStrictLevels(o.cfg.PSGC.StrictLevels)), nil
}

func (o *options) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
