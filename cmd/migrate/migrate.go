// Package migrate copies a HealthDesk database between backends, typically
// from the default SQLite file into MySQL.
package migrate

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/datastore"
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
)

type options struct {
	from  string
	to    string
	batch int
	clean bool
}

// Command creates the migrate command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy all data from one database into another",
		Long: `Copy doctors, patients, records, appointments and accounts from one
database into another. The target schema is created when missing and rows
that already exist in the target are skipped, so the command can be rerun.

Examples:
  # Configured SQLite file into the configured MySQL server
  healthdesk migrate

  # Explicit source and target
  healthdesk migrate --from sqlite:///./health.db --to mysql://clinic:secret@db:3306/healthdesk`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst, err := databases(settings, opts)
			if err != nil {
				return err
			}
			return Run(cmd.Context(), cmd.OutOrStdout(), src, dst, datastore.CopyOptions{
				BatchSize: opts.batch,
				Clean:     opts.clean,
				Log:       logger.Global().Module("migrate"),
			})
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "Source database URL (default: configured sqlite file)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Target database URL (default: configured mysql server)")
	cmd.Flags().IntVar(&opts.batch, "batch", datastore.DefaultCopyBatchSize, "Rows per insert")
	cmd.Flags().BoolVar(&opts.clean, "clean", false, "Empty target tables before copying")

	return cmd
}

// databases resolves source and target settings from flags, falling back
// to the configured sqlite file and mysql server.
func databases(settings *conf.Settings, opts options) (src, dst conf.DatabaseSettings, err error) {
	src = settings.Database
	src.Type = "sqlite"
	if opts.from != "" {
		if src, err = conf.ParseDatabaseURL(opts.from); err != nil {
			return src, dst, err
		}
	}

	dst = settings.Database
	dst.Type = "mysql"
	if opts.to != "" {
		if dst, err = conf.ParseDatabaseURL(opts.to); err != nil {
			return src, dst, err
		}
	}

	if src.Type == dst.Type && src.Type == "sqlite" && src.SQLite.Path == dst.SQLite.Path {
		return src, dst, errors.Newf("source and target are the same database").
			Component("migrate").
			Category(errors.CategoryValidation).
			Build()
	}
	return src, dst, nil
}

// Run opens both databases, copies every table and prints a summary. It
// fails when a target table ends up with fewer rows than its source.
func Run(ctx context.Context, out io.Writer, src, dst conf.DatabaseSettings, opts datastore.CopyOptions) error {
	source, err := open(src, opts.Log)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer func() { _ = source.Close() }()

	target, err := open(dst, opts.Log)
	if err != nil {
		return fmt.Errorf("failed to open target database: %w", err)
	}
	defer func() { _ = target.Close() }()

	start := time.Now()
	stats, err := datastore.Copy(ctx, source, target, opts)
	printSummary(out, stats, time.Since(start))
	if err != nil {
		return err
	}

	for _, s := range stats {
		if !s.Complete() {
			return errors.Newf("table %s has %d rows in the source but %d in the target", s.Table, s.Source, s.Target).
				Component("migrate").
				Category(errors.CategoryState).
				Context("table", s.Table).
				Build()
		}
	}
	return nil
}

func open(db conf.DatabaseSettings, log logger.Logger) (datastore.Interface, error) {
	settings := &conf.Settings{Database: db}
	store, err := datastore.New(settings, datastore.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

func printSummary(out io.Writer, stats []datastore.TableStats, elapsed time.Duration) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Table\tSource\tTarget\tCopied\tSkipped\tFailed\t")
	var copied, skipped, failed int64
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t\n", s.Table, s.Source, s.Target, s.Copied, s.Skipped, s.Failed)
		copied += s.Copied
		skipped += s.Skipped
		failed += s.Failed
	}
	fmt.Fprintf(w, "TOTAL\t\t\t%d\t%d\t%d\t\n", copied, skipped, failed)
	_ = w.Flush()
	fmt.Fprintf(out, "Finished in %s\n", elapsed.Round(time.Millisecond))
}
