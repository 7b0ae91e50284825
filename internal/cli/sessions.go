package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/molsim/dockenergy/internal/config"
	"github.com/molsim/dockenergy/internal/database"
	gormstorage "github.com/molsim/dockenergy/internal/storage/gorm"
	"github.com/molsim/dockenergy/pkg/core"
)

// storeFlags selects the database holding recorded sessions.
type storeFlags struct {
	DBPath   string
	Postgres bool
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.DBPath, "db", "", "SQLite dump to read")
	cmd.Flags().BoolVar(&f.Postgres, "postgres", false, "read from the configured PostgreSQL database")
	cmd.MarkFlagsMutuallyExclusive("db", "postgres")
}

// open connects to the selected database. The returned func closes it.
func (f *storeFlags) open() (*gorm.DB, func(), error) {
	var (
		db  *gorm.DB
		err error
	)
	switch {
	case f.Postgres:
		db, err = database.OpenPostgres(config.GetDBConfig())
	case f.DBPath != "":
		if _, statErr := os.Stat(f.DBPath); statErr != nil {
			return nil, nil, fmt.Errorf("opening session database: %w", statErr)
		}
		db, err = database.OpenSQLite(f.DBPath)
	default:
		return nil, nil, fmt.Errorf("no session database selected; use --db or --postgres")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening session database: %w", err)
	}
	return db, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}

func newSessionsCmd() *cobra.Command {
	var (
		store   storeFlags
		dir     string
		samples string
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded docking sessions",
		Long: "sessions lists the sessions recorded in a SQLite dump (--db), in the\n" +
			"configured PostgreSQL database (--postgres) or in every .db file of a\n" +
			"directory (--dir). With --samples it prints the trace of one session.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if store.DBPath != "" || store.Postgres {
				return listStore(out, &store, samples)
			}

			paths, err := database.ListDumps(dir)
			if err != nil {
				return fmt.Errorf("reading %s: %w", dir, err)
			}
			if len(paths) == 0 {
				fmt.Fprintf(out, "no session databases in %s\n", dir)
				return nil
			}
			for _, p := range paths {
				fmt.Fprintf(out, "== %s\n", p)
				if err := listStore(out, &storeFlags{DBPath: p}, samples); err != nil {
					return err
				}
			}
			return nil
		},
	}

	store.register(cmd)
	cmd.Flags().StringVar(&dir, "dir", ".", "directory searched for SQLite dumps when neither --db nor --postgres is given")
	cmd.Flags().StringVar(&samples, "samples", "", "print the energy trace of this session UUID")
	return cmd
}

func listStore(out io.Writer, store *storeFlags, samples string) error {
	db, closeDB, err := store.open()
	if err != nil {
		return err
	}
	defer closeDB()

	if samples != "" {
		trace, err := gormstorage.ListSamples(db, samples)
		if err != nil {
			return err
		}
		return printSamples(out, trace)
	}

	sessions, err := gormstorage.ListSessions(db)
	if err != nil {
		return err
	}
	return printSessions(out, sessions)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func printSessions(out io.Writer, sessions []core.SessionRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UUID\tKERNEL\tBODIES\tATOMS\tPAIRS\tPASSES\tFINAL\tSTARTED\tENDED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.3f\t%s\t%s\n",
			s.UUID, s.Kernel, strings.Join(s.Bodies, ","), s.Atoms, s.Pairs, s.Passes,
			s.Final.Total(), formatTime(s.StartedAt), formatTime(s.EndedAt))
	}
	return w.Flush()
}

func printSamples(out io.Writer, samples []core.EnergySample) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PASS\tTIME\tELEC\tVDW\tTOTAL\tPAIRS\tMS")
	for _, e := range samples {
		fmt.Fprintf(w, "%d\t%s\t%.3f\t%.3f\t%.3f\t%d\t%.2f\n",
			e.Pass, e.Time.Local().Format("15:04:05.000"), e.Energy.Elec, e.Energy.Vdw,
			e.Energy.Total(), e.Pairs, e.Duration.Seconds()*1000)
	}
	return w.Flush()
}
