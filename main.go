package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-ledger/config"
	"library-ledger/library"
	"library-ledger/library/memstore"
	"library-ledger/library/sqlstore"
	"library-ledger/report"
)

// app carries what every command shares: settings, the open ledger and the sink.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	envFiles []string
	cfg      config.Config
	logger   *slog.Logger
	mgr      *library.LibraryManager
	sink     library.Sink

	driver   string
	dsn      string
	format   string
	logLevel string
}

func main() {
	a := &app{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	err := a.rootCmd().Execute()
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
		fmt.Fprintf(a.errOut, "Error: %v\n", err)
	}
	if err != nil {
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ledger",
		Short:        "Library circulation ledger",
		Long:         "Track books, members and loans, and report on stock, overdue fines and popularity.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isTerminal(a.in) {
				return cmd.Help()
			}
			return a.runMenu(cmd.Context())
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.driver, "driver", "", "database driver: sqlite3, pgx, postgres or memory (env "+config.EnvDriver+")")
	pf.StringVar(&a.dsn, "db", "", "database file or DSN (env "+config.EnvDSN+")")
	pf.StringVar(&a.format, "format", "", "output format: table or json (env "+config.EnvFormat+")")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error (env "+config.EnvLogLevel+")")

	root.AddCommand(
		a.bookCmd(),
		a.authorCmd(),
		a.categoryCmd(),
		a.memberCmd(),
		a.loanCmd(),
		a.reportCmd(),
		a.auditCmd(),
		a.menuCmd(),
	)
	return root
}

// configure resolves settings: env files, then environment, then flags.
func (a *app) configure(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("driver") {
		cfg.Driver = a.driver
	}
	if flags.Changed("db") {
		cfg.DSN = a.dsn
	}
	if flags.Changed("format") {
		cfg.Format = a.format
	}
	if flags.Changed("log-level") {
		if cfg.LogLevel, err = config.ParseLevel(a.logLevel); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.logger = config.NewLogger(a.errOut, cfg.LogLevel)

	if a.sink, err = report.New(cfg.Format, a.out); err != nil {
		return err
	}
	return nil
}

// driverMemory keeps the ledger in process; nothing survives the command.
const driverMemory = "memory"

// manager opens the ledger on first use so that help never touches the database.
func (a *app) manager(ctx context.Context) (*library.LibraryManager, error) {
	if a.mgr != nil {
		return a.mgr, nil
	}
	var store library.Store
	if a.cfg.Driver == driverMemory {
		store = memstore.New()
		a.logger.Debug("in-memory ledger opened")
	} else {
		db, err := sqlstore.Open(ctx, a.cfg.Driver, a.cfg.DSN, sqlstore.WithLogger(a.logger))
		if err != nil {
			return nil, fmt.Errorf("open %s database %s: %w", a.cfg.Driver, config.RedactDSN(a.cfg.DSN), err)
		}
		a.logger.Debug("database opened", "driver", a.cfg.Driver, "dsn", config.RedactDSN(a.cfg.DSN))
		store = db
	}
	a.mgr = library.NewLibraryManager(store,
		library.WithLogger(a.logger),
		library.WithTxTimeout(a.cfg.TxTimeout),
	)
	return a.mgr, nil
}

func (a *app) close() error {
	if a.mgr == nil {
		return nil
	}
	err := a.mgr.Close()
	a.mgr = nil
	return err
}

// done reports the outcome of a write: a sentence for tables, the record itself for JSON.
func (a *app) done(v any, format string, args ...any) error {
	if js, ok := a.sink.(*report.JSONSink); ok {
		return js.Encode("result", v)
	}
	_, err := fmt.Fprintf(a.out, format+"\n", args...)
	return err
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s ID %q", library.ErrInvalidArgument, kind, s)
	}
	return id, nil
}
