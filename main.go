package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-catalog/library"
)

// app carries what every command needs once flags and config are resolved.
type app struct {
	configFile string
	dataFile   string
	verbose    bool

	cfg    Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "library",
		Short:         "Library catalog manager",
		Long:          "Manage books, members and loans stored in a binary data file.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, errOut)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.openCatalog(out)
			if err != nil {
				return err
			}
			defer cat.Close()
			return newShell(cat, in, out, isTerminal(in), a.dataFile).run()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", defaultConfigFile, "configuration file")
	pf.StringVarP(&a.dataFile, "data", "d", "", "library data file (default from config, then "+defaultDataFile+")")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		a.statsCmd(out),
		a.listCmd(out),
		a.exportCmd(),
		a.importCmd(),
		a.checksumCmd(out),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, errOut io.Writer) error {
	cfg, err := loadConfig(a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if !cmd.Flags().Changed("data") {
		a.dataFile = cfg.DataFile
	}

	level, err := cfg.level()
	if err != nil {
		return err
	}
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
	return nil
}

// openCatalog loads the data file, starting a new catalog when there is none
// yet. Any other load failure is returned so a damaged file is never
// overwritten by an empty catalog.
func (a *app) openCatalog(out io.Writer) (*library.Catalog, error) {
	cat, err := library.Load(a.dataFile, library.WithLogger(a.logger))
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, library.ErrNotFound) {
		return nil, err
	}
	fmt.Fprintf(out, "No library at %s, creating a new one.\n", a.dataFile)
	return library.NewCatalog(library.WithLogger(a.logger))
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ------------------ Subcommands ------------------

func (a *app) statsCmd(out io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print book and member counts",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cat, err := a.openCatalog(io.Discard)
			if err != nil {
				return err
			}
			defer cat.Close()
			if asJSON {
				return writeJSON(out, cat.Statistics())
			}
			printStatistics(out, cat.Statistics())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (a *app) listCmd(out io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:       "list {books|members}",
		Short:     "List books or members",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"books", "members"},
		RunE: func(_ *cobra.Command, args []string) error {
			cat, err := a.openCatalog(io.Discard)
			if err != nil {
				return err
			}
			defer cat.Close()

			switch {
			case args[0] == "books" && asJSON:
				return writeJSON(out, emptyIfNil(slices.Collect(cat.Books())))
			case args[0] == "books":
				printBooks(out, cat)
			case asJSON:
				return writeJSON(out, emptyIfNil(slices.Collect(cat.Members())))
			default:
				printMembers(out, cat)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-sqlite [db]",
		Short: "Copy the catalog into a SQLite database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.SQLiteFile
			if len(args) == 1 {
				path = args[0]
			}
			cat, err := a.openCatalog(io.Discard)
			if err != nil {
				return err
			}
			defer cat.Close()
			if err := cat.ExportSQLite(cmdContext(cmd), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s.\n", a.dataFile, path)
			return nil
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-sqlite [db]",
		Short: "Replace the data file with a catalog read from SQLite",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.SQLiteFile
			if len(args) == 1 {
				path = args[0]
			}
			cat, err := library.ImportSQLite(cmdContext(cmd), path, library.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer cat.Close()
			if err := cat.Save(a.dataFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s into %s.\n", path, a.dataFile)
			return nil
		},
	}
}

func (a *app) checksumCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "checksum",
		Short: "Print the BLAKE2b-256 digest of the data file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			sum, err := library.FileDigest(a.dataFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s\n", sum, a.dataFile)
			return nil
		},
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
