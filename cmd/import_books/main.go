package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"library-catalog/library"
)

func main() {
	if err := newCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd(out io.Writer) *cobra.Command {
	var dataFile string
	cmd := &cobra.Command{
		Use:          "import_books <seed.tsv>",
		Short:        "Add books listed as title<TAB>author<TAB>isbn lines to a library data file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, args []string) error {
			cat, err := library.Load(dataFile)
			if errors.Is(err, library.ErrNotFound) {
				fmt.Fprintf(out, "No library at %s, creating a new one.\n", dataFile)
				cat, err = library.NewCatalog()
			}
			if err != nil {
				return err
			}
			defer cat.Close()

			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return err
			}
			defer f.Close()

			fmt.Fprintf(out, "Importing books from %s...\n", args[0])
			imported, failed, err := importBooks(cat, f, out)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nImport complete!\n")
			fmt.Fprintf(out, "Successfully imported: %d books\n", imported)
			fmt.Fprintf(out, "Errors: %d\n", failed)
			if imported == 0 {
				return nil
			}
			return cat.Save(dataFile)
		},
	}
	cmd.Flags().StringVarP(&dataFile, "data", "d", "library.dat", "library data file")
	return cmd
}

// importBooks adds one book per seed line. Lines starting with # are
// comments; malformed lines are reported and skipped.
func importBooks(cat *library.Catalog, r io.Reader, out io.Writer) (imported, failed int, err error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return imported, failed, nil
		}
		if err != nil {
			return imported, failed, fmt.Errorf("read seed file: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != 3 {
			fmt.Fprintf(out, "Line %d: ERROR - want 3 fields, got %d\n", line, len(rec))
			failed++
			continue
		}

		fmt.Fprintf(out, "Importing: %s by %s... ", rec[0], rec[1])
		b, err := cat.AddBook(rec[0], rec[1], rec[2])
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", b.ID)
		imported++
	}
}
