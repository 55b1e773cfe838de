package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var errDatabaseURL = errors.New("--database-url or DATABASE_URL is required")

func (a *app) newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "Export or import the listing catalog"}

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as a flat file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.exportCatalog(cmd, out)
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	cmd.AddCommand(export)
	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Import listings from a flat file; use - for stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  a.importCatalog,
	})
	return cmd
}

func (a *app) exportCatalog(cmd *cobra.Command, out string) error {
	backend, err := a.connect(cmd)
	if err != nil {
		return err
	}
	defer backend.Close()

	var w io.Writer = cmd.OutOrStdout()
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	if err := backend.Catalog.Export(cmd.Context(), w); err != nil {
		return fmt.Errorf("export catalog: %w", err)
	}
	return nil
}

func (a *app) importCatalog(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer f.Close()
		r = f
	}

	backend, err := a.connect(cmd)
	if err != nil {
		return err
	}
	defer backend.Close()

	result, err := backend.Catalog.Import(cmd.Context(), r)
	if err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
