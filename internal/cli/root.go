// Package cli implements marketctl, the operator command line for catalog
// export/import and sales reports.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/apimarket/marketplace/internal/service"
)

// Catalog is the part of the listing service marketctl drives.
type Catalog interface {
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader) (*service.ImportResult, error)
}

// SalesReporter builds sales reports.
type SalesReporter interface {
	Report(ctx context.Context, days int) (*service.SalesReport, error)
}

// Backend is what a command needs once connected.
type Backend struct {
	Catalog Catalog
	Sales   SalesReporter
	Close   func()
}

// Opener connects to the database named by databaseURL.
type Opener func(ctx context.Context, databaseURL string) (*Backend, error)

type app struct {
	open        Opener
	databaseURL string
}

// NewRootCmd builds the marketctl command tree.
func NewRootCmd(version string, open Opener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:           "marketctl",
		Short:         "API marketplace operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")

	root.AddCommand(newVersionCmd(version))
	root.AddCommand(a.newCatalogCmd())
	root.AddCommand(a.newSalesCmd())
	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "marketctl %s\n", version)
		},
	}
}

// connect opens the backend for one command run.
func (a *app) connect(cmd *cobra.Command) (*Backend, error) {
	if a.databaseURL == "" {
		return nil, errDatabaseURL
	}
	return a.open(cmd.Context(), a.databaseURL)
}
