package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/apimarket/marketplace/internal/service"
)

func (a *app) newSalesCmd() *cobra.Command {
	var (
		days   int
		asJSON bool
	)
	report := &cobra.Command{
		Use:   "report",
		Short: "Show daily sales per listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer backend.Close()

			rep, err := backend.Sales.Report(cmd.Context(), days)
			if err != nil {
				return fmt.Errorf("sales report: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			return printReport(cmd, rep)
		},
	}
	report.Flags().IntVar(&days, "days", service.DefaultSalesDays, "window in days")
	report.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd := &cobra.Command{Use: "sales", Short: "Sales projections"}
	cmd.AddCommand(report)
	return cmd
}

func printReport(cmd *cobra.Command, rep *service.SalesReport) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tLISTING\tSALES\tREVENUE")
	for _, d := range rep.Daily {
		name := d.ListingName
		if name == "" {
			name = d.ListingID
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\n", d.Day.Format("2006-01-02"), name, d.Sales, d.Revenue)
	}
	fmt.Fprintf(tw, "TOTAL (%dd)\t\t%d\t%.2f\n", rep.Days, rep.TotalSales, rep.TotalRevenue)
	return tw.Flush()
}
