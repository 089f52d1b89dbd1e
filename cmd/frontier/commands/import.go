package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import daily closes from a CSV file",
		Long: `Reads rows of date,ticker,close (header required, any column order)
and stores them in the price history. Returns are recomputed per ticker.

Example:
  frontier import --file prices.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", file, err)
			}
			defer f.Close()

			_, container, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			summary, err := container.PriceRepo.ImportCSV(cmd.Context(), f)
			if err != nil {
				return err
			}

			tickers := make([]string, 0, len(summary.Tickers))
			for t := range summary.Tickers {
				tickers = append(tickers, t)
			}
			sort.Strings(tickers)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d rows\n", summary.Rows)
			for _, t := range tickers {
				fmt.Fprintf(out, "  %-10s %d\n", t, summary.Tickers[t])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
