package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newRiskCmd(opts *rootOptions) *cobra.Command {
	var ticker string

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Print risk measures for a stored ticker",
		Long: `Computes volatility, EWMA, parametric VaR, expected tail loss and
drawdown from the stored closes of a ticker.

Example:
  frontier risk --ticker AAA`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, container, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			summary, err := container.RiskService.Summary(cmd.Context(), ticker)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().StringVarP(&ticker, "ticker", "t", "", "ticker to analyse")
	_ = cmd.MarkFlagRequired("ticker")
	return cmd
}
