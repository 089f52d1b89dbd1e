package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/modules/optimization"
)

func newOptimizeCmd(opts *rootOptions) *cobra.Command {
	var (
		req      optimization.Request
		riskFree float64
		seed     int64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run a full portfolio optimization",
		Long: `Samples random portfolios over the stored history of the given tickers,
traces the efficient frontier and prints the maximum Sharpe and minimum
risk allocations.

Example:
  frontier optimize --tickers AAA,BBB,CCC --notional 100000
  frontier optimize --tickers AAA,BBB --notional 5000 --constraints --multiplier --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("risk-free") {
				req.RiskFreeRate = &riskFree
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}

			_, container, err := opts.open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			run, err := container.OptimizationService.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			return printRun(cmd.OutOrStdout(), run)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&req.Tickers, "tickers", nil, "comma-separated tickers")
	f.Float64Var(&req.Notional, "notional", 0, "total amount to invest")
	f.Float64Var(&riskFree, "risk-free", 0, "annual risk-free rate (default from config)")
	f.IntVar(&req.Portfolios, "portfolios", 0, "number of random portfolios (default from config)")
	f.IntVar(&req.FrontierPoints, "frontier-points", 0, "risk-aversion grid size (default from config)")
	f.BoolVar(&req.Constrained, "constraints", false, "enforce one-share minimum weights")
	f.BoolVar(&req.Multiplier, "multiplier", false, "draw weights as multiples of the minimum")
	f.BoolVar(&req.RequireAllNonZero, "non-zero", false, "only pick portfolios holding every asset")
	f.Int64Var(&seed, "seed", 0, "random seed (random when omitted)")
	f.BoolVar(&asJSON, "json", false, "print the full run as JSON")
	_ = cmd.MarkFlagRequired("tickers")
	_ = cmd.MarkFlagRequired("notional")
	return cmd
}

func printRun(out io.Writer, run *optimization.RunResult) error {
	fmt.Fprintf(out, "Run %s (%d portfolios, %d frontier points, %dms)\n",
		run.ID, run.Sampled, len(run.Frontier), run.DurationMs)

	for _, a := range []*optimization.AllocationResult{run.MaxSharpe, run.MinSigma} {
		if a == nil {
			continue
		}
		fmt.Fprintf(out, "\n%s: return %.4f, risk %.4f, sharpe %.4f, invested %.2f\n",
			a.Strategy, a.Return, a.Risk, a.Sharpe, a.NotionalTotal)

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "ticker\tweight\tquantity\tprice\tnotional\t")
		for i, t := range a.Tickers {
			fmt.Fprintf(tw, "%s\t%.4f\t%d\t%.2f\t%.2f\t\n",
				t, a.Weights[i], a.Quantities[i], a.Prices[i], a.Notionals[i])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
