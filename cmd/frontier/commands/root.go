// Package commands implements the frontier CLI.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/di"
	"github.com/aristath/frontier/pkg/logger"
)

type rootOptions struct {
	dataDir string
	verbose bool
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "frontier",
		Short: "Markowitz portfolio optimization",
		Long: `frontier samples random long-only portfolios, traces the efficient
frontier and converts the best portfolios into share quantities.

Examples:
  frontier import --file prices.csv
  frontier optimize --tickers AAA,BBB,CCC --notional 100000
  frontier risk --ticker AAA`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory (default FRONTIER_DATA_DIR)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(
		newImportCmd(opts),
		newOptimizeCmd(opts),
		newRiskCmd(opts),
	)
	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// open loads configuration and wires the container for a single command.
func (o *rootOptions) open(ctx context.Context, cmd *cobra.Command) (*config.Config, *di.Container, error) {
	if o.dataDir != "" {
		if err := os.Setenv("FRONTIER_DATA_DIR", o.dataDir); err != nil {
			return nil, nil, err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: true, Output: cmd.ErrOrStderr()})

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, container, nil
}
