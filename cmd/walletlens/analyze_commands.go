package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/walletlens/service/analysis"
	"github.com/brojonat/walletlens/service/solana"
	"github.com/urfave/cli/v2"
)

const defaultRPCURL = "https://api.mainnet-beta.solana.com"

func analyzeCommands() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Run analyses locally against a Solana RPC endpoint",
		Subcommands: []*cli.Command{
			analyzeMintsCommand(),
			analyzeVolumeCommand(),
			analyzeLatestMintsCommand(),
		},
	}
}

func analyzeMintsCommand() *cli.Command {
	return &cli.Command{
		Name:      "mints",
		Usage:     "Summarize per-mint activity over a wallet's recent transactions",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "filter-failed",
				Usage: "Drop mints whose every transaction failed",
			},
			&cli.IntFlag{
				Name:  "max-tx",
				Usage: "Number of most recent transactions to inspect",
				Value: analysis.DefaultMaxTxCount,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}
			address := c.Args().Get(0)

			svc, err := localAnalyzer(c)
			if err != nil {
				return err
			}

			result, err := svc.AnalyzeMintActivity(context.Background(), address, c.Bool("filter-failed"), c.Int("max-tx"))
			if err != nil {
				return err
			}

			if jsonOutput(c) {
				return outputJSON(c, result)
			}
			printMintActivity(c, result)
			return nil
		},
	}
}

func analyzeVolumeCommand() *cli.Command {
	return &cli.Command{
		Name:      "volume",
		Usage:     "Summarize a wallet's transaction volume over a time window",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "hours",
				Usage: "Window length in hours (fractions allowed)",
				Value: analysis.DefaultWindowHours,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}
			address := c.Args().Get(0)

			svc, err := localAnalyzer(c)
			if err != nil {
				return err
			}

			report, err := svc.AnalyzeWalletTransactions(context.Background(), address, c.Float64("hours"))
			if err != nil {
				return err
			}

			if jsonOutput(c) {
				return outputJSON(c, report)
			}
			printTransactionAnalysis(c, report)
			return nil
		},
	}
}

func analyzeLatestMintsCommand() *cli.Command {
	return &cli.Command{
		Name:      "latest-mints",
		Usage:     "Union of mints touched by the given wallets",
		ArgsUsage: "WALLET_ADDRESS...",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-tx",
				Usage: "Number of most recent transactions to inspect per wallet",
				Value: analysis.LatestMintsMaxTxCount,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one wallet address is required")
			}

			svc, err := localAnalyzer(c)
			if err != nil {
				return err
			}

			mints, err := svc.LatestMints(context.Background(), c.Args().Slice(), c.Int("max-tx"))
			if err != nil {
				return err
			}

			if jsonOutput(c) {
				return outputJSON(c, mints)
			}
			for _, m := range mints {
				fmt.Fprintln(c.App.Writer, m)
			}
			fmt.Fprintf(os.Stderr, "\nTotal: %d mints\n", len(mints))
			return nil
		},
	}
}

// localAnalyzer builds an analysis engine from the --rpc-url flags.
func localAnalyzer(c *cli.Context) (*analysis.Service, error) {
	urls := c.StringSlice("rpc-url")
	if len(urls) == 0 {
		urls = []string{defaultRPCURL}
	}

	rpcClient, err := solana.NewRPCClient(urls...)
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}

	logger := cliLogger()
	gateway := solana.NewClient(rpcClient, solana.EndpointLabel(urls), nil, logger)
	return analysis.NewService(gateway, analysis.DefaultConfig(), nil, logger), nil
}

func printMintActivity(c *cli.Context, result *analysis.MintActivityResult) {
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MINT\tTOTAL\tSUCCESS\tFAILED\tLAST SEEN")
	for _, m := range result.Data {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
			m.MintAddress,
			m.TotalCount,
			m.SuccessCount,
			m.FailedCount,
			m.LastTransactionTime.Format(time.RFC3339),
		)
	}
	w.Flush()

	fmt.Fprintf(os.Stderr, "\nTotal: %d mints", len(result.Data))
	if result.Truncated {
		fmt.Fprint(os.Stderr, " (history truncated)")
	}
	fmt.Fprintln(os.Stderr)
}

func printTransactionAnalysis(c *cli.Context, r *analysis.TransactionAnalysis) {
	w := c.App.Writer
	fmt.Fprintf(w, "Window:        %s .. %s\n", r.WindowStart.Format(time.RFC3339), r.WindowEnd.Format(time.RFC3339))
	fmt.Fprintf(w, "Transactions:  %d (%d ok, %d failed)\n", r.TotalTransactions, r.SuccessfulTransactions, r.FailedTransactions)
	fmt.Fprintf(w, "Frequency:     %.2f/h\n", r.TransactionFrequency)
	fmt.Fprintf(w, "Total Volume:  %.4f SOL\n", r.TotalVolume)
	fmt.Fprintf(w, "Avg Volume:    %.4f SOL\n", r.AverageVolume)
	fmt.Fprintf(w, "Incoming:      %.4f SOL over %d txns (avg %.4f)\n", r.IncomingVolume, r.IncomingCount, r.AdditionalMetrics.AverageIncoming)
	fmt.Fprintf(w, "Outgoing:      %.4f SOL over %d txns (avg %.4f)\n", r.OutgoingVolume, r.OutgoingCount, r.AdditionalMetrics.AverageOutgoing)
	fmt.Fprintf(w, "Net Balance:   %.4f SOL\n", r.AdditionalMetrics.NetBalance)
	if r.FirstTransactionTime != nil {
		fmt.Fprintf(w, "First Txn:     %s\n", r.FirstTransactionTime.Format(time.RFC3339))
	}
	if r.LastTransactionTime != nil {
		fmt.Fprintf(w, "Last Txn:      %s\n", r.LastTransactionTime.Format(time.RFC3339))
	}
	if r.Truncated {
		fmt.Fprintln(w, "Note:          history truncated at the fetch ceiling")
	}
}
