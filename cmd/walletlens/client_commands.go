package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brojonat/walletlens/client"
	"github.com/brojonat/walletlens/service/analysis"
	"github.com/brojonat/walletlens/service/temporal"
	"github.com/urfave/cli/v2"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for interacting with the walletlens service",
		Subcommands: []*cli.Command{
			mintSearchCommand(),
			walletAnalysisCommand(),
			latestMintsCommand(),
			submitWalletsCommand(),
			refreshCommand(),
		},
	}
}

func apiClient(c *cli.Context) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	return client.NewClient(strings.TrimRight(serverURL, "/"), nil, cliLogger()), nil
}

func mintSearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "mint-search",
		Usage:     "Request a mint activity analysis",
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
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			result, err := cl.MintSearch(context.Background(), c.Args().Get(0), c.Bool("filter-failed"), c.Int("max-tx"))
			if err != nil {
				return fmt.Errorf("mint search failed: %w", err)
			}

			if jsonOutput(c) {
				return outputJSON(c, result)
			}
			printMintActivity(c, result)
			return nil
		},
	}
}

func walletAnalysisCommand() *cli.Command {
	return &cli.Command{
		Name:      "analysis",
		Usage:     "Request a transaction volume analysis",
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
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			report, err := cl.WalletAnalysis(context.Background(), c.Args().Get(0), c.Float64("hours"))
			if err != nil {
				return fmt.Errorf("wallet analysis failed: %w", err)
			}

			if jsonOutput(c) {
				return outputJSON(c, report)
			}
			printTransactionAnalysis(c, report)
			return nil
		},
	}
}

func latestMintsCommand() *cli.Command {
	return &cli.Command{
		Name:  "latest-mints",
		Usage: "List mints touched by the most recently discovered wallets",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "wallet-count",
				Usage: "Number of discovered wallets to inspect",
				Value: 1,
			},
		},
		Action: func(c *cli.Context) error {
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			mints, err := cl.LatestMints(context.Background(), c.Int("wallet-count"))
			if err != nil {
				return fmt.Errorf("latest mints failed: %w", err)
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

func submitWalletsCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit-wallets",
		Usage:     "Record discovered wallet addresses",
		ArgsUsage: "WALLET_ADDRESS...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "source",
				Usage: "Discovery source label",
				Value: "cli",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("at least one wallet address is required")
			}
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			n, err := cl.SubmitWallets(context.Background(), c.Args().Slice(), c.String("source"))
			if err != nil {
				return fmt.Errorf("submit wallets failed: %w", err)
			}

			if jsonOutput(c) {
				return outputJSON(c, map[string]int{"recorded": n})
			}
			fmt.Fprintf(c.App.Writer, "✓ Recorded %d wallets\n", n)
			return nil
		},
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Trigger a latest-mints refresh run on the server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "wallet-count",
				Usage: "Number of discovered wallets to refresh",
				Value: temporal.DefaultRefreshWalletCount,
			},
			&cli.IntFlag{
				Name:  "max-tx",
				Usage: "Number of most recent transactions to inspect per wallet",
				Value: temporal.DefaultRefreshMaxTxCount,
			},
		},
		Action: func(c *cli.Context) error {
			cl, err := apiClient(c)
			if err != nil {
				return err
			}

			id, err := cl.TriggerRefresh(context.Background(), c.Int("wallet-count"), c.Int("max-tx"))
			if err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}

			if jsonOutput(c) {
				return outputJSON(c, map[string]string{"workflowId": id})
			}
			fmt.Fprintf(c.App.Writer, "✓ Refresh started (workflow: %s)\n", id)
			return nil
		},
	}
}
