package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/walletlens/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func listDiscoveredWalletsCommand() *cli.Command {
	return &cli.Command{
		Name:    "wallets",
		Usage:   "List discovered wallets, most recently seen first",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of wallets to list",
				Value:   50,
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			wallets, err := store.ListDiscoveredWallets(context.Background(), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list wallets: %w", err)
			}

			if jsonOutput(c) {
				return outputJSON(c, wallets)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tSOURCE\tFIRST SEEN\tLAST SEEN")
			for _, wallet := range wallets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					wallet.Address,
					formatSource(wallet.Source),
					wallet.FirstSeenAt.Format(time.RFC3339),
					wallet.LastSeenAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d wallets\n", len(wallets))
			return nil
		},
	}
}

func listMintReportsCommand() *cli.Command {
	return &cli.Command{
		Name:      "mint-reports",
		Usage:     "List stored mint activity reports for a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of reports to list",
				Value:   10,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			reports, err := store.ListMintActivityReports(context.Background(), c.Args().Get(0), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list mint reports: %w", err)
			}

			if jsonOutput(c) {
				return outputJSON(c, reports)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tMAX TX\tFILTER FAILED\tTRUNCATED\tMINTS")
			for _, r := range reports {
				fmt.Fprintf(w, "%d\t%s\t%d\t%t\t%t\t%d\n",
					r.ID,
					r.CreatedAt.Format(time.RFC3339),
					r.MaxTxCount,
					r.FilterFailed,
					r.Truncated,
					len(r.Records),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d reports\n", len(reports))
			return nil
		},
	}
}

func latestVolumeReportCommand() *cli.Command {
	return &cli.Command{
		Name:      "volume-report",
		Usage:     "Show the newest stored volume report for a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("wallet address is required")
			}
			address := c.Args().Get(0)

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			report, err := store.GetLatestVolumeReport(context.Background(), address)
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("no volume report stored for %s", address)
			}
			if err != nil {
				return fmt.Errorf("failed to get volume report: %w", err)
			}

			if jsonOutput(c) {
				return outputJSON(c, report)
			}

			fmt.Fprintf(c.App.Writer, "Wallet:        %s\n", report.WalletAddress)
			fmt.Fprintf(c.App.Writer, "Stored:        %s (window %gh)\n", report.CreatedAt.Format(time.RFC3339), report.WindowHours)
			printTransactionAnalysis(c, &report.Report)
			return nil
		},
	}
}

// getStore connects to the database named by --database-url.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool, nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}

func formatSource(source string) string {
	if source == "" {
		return "(unknown)"
	}
	return source
}
