package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brojonat/walletlens/service/temporal"
	"github.com/urfave/cli/v2"
)

func refreshInputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "wallet-count",
			Usage: "Number of discovered wallets to refresh per run",
			Value: temporal.DefaultRefreshWalletCount,
		},
		&cli.IntFlag{
			Name:  "max-tx",
			Usage: "Number of most recent transactions to inspect per wallet",
			Value: temporal.DefaultRefreshMaxTxCount,
		},
	}
}

func refreshInput(c *cli.Context) temporal.RefreshLatestMintsInput {
	return temporal.RefreshLatestMintsInput{
		WalletCount: c.Int("wallet-count"),
		MaxTxCount:  c.Int("max-tx"),
	}
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Create or update the latest-mints refresh schedule",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "cron",
				Usage:   "Cron expression for refresh runs",
				EnvVars: []string{"REFRESH_SCHEDULE"},
				Value:   "*/30 * * * *",
			},
		}, refreshInputFlags()...),
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			cron := c.String("cron")
			input := refreshInput(c)
			if err := tc.UpsertRefreshSchedule(context.Background(), cron, input); err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "✓ Schedule %s set to %q (wallets: %d, max tx: %d)\n",
				temporal.RefreshScheduleID, cron, input.WalletCount, input.MaxTxCount)
			return nil
		},
	}
}

func unscheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "unschedule",
		Usage: "Delete the latest-mints refresh schedule",
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.DeleteRefreshSchedule(context.Background()); err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "✓ Schedule %s deleted\n", temporal.RefreshScheduleID)
			return nil
		},
	}
}

func triggerCommand() *cli.Command {
	return &cli.Command{
		Name:  "trigger",
		Usage: "Start a refresh run now",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Wait for the run to finish and print its result",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait with --wait",
				Value: 10 * time.Minute,
			},
		}, refreshInputFlags()...),
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			ctx := context.Background()
			id, err := tc.TriggerRefresh(ctx, refreshInput(c))
			if err != nil {
				return err
			}

			if !c.Bool("wait") {
				if jsonOutput(c) {
					return outputJSON(c, map[string]string{"workflowId": id})
				}
				fmt.Fprintf(c.App.Writer, "✓ Refresh started (workflow: %s)\n", id)
				return nil
			}

			ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
			defer cancel()

			result, err := tc.RefreshResult(ctx, id)
			if err != nil {
				return err
			}

			if jsonOutput(c) {
				return outputJSON(c, result)
			}
			fmt.Fprintf(c.App.Writer, "Workflow:  %s\n", id)
			fmt.Fprintf(c.App.Writer, "Run Time:  %s\n", result.RunTime.Format(time.RFC3339))
			fmt.Fprintf(c.App.Writer, "Wallets:   %d (%d analyzed, %d failed)\n", len(result.Wallets), result.Analyzed, result.Failed)
			fmt.Fprintf(c.App.Writer, "Mints:     %d\n", len(result.Mints))
			for _, m := range result.Mints {
				fmt.Fprintf(c.App.Writer, "  %s\n", m)
			}
			return nil
		},
	}
}

// getTemporalClient connects to Temporal using the global flags.
func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	tc, err := temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		cliLogger(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}
	return tc, nil
}
