package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "walletlens",
		Usage: "Solana wallet analysis service CLI",
		Description: `A command-line tool for running and inspecting walletlens analyses.

Use this CLI to analyze wallets directly against an RPC endpoint, call the HTTP API,
inspect stored reports, manage the refresh schedule, and tail published reports.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			analyzeCommands(),
			clientCommands(),
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					listDiscoveredWalletsCommand(),
					listMintReportsCommand(),
					latestVolumeReportCommand(),
				},
			},
			{
				Name:  "temporal",
				Usage: "Refresh schedule management commands",
				Subcommands: []*cli.Command{
					scheduleCommand(),
					unscheduleCommand(),
					triggerCommand(),
				},
			},
			{
				Name:  "nats",
				Usage: "NATS report streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		Flags: globalFlags(),
	}
}

// globalFlags are available to all commands.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "temporal-host",
			Usage:   "Temporal server address",
			EnvVars: []string{"TEMPORAL_HOST"},
			Value:   "localhost:7233",
		},
		&cli.StringFlag{
			Name:    "temporal-namespace",
			Usage:   "Temporal namespace",
			EnvVars: []string{"TEMPORAL_NAMESPACE"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "temporal-task-queue",
			Usage:   "Temporal task queue for refresh workflows",
			EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
			Value:   "walletlens-refresh",
		},
		&cli.StringFlag{
			Name:    "server-url",
			Usage:   "walletlens HTTP server URL",
			EnvVars: []string{"SERVER_URL"},
			Value:   "http://localhost:8080",
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "NATS server URL",
			EnvVars: []string{"NATS_URL"},
			Value:   "nats://localhost:4222",
		},
		&cli.StringSliceFlag{
			Name:    "rpc-url",
			Usage:   "Solana RPC endpoint (repeatable)",
			EnvVars: []string{"SOLANA_RPC_URL"},
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output in JSON format",
		},
		&cli.StringSliceFlag{
			Name:  "jq",
			Usage: "jq filter applied to JSON output (repeatable, implies --json)",
		},
	}
}
