package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/walletlens/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// reportFilterSubject returns the JetStream filter subject for the given
// report kind ("mints", "volume" or "all") and optional wallet address.
func reportFilterSubject(kind, address string) (string, error) {
	switch kind {
	case "mints":
		if address == "" {
			return natspkg.MintSubject(">"), nil
		}
		return natspkg.MintSubject(address), nil
	case "volume":
		if address == "" {
			return natspkg.VolumeSubject(">"), nil
		}
		return natspkg.VolumeSubject(address), nil
	case "all", "":
		if address == "" {
			return natspkg.StreamSubjects, nil
		}
		return "reports.*." + address, nil
	default:
		return "", fmt.Errorf("unknown report kind %q (want mints, volume or all)", kind)
	}
}

// subscribeCommand streams report events from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to published analysis reports",
		ArgsUsage: "[wallet_address]",
		Description: `Subscribe to analysis reports published to NATS JetStream.

Reports are published to reports.mints.{wallet_address} and reports.volume.{wallet_address}.
Omit the address to receive reports for every wallet.

Example:
  walletlens nats subscribe --kind mints --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Report kind: mints, volume or all",
				Value:   "all",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "walletlens-cli",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("at most one wallet address may be given")
			}

			subject, err := reportFilterSubject(c.String("kind"), c.Args().Get(0))
			if err != nil {
				return err
			}

			return streamReports(c, subject, c.Bool("durable"), c.String("consumer-name"))
		},
	}
}

func streamReports(c *cli.Context, subject string, durable bool, consumerName string) error {
	natsURL := c.String("nats-url")
	asJSON := jsonOutput(c)

	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !asJSON {
		fmt.Fprintf(c.App.Writer, "📡 Subscribing to: %s\n", subject)
		fmt.Fprintf(c.App.Writer, "   NATS: %s\n", natsURL)
		if durable {
			fmt.Fprintf(c.App.Writer, "   Consumer: %s (durable)\n", consumerName)
		}
		fmt.Fprintf(c.App.Writer, "\nWaiting for reports... (Ctrl-C to exit)\n\n")
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if durable {
		consumerConfig.Durable = consumerName
		consumerConfig.Name = consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.ReportEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				msg.Ack()
				continue
			}
			count++

			if asJSON {
				if err := outputJSON(c, event); err != nil {
					return err
				}
			} else {
				printReportEvent(c, count, &event)
			}
			msg.Ack()

		case <-sigChan:
			if !asJSON {
				fmt.Fprintf(c.App.Writer, "\n\n✅ Received %d reports\n", count)
			}
			return nil
		}
	}
}

func printReportEvent(c *cli.Context, n int, event *natspkg.ReportEvent) {
	w := c.App.Writer
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Report #%d (%s)\n", n, event.Kind)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Wallet:       %s\n", event.WalletAddress)
	switch {
	case event.MintActivity != nil:
		fmt.Fprintf(w, "Max Tx:       %d (filter failed: %t)\n", event.MaxTxCount, event.FilterFailed)
		fmt.Fprintf(w, "Mints:        %d\n", len(event.MintActivity.Data))
		for _, m := range event.MintActivity.Data {
			fmt.Fprintf(w, "  %s  %d/%d ok\n", m.MintAddress, m.SuccessCount, m.TotalCount)
		}
	case event.Volume != nil:
		fmt.Fprintf(w, "Window:       %gh\n", event.WindowHours)
		fmt.Fprintf(w, "Transactions: %d\n", event.Volume.TotalTransactions)
		fmt.Fprintf(w, "Volume:       %.4f SOL (net %.4f)\n", event.Volume.TotalVolume, event.Volume.AdditionalMetrics.NetBalance)
	}
	fmt.Fprintf(w, "Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
}

// inspectStreamCommand shows information about the reports stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the WALLET_REPORTS JetStream stream",
		Action: func(c *cli.Context) error {
			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(context.Background(), natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if jsonOutput(c) {
				return outputJSON(c, info)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Description:  %s\n", info.Config.Description)
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
