package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/walletlens/client"
	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			httpClient := &http.Client{Timeout: c.Duration("timeout")}
			cl := client.NewClient(strings.TrimRight(serverURL, "/"), httpClient, cliLogger())

			if err := cl.Health(context.Background()); err != nil {
				return fmt.Errorf("server is unhealthy: %w", err)
			}

			fmt.Fprintln(c.App.Writer, "✓ Server is healthy")
			fmt.Fprintf(c.App.Writer, "  URL: %s\n", serverURL)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			if jsonOutput(c) {
				return outputJSON(c, map[string]string{
					"version": version,
					"commit":  commit,
					"built":   date,
				})
			}
			fmt.Fprintf(c.App.Writer, "walletlens CLI\n")
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", version)
			fmt.Fprintf(c.App.Writer, "  Commit:  %s\n", commit)
			fmt.Fprintf(c.App.Writer, "  Built:   %s\n", date)
			return nil
		},
	}
}
