package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// jsonOutput reports whether the command should print JSON.
func jsonOutput(c *cli.Context) bool {
	return c.Bool("json") || len(c.StringSlice("jq")) > 0
}

// outputJSON writes v as indented JSON to the app writer, piping it through
// any --jq filters first.
func outputJSON(c *cli.Context, v interface{}) error {
	return writeJSON(c.App.Writer, v, c.StringSlice("jq"))
}

func writeJSON(w io.Writer, v interface{}, filters []string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(filters) == 0 {
		return enc.Encode(v)
	}

	codes, err := compileJQ(filters)
	if err != nil {
		return err
	}

	// gojq only understands the generic JSON types
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to decode output: %w", err)
	}

	values := []interface{}{input}
	for i, code := range codes {
		var next []interface{}
		for _, in := range values {
			iter := code.Run(in)
			for {
				out, ok := iter.Next()
				if !ok {
					break
				}
				if err, isErr := out.(error); isErr {
					return fmt.Errorf("jq filter %q failed: %w", filters[i], err)
				}
				next = append(next, out)
			}
		}
		values = next
	}

	for _, out := range values {
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

func compileJQ(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return codes, nil
}

// cliLogger only surfaces errors so command output stays readable.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}
