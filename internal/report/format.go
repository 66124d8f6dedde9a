// Package report renders watcher lists and query results for the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dyluth/steamhub/internal/query"
	"github.com/dyluth/steamhub/internal/watcher"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSONL   OutputFormat = "jsonl"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: default, jsonl)", s)
	}
}

const maxCell = 60

// WatcherRow is one watcher with its resolved item name.
type WatcherRow struct {
	watcher.Watcher
	ItemName string
}

type watcherJSON struct {
	ID          int64  `json:"id"`
	Owner       string `json:"owner"`
	Destination string `json:"destination"`
	Kind        string `json:"kind"`
	Threshold   int    `json:"threshold"`
	Item        string `json:"item"`
	ItemName    string `json:"item_name"`
}

// FormatWatchers writes a watcher table for one owner. Returns the number of rows.
func FormatWatchers(w io.Writer, owner string, rows []WatcherRow) int {
	if len(rows) == 0 {
		fmt.Fprintf(w, "No watchers for user '%s'\n", owner)
		return 0
	}

	fmt.Fprintf(w, "Watchers for user '%s':\n\n", owner)
	fmt.Fprintf(w, "%-6s %-8s %-20s %-5s %s\n", "ID", "KIND", "DESTINATION", "MIN%", "ITEM")
	fmt.Fprintf(w, "%-6s %-8s %-20s %-5s %s\n", "------", "--------", "--------------------", "-----", "------------------------------")
	for _, r := range rows {
		fmt.Fprintf(w, "%-6d %-8s %-20s %-5d %s\n",
			r.ID,
			r.Kind,
			truncate(r.DestinationID, 20),
			r.Threshold,
			formatItem(r.ItemID, r.ItemName),
		)
	}

	noun := "watcher"
	if len(rows) != 1 {
		noun = "watchers"
	}
	fmt.Fprintf(w, "\n%d %s\n", len(rows), noun)
	return len(rows)
}

// FormatWatchersJSONL writes one JSON object per watcher.
func FormatWatchersJSONL(w io.Writer, rows []WatcherRow) error {
	for _, r := range rows {
		if err := writeJSONLine(w, watcherJSON{
			ID:          r.ID,
			Owner:       r.OwnerID,
			Destination: r.DestinationID,
			Kind:        string(r.Kind),
			Threshold:   r.Threshold,
			Item:        r.ItemID,
			ItemName:    r.ItemName,
		}); err != nil {
			return err
		}
	}
	return nil
}

type responseJSON struct {
	Job      string `json:"job"`
	Query    string `json:"query"`
	Shard    int    `json:"shard"`
	Response string `json:"response"`
	Pending  bool   `json:"pending"`
}

// FormatQueryResult writes one block per shard response.
func FormatQueryResult(w io.Writer, result *query.Result) {
	fmt.Fprintf(w, "Query '%s' (job %s):\n\n", result.Query, shortID(result.Job))
	for shard, response := range result.Responses {
		label := "shard " + strconv.Itoa(shard)
		if response == "" {
			fmt.Fprintf(w, "[%s] (no response)\n", label)
			continue
		}
		lines := strings.Split(strings.TrimRight(response, "\n"), "\n")
		fmt.Fprintf(w, "[%s] %s\n", label, lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", len(label)+3), line)
		}
	}
}

// FormatQueryResultJSONL writes one JSON object per shard.
func FormatQueryResultJSONL(w io.Writer, result *query.Result) error {
	for shard, response := range result.Responses {
		if err := writeJSONLine(w, responseJSON{
			Job:      result.Job,
			Query:    result.Query,
			Shard:    shard,
			Response: response,
			Pending:  response == "",
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSONL output: %w", err)
	}
	return nil
}

func formatItem(id, name string) string {
	if name == "" || name == id {
		return id
	}
	return truncate(name, maxCell) + " (" + id + ")"
}

// shortID truncates a job UUID to its first 8 characters.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
