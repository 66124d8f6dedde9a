package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/steamhub/internal/query"
	"github.com/dyluth/steamhub/internal/watcher"
)

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("jsonl")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSONL, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestFormatWatchers(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		n := FormatWatchers(&buf, "u1", nil)
		assert.Equal(t, 0, n)
		assert.Equal(t, "No watchers for user 'u1'\n", buf.String())
	})

	t.Run("rows", func(t *testing.T) {
		var buf bytes.Buffer
		rows := []WatcherRow{
			{Watcher: watcher.Watcher{ID: 1, OwnerID: "u1", DestinationID: "chan1", Kind: watcher.KindChannel, Threshold: 10, ItemID: "440"}, ItemName: "Team Fortress 2"},
			{Watcher: watcher.Watcher{ID: 7, OwnerID: "u1", DestinationID: "u1", Kind: watcher.KindDirect, Threshold: 50, ItemID: "570"}, ItemName: "570"},
		}
		n := FormatWatchers(&buf, "u1", rows)
		assert.Equal(t, 2, n)

		out := buf.String()
		assert.Contains(t, out, "Watchers for user 'u1':")
		assert.Contains(t, out, "Team Fortress 2 (440)")
		assert.Contains(t, out, "pm ")
		assert.True(t, strings.HasSuffix(out, "\n2 watchers\n"))
	})
}

func TestFormatWatchersJSONL(t *testing.T) {
	var buf bytes.Buffer
	rows := []WatcherRow{
		{Watcher: watcher.Watcher{ID: 1, OwnerID: "u1", DestinationID: "chan1", Kind: watcher.KindMention, Threshold: 10, ItemID: "440"}, ItemName: "TF2"},
	}
	require.NoError(t, FormatWatchersJSONL(&buf, rows))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "mention", got["kind"])
	assert.Equal(t, "TF2", got["item_name"])
	assert.EqualValues(t, 1, got["id"])
}

func TestFormatQueryResult(t *testing.T) {
	var buf bytes.Buffer
	FormatQueryResult(&buf, &query.Result{
		Job:       "0123456789abcdef",
		Query:     "memory",
		Responses: []string{"alloc=1KiB", "", "error: boom\ntrace line"},
	})

	assert.Equal(t, "Query 'memory' (job 01234567):\n\n"+
		"[shard 0] alloc=1KiB\n"+
		"[shard 1] (no response)\n"+
		"[shard 2] error: boom\n"+
		"          trace line\n", buf.String())
}

func TestFormatQueryResultJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatQueryResultJSONL(&buf, &query.Result{
		Job:       "job-1",
		Query:     "shard",
		Responses: []string{"0/2", ""},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var second responseJSON
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, responseJSON{Job: "job-1", Query: "shard", Shard: 1, Pending: true}, second)
}
