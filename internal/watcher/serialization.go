package watcher

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dyluth/steamhub/pkg/records"
)

// Serialization helpers for watcher records and the discount snapshot.
//
// A watcher is stored as a record with one field per attribute under
// entry::<owner>::<id>. The snapshot is one scalar "item=percent;item=percent"
// so that replacing it is a single write.

var watcherCodec = records.FieldCodec[Watcher]{
	Fields: []string{"owner", "id", "destination", "kind", "threshold", "item"},
	Encode: watcherToFields,
	Decode: fieldsToWatcher,
}

func watcherToFields(w Watcher) (map[string]string, error) {
	return map[string]string{
		"owner":       w.OwnerID,
		"id":          strconv.FormatInt(w.ID, 10),
		"destination": w.DestinationID,
		"kind":        string(w.Kind),
		"threshold":   strconv.Itoa(w.Threshold),
		"item":        w.ItemID,
	}, nil
}

func fieldsToWatcher(fields map[string]string) (Watcher, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return Watcher{}, fmt.Errorf("invalid id field: %w", err)
	}
	threshold, err := strconv.Atoi(fields["threshold"])
	if err != nil {
		return Watcher{}, fmt.Errorf("invalid threshold field: %w", err)
	}
	return Watcher{
		ID:            id,
		OwnerID:       fields["owner"],
		DestinationID: fields["destination"],
		Kind:          DestinationKind(fields["kind"]),
		Threshold:     threshold,
		ItemID:        fields["item"],
	}, nil
}

const (
	snapshotSeparator = ";"
	snapshotAssign    = "="
)

// encodeSnapshot packs item -> percent pairs in item order.
func encodeSnapshot(snapshot map[string]int) string {
	items := make([]string, 0, len(snapshot))
	for item := range snapshot {
		items = append(items, item)
	}
	sort.Strings(items)

	pairs := make([]string, len(items))
	for i, item := range items {
		pairs[i] = item + snapshotAssign + strconv.Itoa(snapshot[item])
	}
	return records.JoinList(pairs, snapshotSeparator)
}

func decodeSnapshot(raw string) (map[string]int, error) {
	snapshot := make(map[string]int)
	for _, pair := range records.SplitList(raw, snapshotSeparator) {
		item, percent, ok := strings.Cut(pair, snapshotAssign)
		if !ok || item == "" {
			return nil, fmt.Errorf("malformed snapshot entry %q", pair)
		}
		n, err := strconv.Atoi(percent)
		if err != nil {
			return nil, fmt.Errorf("malformed snapshot percent %q: %w", pair, err)
		}
		snapshot[item] = n
	}
	return snapshot, nil
}
