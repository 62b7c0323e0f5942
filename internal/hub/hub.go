// Package hub maintains the historized hub: one row per surrogate key ever
// observed, never updated or removed once written.
package hub

import (
	"sort"

	"github.com/teamhub/teamhub/pkg/types"
)

// Collapse reduces records to one hub row per surrogate key. The earliest
// FetchedAt wins; ties go to the smallest source tag, then to the record that
// comes first in records. The result is sorted by (FirstSeenAt, SurrogateKey).
func Collapse(records []types.OperationalRecord) []types.HubRecord {
	best := make(map[string]int, len(records))
	for i, r := range records {
		j, ok := best[r.SurrogateKey]
		if !ok || earlier(r, records[j]) {
			best[r.SurrogateKey] = i
		}
	}

	out := make([]types.HubRecord, 0, len(best))
	for _, i := range best {
		r := records[i]
		out = append(out, types.HubRecord{
			SurrogateKey: r.SurrogateKey,
			BusinessCode: r.BusinessCode,
			NaturalKey:   r.NaturalKey,
			FirstSeenAt:  r.FetchedAt,
			Source:       r.Source,
		})
	}
	Sort(out)
	return out
}

// earlier reports whether a strictly precedes b. Equal records do not, so the
// first occurrence is kept.
func earlier(a, b types.OperationalRecord) bool {
	if !a.FetchedAt.Equal(b.FetchedAt) {
		return a.FetchedAt.Before(b.FetchedAt)
	}
	return a.Source < b.Source
}

// Merge adds the keys of batch that the hub does not hold yet. Existing rows
// are returned unchanged even when the batch carries different attributes for
// their key. added lists the new rows in hub order.
func Merge(existing []types.HubRecord, batch []types.OperationalRecord) (merged, added []types.HubRecord) {
	known := make(map[string]struct{}, len(existing))
	for _, h := range existing {
		known[h.SurrogateKey] = struct{}{}
	}

	added = []types.HubRecord{}
	for _, c := range Collapse(batch) {
		if _, ok := known[c.SurrogateKey]; !ok {
			added = append(added, c)
		}
	}

	merged = make([]types.HubRecord, 0, len(existing)+len(added))
	merged = append(merged, existing...)
	merged = append(merged, added...)
	Sort(merged)
	return merged, added
}

// Sort orders hub rows by (FirstSeenAt, SurrogateKey).
func Sort(rows []types.HubRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].FirstSeenAt.Equal(rows[j].FirstSeenAt) {
			return rows[i].FirstSeenAt.Before(rows[j].FirstSeenAt)
		}
		return rows[i].SurrogateKey < rows[j].SurrogateKey
	})
}

// FilterBatch returns the records of one batch, in log order.
func FilterBatch(records []types.OperationalRecord, batchID string) []types.OperationalRecord {
	var out []types.OperationalRecord
	for _, r := range records {
		if r.BatchID == batchID {
			out = append(out, r)
		}
	}
	return out
}
