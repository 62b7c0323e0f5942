// Package diff computes the change-set between two snapshots of a dataset.
package diff

import (
	"encoding/binary"
	"encoding/hex"
	"sort"
	"time"

	"github.com/spaolacci/murmur3"
	"github.com/teamhub/teamhub/pkg/types"
)

const fieldSeparator = "\x1f"

// HashDiff returns the hex murmur3 128-bit digest of the tracked attributes.
func HashDiff(a types.TrackedAttributes) string {
	h := murmur3.New128()
	h.Write([]byte(a.NaturalKey))
	h.Write([]byte(fieldSeparator))
	h.Write([]byte(a.FullName))
	h.Write([]byte(fieldSeparator))
	h.Write([]byte(a.TriCode))
	h1, h2 := h.Sum128()

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], h1)
	binary.BigEndian.PutUint64(buf[8:], h2)
	return hex.EncodeToString(buf[:])
}

// Diff returns the rows of curr that are new or whose tracked attributes
// differ from prev, followed by tombstones for the keys of prev missing from
// curr. Both groups are sorted by natural key. Tombstones keep the previous
// attributes and carry observedAt as their fetch timestamp.
//
// With an empty prev every row of curr is new.
func Diff(prev, curr []types.SnapshotRow, batchID string, observedAt time.Time) []types.ChangeRow {
	prevAttrs := make(map[string]types.TrackedAttributes, len(prev))
	for _, p := range prev {
		prevAttrs[p.NaturalKey] = p.Tracked()
	}
	currKeys := make(map[string]struct{}, len(curr))

	var changed []types.ChangeRow
	for _, c := range curr {
		currKeys[c.NaturalKey] = struct{}{}
		if old, ok := prevAttrs[c.NaturalKey]; ok && old == c.Tracked() {
			continue
		}
		changed = append(changed, newChangeRow(c, false, batchID))
	}

	var deleted []types.ChangeRow
	for _, p := range prev {
		if _, ok := currKeys[p.NaturalKey]; ok {
			continue
		}
		currKeys[p.NaturalKey] = struct{}{} // one tombstone per key
		p.FetchedAt = observedAt
		deleted = append(deleted, newChangeRow(p, true, batchID))
	}

	sortByKey(changed)
	sortByKey(deleted)

	out := make([]types.ChangeRow, 0, len(changed)+len(deleted))
	out = append(out, changed...)
	return append(out, deleted...)
}

// Summary counts the rows of a change-set by kind.
type Summary struct {
	Changed int
	Deleted int
}

// Summarize counts changed and tombstoned rows.
func Summarize(rows []types.ChangeRow) Summary {
	var s Summary
	for _, r := range rows {
		if r.IsDeleted {
			s.Deleted++
		} else {
			s.Changed++
		}
	}
	return s
}

func newChangeRow(r types.SnapshotRow, deleted bool, batchID string) types.ChangeRow {
	return types.ChangeRow{
		SnapshotRow: r,
		IsDeleted:   deleted,
		BatchID:     batchID,
		HashDiff:    HashDiff(r.Tracked()),
	}
}

func sortByKey(rows []types.ChangeRow) {
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].NaturalKey < rows[j].NaturalKey
	})
}
