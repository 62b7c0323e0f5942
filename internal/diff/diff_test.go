package diff

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamhub/teamhub/pkg/types"
)

var (
	day1 = time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	day2 = day1.Add(24 * time.Hour)
)

func team(key, name, code string, at time.Time) types.SnapshotRow {
	return types.SnapshotRow{NaturalKey: key, FullName: name, TriCode: code, FetchedAt: at, Source: types.DefaultSource}
}

// snapshotFrom builds a snapshot with unique keys; variant selects the
// attribute values so two snapshots can differ on a subset of keys.
func snapshotFrom(keys []int, variant int, at time.Time) []types.SnapshotRow {
	seen := map[int]bool{}
	var rows []types.SnapshotRow
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		rows = append(rows, team(fmt.Sprint(k), fmt.Sprintf("Team %d v%d", k, variant), fmt.Sprintf("T%02d", k), at))
	}
	return rows
}

func TestDiff_Scenarios(t *testing.T) {
	bruins := team("1", "Bruins", "BOS", day1)

	t.Run("first run is all new", func(t *testing.T) {
		rows := Diff(nil, []types.SnapshotRow{bruins}, "2024-01-01", day1)
		require.Len(t, rows, 1)
		assert.False(t, rows[0].IsDeleted)
		assert.Equal(t, "2024-01-01", rows[0].BatchID)
		assert.Equal(t, HashDiff(bruins.Tracked()), rows[0].HashDiff)
	})

	t.Run("unchanged refetch is empty", func(t *testing.T) {
		again := team("1", "Bruins", "BOS", day2)
		again.Source = "OTHER"
		assert.Empty(t, Diff([]types.SnapshotRow{bruins}, []types.SnapshotRow{again}, "2024-01-02", day2))
	})

	t.Run("removed team is tombstoned with observation time", func(t *testing.T) {
		rows := Diff([]types.SnapshotRow{bruins}, nil, "2024-01-03", day2)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].IsDeleted)
		assert.Equal(t, "BOS", rows[0].TriCode)
		assert.True(t, day2.Equal(rows[0].FetchedAt))
	})

	t.Run("reused key with new attributes is a change", func(t *testing.T) {
		rows := Diff([]types.SnapshotRow{bruins}, []types.SnapshotRow{team("1", "Bruins", "BOS2", day2)}, "2024-01-04", day2)
		require.Len(t, rows, 1)
		assert.False(t, rows[0].IsDeleted)
		assert.Equal(t, "BOS2", rows[0].TriCode)
	})

	t.Run("descriptive attributes do not count", func(t *testing.T) {
		league := int64(133)
		moved := bruins
		moved.LeagueID = &league
		moved.RawTriCode = "bos"
		assert.Empty(t, Diff([]types.SnapshotRow{bruins}, []types.SnapshotRow{moved}, "b", day2))
	})
}

func TestDiff_OrderIsChangedThenTombstonesByKey(t *testing.T) {
	prev := []types.SnapshotRow{team("3", "C", "CCC", day1), team("9", "I", "III", day1), team("5", "E", "EEE", day1)}
	curr := []types.SnapshotRow{team("7", "G", "GGG", day2), team("3", "C2", "CCC", day2), team("2", "B", "BBB", day2)}

	rows := Diff(prev, curr, "b", day2)
	var got []string
	for _, r := range rows {
		got = append(got, fmt.Sprintf("%s:%v", r.NaturalKey, r.IsDeleted))
	}
	assert.Equal(t, []string{"2:false", "3:false", "7:false", "5:true", "9:true"}, got)
	assert.Equal(t, Summary{Changed: 3, Deleted: 2}, Summarize(rows))
}

func TestHashDiff(t *testing.T) {
	a := types.TrackedAttributes{NaturalKey: "1", FullName: "Bruins", TriCode: "BOS"}
	assert.Len(t, HashDiff(a), 32)
	assert.Equal(t, HashDiff(a), HashDiff(a))
	assert.NotEqual(t, HashDiff(a), HashDiff(types.TrackedAttributes{NaturalKey: "1", FullName: "Bruins", TriCode: "BOS2"}))
	// Field boundaries matter.
	assert.NotEqual(t,
		HashDiff(types.TrackedAttributes{NaturalKey: "1", FullName: "ab", TriCode: "c"}),
		HashDiff(types.TrackedAttributes{NaturalKey: "1", FullName: "a", TriCode: "bc"}))
}

func TestProperty_Diff(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	keys := gen.SliceOf(gen.IntRange(0, 40))

	properties.Property("identical snapshots produce no change rows", prop.ForAll(
		func(k []int) bool {
			return len(Diff(snapshotFrom(k, 0, day1), snapshotFrom(k, 0, day2), "b", day2)) == 0
		},
		keys,
	))

	properties.Property("every key missing from current gets exactly one tombstone", prop.ForAll(
		func(pk, ck []int) bool {
			prev := snapshotFrom(pk, 0, day1)
			curr := snapshotFrom(ck, 0, day2)
			currKeys := map[string]bool{}
			for _, c := range curr {
				currKeys[c.NaturalKey] = true
			}

			tombstones := map[string]int{}
			for _, r := range Diff(prev, curr, "b", day2) {
				if r.IsDeleted {
					tombstones[r.NaturalKey]++
					if currKeys[r.NaturalKey] || !r.FetchedAt.Equal(day2) {
						return false
					}
				}
			}
			for _, p := range prev {
				if !currKeys[p.NaturalKey] && tombstones[p.NaturalKey] != 1 {
					return false
				}
			}
			return true
		},
		keys, keys,
	))

	properties.Property("first run returns every current row as new", prop.ForAll(
		func(k []int) bool {
			curr := snapshotFrom(k, 0, day1)
			rows := Diff(nil, curr, "b", day1)
			if len(rows) != len(curr) {
				return false
			}
			for _, r := range rows {
				if r.IsDeleted {
					return false
				}
			}
			return true
		},
		keys,
	))

	properties.Property("changed rows are exactly the keys whose attributes differ", prop.ForAll(
		func(pk, ck []int, variant int) bool {
			prev := snapshotFrom(pk, 0, day1)
			curr := snapshotFrom(ck, variant, day2)
			prevKeys := map[string]bool{}
			for _, p := range prev {
				prevKeys[p.NaturalKey] = true
			}

			want := 0
			for _, c := range curr {
				if !prevKeys[c.NaturalKey] || variant != 0 {
					want++
				}
			}
			return Summarize(Diff(prev, curr, "b", day2)).Changed == want
		},
		keys, keys, gen.IntRange(0, 1),
	))

	properties.TestingRun(t)
}
