// Package types provides the row types that flow through the teamhub pipeline.
package types

import "time"

// DefaultSource is the source tag stamped on rows fetched from the NHL stats API.
const DefaultSource = "API_NHL"

// Team is one record of the upstream team catalog as returned by the stats API.
type Team struct {
	// ID is the team identifier assigned by the upstream catalog (natural key)
	ID string `json:"id"`

	// FullName is the display name (e.g., "Boston Bruins")
	FullName string `json:"fullName"`

	// TriCode is the three letter business code (e.g., "BOS")
	TriCode string `json:"triCode"`

	FranchiseID *int64 `json:"franchiseId,omitempty"`
	LeagueID    *int64 `json:"leagueId,omitempty"`
	RawTriCode  string `json:"rawTricode,omitempty"`
}

// SnapshotRow is a Team as persisted in a dated snapshot table.
type SnapshotRow struct {
	NaturalKey  string    `json:"team_source_id"`
	FullName    string    `json:"full_name"`
	TriCode     string    `json:"tri_code"`
	FranchiseID *int64    `json:"franchise_id,omitempty"`
	LeagueID    *int64    `json:"league_id,omitempty"`
	RawTriCode  string    `json:"raw_tri_code,omitempty"`
	FetchedAt   time.Time `json:"_source_load_datetime"`
	Source      string    `json:"_source"`
}

// NewSnapshotRow stamps an upstream team with fetch metadata.
func NewSnapshotRow(t Team, fetchedAt time.Time, source string) SnapshotRow {
	return SnapshotRow{
		NaturalKey:  t.ID,
		FullName:    t.FullName,
		TriCode:     t.TriCode,
		FranchiseID: t.FranchiseID,
		LeagueID:    t.LeagueID,
		RawTriCode:  t.RawTriCode,
		FetchedAt:   fetchedAt,
		Source:      source,
	}
}

// TrackedAttributes is the projection of a row that change detection compares.
// Metadata columns are excluded so that re-fetching identical data is not a change.
type TrackedAttributes struct {
	NaturalKey string
	FullName   string
	TriCode    string
}

// Tracked returns the tracked attribute projection of the row.
func (r SnapshotRow) Tracked() TrackedAttributes {
	return TrackedAttributes{
		NaturalKey: r.NaturalKey,
		FullName:   r.FullName,
		TriCode:    r.TriCode,
	}
}

// ChangeRow is a row of the change-set written to staging.
type ChangeRow struct {
	SnapshotRow

	// IsDeleted is true when the entity was present in the previous snapshot
	// but is absent from the current one
	IsDeleted bool   `json:"_source_is_deleted"`
	BatchID   string `json:"_batch_id"`

	// HashDiff is the hex digest of the tracked attributes
	HashDiff string `json:"_hash_diff"`
}

// OperationalRecord is a change-set row enriched with its surrogate key.
// Operational records form an append-only log partitioned by BatchID.
type OperationalRecord struct {
	RecordID     string    `json:"record_id"`
	SurrogateKey string    `json:"team_id"`
	BusinessCode string    `json:"team_business_id"`
	NaturalKey   string    `json:"team_source_id"`
	FullName     string    `json:"team_full_name"`
	Source       string    `json:"_source"`
	FetchedAt    time.Time `json:"_source_load_datetime"`
	IsDeleted    bool      `json:"_source_is_deleted"`
	BatchID      string    `json:"_batch_id"`
	HashDiff     string    `json:"_hash_diff"`
}

// HubRecord is the historized identity of one surrogate key. Once written, a
// hub record is never updated or removed.
type HubRecord struct {
	SurrogateKey string    `json:"team_id"`
	BusinessCode string    `json:"team_business_id"`
	NaturalKey   string    `json:"team_source_id"`
	FirstSeenAt  time.Time `json:"_source_load_datetime"`
	Source       string    `json:"_source"`
}

// LedgerEntry records that a snapshot of a logical dataset was produced.
type LedgerEntry struct {
	TableName string    `json:"table_name"`
	UpdatedAt time.Time `json:"updated_at"`
	RunDate   RunDate   `json:"run_date"`
}
