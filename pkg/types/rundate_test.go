package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseRunDate(t *testing.T) {
	d, err := ParseRunDate("2024-10-01")
	if err != nil {
		t.Fatalf("ParseRunDate failed: %v", err)
	}
	if d.String() != "2024-10-01" {
		t.Errorf("String mismatch: got %s", d.String())
	}
	if d.TableSuffix() != "2024_10_01" {
		t.Errorf("TableSuffix mismatch: got %s", d.TableSuffix())
	}
	if d.BatchID() != "2024-10-01" {
		t.Errorf("BatchID mismatch: got %s", d.BatchID())
	}
}

func TestParseRunDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "2024-13-01", "2024/10/01", "2024-10-01 05:45:00"} {
		if _, err := ParseRunDate(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestRunDate_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	ts := time.Date(2024, 10, 1, 20, 0, 0, 0, loc) // 2024-10-02 04:00 UTC
	if got := NewRunDate(ts).String(); got != "2024-10-02" {
		t.Errorf("got %s, want 2024-10-02", got)
	}
}

func TestRunDate_Ordering(t *testing.T) {
	d1, _ := ParseRunDate("2024-10-01")
	d2 := NewRunDate(d1.Time().Add(24 * time.Hour))
	if !d1.Before(d2) || d2.Before(d1) || d1.Before(d1) {
		t.Error("Before ordering is wrong")
	}
	if d2.String() != "2024-10-02" {
		t.Errorf("next day: got %s", d2)
	}
}

func TestRunDate_JSON(t *testing.T) {
	d, _ := ParseRunDate("2025-01-31")
	entry := LedgerEntry{TableName: "source.teams", RunDate: d}

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded LedgerEntry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.RunDate != d {
		t.Errorf("run date mismatch: got %s, want %s", decoded.RunDate, d)
	}
}
