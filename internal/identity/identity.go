// Package identity derives surrogate keys and turns change-set rows into
// operational records.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/pkg/types"
)

// Separator joins natural key and source tag in the hash input. It may not
// occur in either part.
const Separator = "\x1f"

var (
	ErrMissingSource     = errors.New("missing source tag")
	ErrSeparatorInKey    = errors.New("natural key contains the unit separator")
	ErrSeparatorInSource = errors.New("source tag contains the unit separator")
)

// SurrogateKey returns hex(sha256(naturalKey + 0x1F + source)).
func SurrogateKey(naturalKey, source string) (string, error) {
	switch {
	case naturalKey == "":
		return "", perrors.NewInvalidRecordError("cannot derive surrogate key", types.ErrMissingNaturalKey)
	case source == "":
		return "", perrors.NewInvalidRecordError("cannot derive surrogate key", ErrMissingSource)
	case strings.Contains(naturalKey, Separator):
		return "", perrors.NewInvalidRecordError(fmt.Sprintf("natural key %q", naturalKey), ErrSeparatorInKey)
	case strings.Contains(source, Separator):
		return "", perrors.NewInvalidRecordError(fmt.Sprintf("source %q", source), ErrSeparatorInSource)
	}

	sum := sha256.Sum256([]byte(naturalKey + Separator + source))
	return hex.EncodeToString(sum[:]), nil
}

// Resolve maps a change-set row to its operational record. RecordID is left
// for the caller to assign.
func Resolve(row types.ChangeRow) (types.OperationalRecord, error) {
	key, err := SurrogateKey(row.NaturalKey, row.Source)
	if err != nil {
		return types.OperationalRecord{}, err
	}
	return types.OperationalRecord{
		SurrogateKey: key,
		BusinessCode: row.TriCode,
		NaturalKey:   row.NaturalKey,
		FullName:     row.FullName,
		Source:       row.Source,
		FetchedAt:    row.FetchedAt,
		IsDeleted:    row.IsDeleted,
		BatchID:      row.BatchID,
		HashDiff:     row.HashDiff,
	}, nil
}

// ResolveAll resolves every row or none: the first invalid row fails the
// whole batch.
func ResolveAll(rows []types.ChangeRow) ([]types.OperationalRecord, error) {
	out := make([]types.OperationalRecord, 0, len(rows))
	for i, r := range rows {
		rec, err := Resolve(r)
		if err != nil {
			return nil, fmt.Errorf("change row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
