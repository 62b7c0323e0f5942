package store

import (
	"context"

	perrors "github.com/teamhub/teamhub/internal/errors"
)

// WriteResult reports table row counts around a verified write.
type WriteResult struct {
	Table  TableRef
	Before int64
	After  int64
}

// Written is the number of rows the write added or replaced.
func (r WriteResult) Written() int64 {
	return r.After - r.Before
}

// CountOrZero returns the row count of ref, or zero when the table is missing.
func CountOrZero(ctx context.Context, s Store, ref TableRef) (int64, error) {
	n, err := s.Count(ctx, ref)
	if perrors.IsNotFound(err) {
		return 0, nil
	}
	return n, err
}

// WriteRowsVerified writes rows and re-counts the table afterwards. A count
// that does not match the write fails with a VERIFY_FAILED store error.
func WriteRowsVerified[T any](ctx context.Context, s Store, ref TableRef, rows []T, mode WriteMode) (WriteResult, error) {
	res := WriteResult{Table: ref}

	before, err := CountOrZero(ctx, s, ref)
	if err != nil {
		return res, err
	}
	res.Before = before

	if err := WriteRows(ctx, s, ref, rows, mode); err != nil {
		return res, err
	}

	after, err := s.Count(ctx, ref)
	if err != nil {
		return res, err
	}
	res.After = after

	want := int64(len(rows))
	if mode == Append {
		want += before
	}
	if after != want {
		return res, perrors.NewVerifyError(ref.String(), want, after)
	}
	return res, nil
}
