// Package store is the relational store collaborator of the pipeline. Tables
// are addressed by layer and name and hold encoded row payloads in insertion
// order.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/teamhub/teamhub/internal/codec"
	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/pkg/types"
)

// Layer is a warehouse layer. Each layer maps to a schema (Postgres), a name
// prefix (SQLite) or a key prefix (object storage).
type Layer string

const (
	LayerSource      Layer = "source"
	LayerStaging     Layer = "staging"
	LayerOperational Layer = "operational"
	LayerDetailed    Layer = "detailed"
)

// Layers lists every layer in pipeline order.
var Layers = []Layer{LayerSource, LayerStaging, LayerOperational, LayerDetailed}

// TableRef identifies one table: <layer>.<name>.
type TableRef struct {
	Layer Layer
	Name  string
}

// Table returns a reference to layer.name.
func Table(layer Layer, name string) TableRef {
	return TableRef{Layer: layer, Name: name}
}

// DatedTable returns a reference to layer.dataset_YYYY_MM_DD.
func DatedTable(layer Layer, dataset string, date types.RunDate) TableRef {
	return TableRef{Layer: layer, Name: dataset + "_" + date.TableSuffix()}
}

// ParseTableRef parses "layer.name".
func ParseTableRef(s string) (TableRef, error) {
	layer, name, ok := strings.Cut(s, ".")
	if !ok {
		return TableRef{}, fmt.Errorf("store: table reference %q is not of the form layer.name", s)
	}
	ref := TableRef{Layer: Layer(layer), Name: name}
	if err := ref.Validate(); err != nil {
		return TableRef{}, err
	}
	return ref, nil
}

func validLayer(layer Layer) error {
	return TableRef{Layer: layer, Name: "x"}.Validate()
}

// String returns "layer.name".
func (t TableRef) String() string {
	return string(t.Layer) + "." + t.Name
}

// Validate checks that the layer is known and the name is a safe identifier.
func (t TableRef) Validate() error {
	known := false
	for _, l := range Layers {
		if t.Layer == l {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("store: unknown layer %q", t.Layer)
	}
	if !types.IsIdentifier(t.Name) {
		return fmt.Errorf("store: invalid table name %q", t.Name)
	}
	return nil
}

// WriteMode selects how Write treats an existing table.
type WriteMode int

const (
	// Overwrite replaces the table content atomically.
	Overwrite WriteMode = iota
	// Append adds rows after the existing ones, creating the table if needed.
	Append
)

func (m WriteMode) String() string {
	switch m {
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// Store reads and writes tables of encoded rows.
//
// Read and Count return a NotFound error when the table does not exist.
// Write failures are returned as StoreWriteError and leave the previous
// table content in place.
type Store interface {
	Read(ctx context.Context, ref TableRef) ([][]byte, error)
	Write(ctx context.Context, ref TableRef, rows [][]byte, mode WriteMode) error
	Exists(ctx context.Context, ref TableRef) (bool, error)
	Count(ctx context.Context, ref TableRef) (int64, error)
	// Tables lists the tables of layer sorted by name.
	Tables(ctx context.Context, layer Layer) ([]TableRef, error)
	Close() error
}

// ReadRows reads and decodes every row of a table.
func ReadRows[T any](ctx context.Context, s Store, ref TableRef) ([]T, error) {
	payloads, err := s.Read(ctx, ref)
	if err != nil {
		return nil, err
	}
	rows, err := codec.DecodeRows[T](payloads)
	if err != nil {
		return nil, perrors.NewStoreReadError(ref.String(), err)
	}
	return rows, nil
}

// WriteRows encodes rows and writes them with the given mode.
func WriteRows[T any](ctx context.Context, s Store, ref TableRef, rows []T, mode WriteMode) error {
	payloads, err := codec.EncodeRows(rows)
	if err != nil {
		return perrors.NewStoreWriteError(ref.String(), err)
	}
	return s.Write(ctx, ref, payloads, mode)
}

func notFound(ref TableRef) error {
	return perrors.NewNotFoundError("table " + ref.String()).
		WithDetails(map[string]interface{}{perrors.DetailTable: ref.String()})
}
