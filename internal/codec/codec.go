// Package codec encodes pipeline rows for storage. Each row is JSON compressed
// with snappy; tables stored as a single object are a sequence of
// length-prefixed row payloads.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// ErrCorruptFrame is returned when a framed table cannot be decoded.
var ErrCorruptFrame = errors.New("codec: corrupt frame")

// maxRowSize bounds a single decoded row payload.
const maxRowSize = 16 * 1024 * 1024

// EncodeRow encodes one row as snappy-compressed JSON.
func EncodeRow(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: failed to marshal row: %w", err)
	}
	return snappy.Encode(nil, payload), nil
}

// DecodeRow decodes a payload produced by EncodeRow into v.
func DecodeRow(data []byte, v any) error {
	payload, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("codec: failed to decompress row: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("codec: failed to unmarshal row: %w", err)
	}
	return nil
}

// EncodeRows encodes a slice of rows.
func EncodeRows[T any](rows []T) ([][]byte, error) {
	out := make([][]byte, len(rows))
	for i := range rows {
		encoded, err := EncodeRow(rows[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = encoded
	}
	return out, nil
}

// DecodeRows decodes payloads into a slice of rows.
func DecodeRows[T any](payloads [][]byte) ([]T, error) {
	out := make([]T, len(payloads))
	for i, p := range payloads {
		if err := DecodeRow(p, &out[i]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return out, nil
}

// WriteFrames writes payloads as uvarint length-prefixed frames.
func WriteFrames(w io.Writer, payloads [][]byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	for _, p := range payloads {
		n := binary.PutUvarint(lenBuf[:], uint64(len(p)))
		if _, err := w.Write(lenBuf[:n]); err != nil {
			return err
		}
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrames reads every frame from data.
func ReadFrames(data []byte) ([][]byte, error) {
	r := bytes.NewReader(data)
	var payloads [][]byte
	for r.Len() > 0 {
		size, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
		}
		if size > maxRowSize || size > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: frame of %d bytes exceeds remaining %d", ErrCorruptFrame, size, r.Len())
		}
		p := make([]byte, size)
		if _, err := io.ReadFull(r, p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
		}
		payloads = append(payloads, p)
	}
	return payloads, nil
}
