package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/teamhub/teamhub/internal/codec"
	perrors "github.com/teamhub/teamhub/internal/errors"
	"github.com/teamhub/teamhub/internal/storage"
)

// maxAppendAttempts bounds optimistic retries when a concurrent writer moves
// the object between download and conditional put.
const maxAppendAttempts = 5

const objectSuffix = ".rows"

// ObjectStore keeps each table as one object <layer>/<name>.rows holding
// length-prefixed row payloads.
type ObjectStore struct {
	objects storage.ObjectStorage
	workDir string
}

// NewObjectStore creates a store over object storage. workDir holds temporary
// files for uploads and downloads.
func NewObjectStore(objects storage.ObjectStorage, workDir string) (*ObjectStore, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("store: failed to create work directory: %w", err)
	}
	return &ObjectStore{objects: objects, workDir: workDir}, nil
}

// ObjectPath returns the object key holding a table.
func ObjectPath(ref TableRef) string {
	return string(ref.Layer) + "/" + ref.Name + objectSuffix
}

func (s *ObjectStore) Read(ctx context.Context, ref TableRef) ([][]byte, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	payloads, err := s.download(ctx, ref)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, notFound(ref)
	}
	if err != nil {
		return nil, perrors.NewStoreReadError(ref.String(), err)
	}
	return payloads, nil
}

func (s *ObjectStore) Write(ctx context.Context, ref TableRef, payloads [][]byte, mode WriteMode) error {
	if err := ref.Validate(); err != nil {
		return perrors.NewStoreWriteError(ref.String(), err)
	}

	var err error
	if mode == Overwrite {
		err = s.upload(ctx, ref, payloads, nil)
	} else {
		err = s.appendRows(ctx, ref, payloads)
	}
	if err != nil {
		return perrors.NewStoreWriteError(ref.String(), err)
	}
	return nil
}

func (s *ObjectStore) appendRows(ctx context.Context, ref TableRef, payloads [][]byte) error {
	key := ObjectPath(ref)
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		etag, err := s.objects.ETag(ctx, key)
		var existing [][]byte
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			etag = ""
		case err != nil:
			return err
		default:
			existing, err = s.download(ctx, ref)
			if err != nil {
				return err
			}
		}

		merged := make([][]byte, 0, len(existing)+len(payloads))
		merged = append(merged, existing...)
		merged = append(merged, payloads...)

		err = s.upload(ctx, ref, merged, &etag)
		if errors.Is(err, storage.ErrPreconditionFailed) {
			continue
		}
		return err
	}
	return fmt.Errorf("gave up appending to %s after %d conflicting attempts", key, maxAppendAttempts)
}

func (s *ObjectStore) Exists(ctx context.Context, ref TableRef) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, err
	}
	exists, err := s.objects.Exists(ctx, ObjectPath(ref))
	if err != nil {
		return false, perrors.NewStoreReadError(ref.String(), err)
	}
	return exists, nil
}

func (s *ObjectStore) Count(ctx context.Context, ref TableRef) (int64, error) {
	payloads, err := s.Read(ctx, ref)
	if err != nil {
		return 0, err
	}
	return int64(len(payloads)), nil
}

func (s *ObjectStore) Tables(ctx context.Context, layer Layer) ([]TableRef, error) {
	if err := validLayer(layer); err != nil {
		return nil, err
	}
	prefix := string(layer) + "/"
	keys, err := s.objects.ListObjects(ctx, prefix)
	if err != nil {
		return nil, perrors.NewStoreReadError(string(layer), err)
	}

	var refs []TableRef
	for _, key := range keys {
		name, ok := strings.CutSuffix(strings.TrimPrefix(key, prefix), objectSuffix)
		if !ok {
			continue
		}
		ref, err := ParseTableRef(string(layer) + "." + name)
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// Close is a no-op; object storage clients hold no connections to release.
func (s *ObjectStore) Close() error {
	return nil
}

func (s *ObjectStore) download(ctx context.Context, ref TableRef) ([][]byte, error) {
	tmp := s.tempPath()
	defer os.Remove(tmp)

	if err := s.objects.Download(ctx, ObjectPath(ref), tmp); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, err
	}
	payloads, err := codec.ReadFrames(data)
	if err != nil {
		return nil, err
	}
	if payloads == nil {
		payloads = [][]byte{}
	}
	return payloads, nil
}

// upload writes payloads as the table object. A nil etag uploads
// unconditionally; otherwise the put is conditional on *etag.
func (s *ObjectStore) upload(ctx context.Context, ref TableRef, payloads [][]byte, etag *string) error {
	var buf bytes.Buffer
	if err := codec.WriteFrames(&buf, payloads); err != nil {
		return err
	}

	tmp := s.tempPath()
	defer os.Remove(tmp)
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return err
	}

	if etag == nil {
		return s.objects.Upload(ctx, tmp, ObjectPath(ref))
	}
	return s.objects.ConditionalPut(ctx, tmp, ObjectPath(ref), *etag)
}

func (s *ObjectStore) tempPath() string {
	return filepath.Join(s.workDir, "tmp-"+uuid.NewString()+".rows")
}
