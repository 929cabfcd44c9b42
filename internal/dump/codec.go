// Package dump reads and writes snapshot files.
//
// A dump is a zip archive with two entries: manifest.json carries the format
// marker, format version, object count and a SHA-256 of the second entry;
// snapshot.json carries the snapshot metadata and one {"kind","object"}
// envelope per object in key order.
package dump

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/pgschema/pgdiff/internal/ir"
	"github.com/pgschema/pgdiff/internal/version"
)

const (
	// FormatVersion is the dump format this build writes and reads.
	FormatVersion = 1

	formatMarker  = "pgdiff-dump"
	manifestEntry = "manifest.json"
	snapshotEntry = "snapshot.json"
)

// entries carry a fixed timestamp so that encoding is deterministic
var entryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

type manifest struct {
	Format    string `json:"format"`
	Version   int    `json:"version"`
	Generator string `json:"generator,omitempty"`
	Objects   int    `json:"objects"`
	SHA256    string `json:"sha256"`
}

type envelope struct {
	Kind   ir.Kind         `json:"kind"`
	Object json.RawMessage `json:"object"`
}

type document struct {
	Metadata ir.Metadata `json:"metadata"`
	Objects  []envelope  `json:"objects"`
}

// Encode serializes a snapshot.
func Encode(snap *ir.Snapshot) ([]byte, error) {
	doc := document{
		Metadata: snap.Metadata,
		Objects:  make([]envelope, 0, snap.Len()),
	}
	for _, obj := range snap.Objects() {
		raw, err := json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", obj.Key(), err)
		}
		doc.Objects = append(doc.Objects, envelope{Kind: obj.Key().Kind, Object: raw})
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	sum := sha256.Sum256(body)
	head, err := json.Marshal(manifest{
		Format:    formatMarker,
		Version:   FormatVersion,
		Generator: "pgdiff " + version.App(),
		Objects:   len(doc.Objects),
		SHA256:    hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range []struct {
		name string
		data []byte
	}{
		{manifestEntry, head},
		{snapshotEntry, body},
	} {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entry.name,
			Method:   zip.Deflate,
			Modified: entryTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", entry.name, err)
		}
		if _, err := w.Write(entry.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", entry.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish dump archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a dump produced by Encode. Failures are reported as *Error.
func Decode(data []byte) (*ir.Snapshot, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, corrupt("", -1, "not a dump archive", err)
	}

	head, err := readEntry(zr, manifestEntry)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(head, &m); err != nil {
		return nil, corrupt(manifestEntry, jsonOffset(err), "invalid manifest", err)
	}
	if m.Format != formatMarker {
		return nil, corrupt(manifestEntry, -1, fmt.Sprintf("unexpected format marker %q", m.Format), nil)
	}
	if m.Version != FormatVersion {
		return nil, &Error{Kind: VersionMismatch, Entry: manifestEntry, Offset: -1, Found: m.Version, Expected: FormatVersion}
	}

	body, err := readEntry(zr, snapshotEntry)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(body)
	if hex.EncodeToString(sum[:]) != m.SHA256 {
		return nil, corrupt(snapshotEntry, -1, "checksum mismatch", nil)
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, corrupt(snapshotEntry, jsonOffset(err), "invalid snapshot document", err)
	}
	if len(doc.Objects) != m.Objects {
		return nil, corrupt(snapshotEntry, -1, fmt.Sprintf("manifest lists %d objects, document holds %d", m.Objects, len(doc.Objects)), nil)
	}

	b := ir.NewBuilder(doc.Metadata)
	for i, env := range doc.Objects {
		obj, err := decodeObject(env)
		if err != nil {
			return nil, corrupt(snapshotEntry, -1, fmt.Sprintf("object %d", i), err)
		}
		if err := b.Add(obj); err != nil {
			return nil, corrupt(snapshotEntry, -1, fmt.Sprintf("object %d", i), err)
		}
	}
	return b.Build(), nil
}

func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, corrupt(name, -1, "cannot open entry", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, corrupt(name, int64(len(data)), "cannot read entry", err)
		}
		return data, nil
	}
	return nil, corrupt(name, -1, "missing entry", nil)
}

func jsonOffset(err error) int64 {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset
	}
	return -1
}

func decodeObject(env envelope) (ir.Object, error) {
	var obj ir.Object
	switch env.Kind {
	case ir.KindSchema:
		obj = &ir.Schema{}
	case ir.KindExtension:
		obj = &ir.Extension{}
	case ir.KindEnum:
		obj = &ir.EnumType{}
	case ir.KindComposite:
		obj = &ir.CompositeType{}
	case ir.KindDomain:
		obj = &ir.DomainType{}
	case ir.KindSequence:
		obj = &ir.Sequence{}
	case ir.KindTable:
		obj = &ir.Table{}
	case ir.KindConstraint:
		obj = &ir.Constraint{}
	case ir.KindIndex:
		obj = &ir.Index{}
	case ir.KindFunction, ir.KindProcedure:
		obj = &ir.Routine{}
	case ir.KindTrigger:
		obj = &ir.Trigger{}
	case ir.KindView:
		obj = &ir.View{}
	case ir.KindPolicy:
		obj = &ir.Policy{}
	case ir.KindComment:
		obj = &ir.Comment{}
	default:
		return nil, fmt.Errorf("unknown object kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.Object, obj); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", env.Kind, err)
	}
	if got := obj.Key().Kind; got != env.Kind {
		return nil, fmt.Errorf("envelope kind %s does not match object kind %s", env.Kind, got)
	}
	return obj, nil
}

// WriteFile encodes snap and writes it to path.
func WriteFile(path string, snap *ir.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write dump %s: %w", path, err)
	}
	return nil
}

// ReadFile reads and decodes the dump at path.
func ReadFile(path string) (*ir.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump %s: %w", path, err)
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}
