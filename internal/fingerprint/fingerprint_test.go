package fingerprint

import (
	"testing"
	"time"

	"github.com/pgschema/pgdiff/internal/ir"
)

func usersSnapshot(t *testing.T, meta ir.Metadata, dataType string) *ir.Snapshot {
	t.Helper()
	snap, err := ir.NewSnapshot(meta,
		&ir.Schema{Name: "public"},
		&ir.Table{Schema: "public", Name: "users", Columns: []*ir.Column{
			{Name: "id", Position: 1, DataType: "integer", NotNull: true},
			{Name: "email", Position: 2, DataType: dataType},
		}},
	)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return snap
}

func TestComputeFingerprint(t *testing.T) {
	fp, err := ComputeFingerprint(usersSnapshot(t, ir.Metadata{}, "text"))
	if err != nil {
		t.Fatalf("ComputeFingerprint failed: %v", err)
	}
	if len(fp.Hash) != 64 {
		t.Errorf("expected a hex sha256, got %q", fp.Hash)
	}
	if fp.Objects != 2 {
		t.Errorf("Objects = %d; want 2", fp.Objects)
	}
}

func TestFingerprintIgnoresMetadata(t *testing.T) {
	a, err := ComputeFingerprint(usersSnapshot(t, ir.Metadata{Database: "a"}, "text"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ComputeFingerprint(usersSnapshot(t, ir.Metadata{Database: "b", CreatedAt: time.Now()}, "text"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Compare(a, b); err != nil {
		t.Errorf("fingerprints should match: %v", err)
	}
}

func TestFingerprintDetectsChange(t *testing.T) {
	a, err := ComputeFingerprint(usersSnapshot(t, ir.Metadata{}, "text"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := ComputeFingerprint(usersSnapshot(t, ir.Metadata{}, "character varying(50)"))
	if err != nil {
		t.Fatal(err)
	}
	if Compare(a, b) == nil {
		t.Error("expected a fingerprint mismatch")
	}
}

func TestObjectHash(t *testing.T) {
	h1, err := ObjectHash(&ir.EnumType{Schema: "public", Name: "s", Labels: []string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ObjectHash(&ir.EnumType{Schema: "public", Name: "s", Labels: []string{"b", "a"}})
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("label order must change the hash")
	}
}
