package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "tally.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestLoadSeededDataset(t *testing.T) {
	repo := newTestRepository(t)

	document, revision, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(document) != "[]" {
		t.Fatalf("expected seeded empty document, got %q", document)
	}
	if revision != 0 {
		t.Fatalf("expected revision 0, got %d", revision)
	}
}

func TestReplaceBumpsRevision(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	rev1, err := repo.Replace(ctx, []byte(`[{"stub":1}]`))
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	rev2, err := repo.Replace(ctx, []byte(`[{"stub":2}]`))
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if rev2 != rev1+1 {
		t.Fatalf("expected revision %d, got %d", rev1+1, rev2)
	}

	document, revision, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(document) != `[{"stub":2}]` || revision != rev2 {
		t.Fatalf("unexpected state: %q rev %d", document, revision)
	}
}

func TestReplaceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tally.db")
	ctx := context.Background()

	repo, err := NewRepository(path)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	if _, err := repo.Replace(ctx, []byte(`["persisted"]`)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	repo.Close()

	reopened, err := NewRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	document, _, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(document) != `["persisted"]` {
		t.Fatalf("document lost across reopen: %q", document)
	}
}
