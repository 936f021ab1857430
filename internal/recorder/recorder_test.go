package recorder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/distr1/tartape"
	"github.com/distr1/tartape/internal/inventory"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCommitProducesDeterministicFingerprint(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "a.txt"), "hello")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	mustWriteFile(t, filepath.Join(dir, "sub", "b.txt"), "world")

	rec, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	fp1, err := rec.Commit()
	if err != nil {
		t.Fatal(err)
	}
	if len(fp1) != 64 {
		t.Fatalf("fingerprint %q is %d hex chars, want 64", fp1, len(fp1))
	}

	// Record the same untouched tree a second time; only the metadata
	// directory's contents change, so the fingerprint must not.
	finalPath := filepath.Join(dir, tartape.MetadataDirName, tartape.MetadataFileName)
	if err := os.Remove(finalPath); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(finalPath + ".committed"); err != nil {
		t.Fatal(err)
	}
	rec2, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	fp2, err := rec2.Commit()
	if err != nil {
		t.Fatal(err)
	}
	if fp2 != fp1 {
		t.Fatalf("second Commit of the same tree gave fingerprint %q, want %q", fp2, fp1)
	}

	store, err := inventory.Open(filepath.Join(dir, tartape.MetadataDirName, tartape.MetadataFileName))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	meta, found, err := store.GetMeta()
	if err != nil {
		t.Fatal(err)
	}
	if !found || meta.Fingerprint != fp1 {
		t.Fatalf("GetMeta() = %+v, found=%v, want fingerprint %q", meta, found, fp1)
	}

	base := filepath.Base(dir)

	rootTr, found, err := store.Get(base)
	if err != nil {
		t.Fatal(err)
	}
	if !found || !rootTr.IsDir || rootTr.StartOffset != 0 {
		t.Fatalf("root track %+v, found=%v, want a directory at StartOffset 0", rootTr, found)
	}

	tr, found, err := store.Get(base + "/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatalf("%s/a.txt not found", base)
	}

	subTr, found, err := store.Get(base + "/sub")
	if err != nil {
		t.Fatal(err)
	}
	if !found || !subTr.IsDir {
		t.Fatalf("sub track missing or not a directory: %+v, found=%v", subTr, found)
	}
}

func TestCommitRefusesExistingTape(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "a.txt"), "hi")

	rec, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Commit(); err != nil {
		t.Fatal(err)
	}

	if _, err := New(dir); err == nil {
		t.Fatal("expected New to refuse a directory that already has a tape")
	} else if _, ok := err.(*tartape.ConfigurationError); !ok {
		t.Fatalf("error = %T, want *tartape.ConfigurationError", err)
	}
}

func TestCommitExcludesDefaultsAndMetadataDir(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "keep.txt"), "x")
	mustWriteFile(t, filepath.Join(dir, ".DS_Store"), "junk")
	mustWriteFile(t, filepath.Join(dir, "state.db-wal"), "junk")

	rec, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Commit(); err != nil {
		t.Fatal(err)
	}

	store, err := inventory.Open(filepath.Join(dir, tartape.MetadataDirName, tartape.MetadataFileName))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	var seen []string
	err = store.IterSortedByArcPath(func(tr *tartape.Track) error {
		seen = append(seen, tr.ArcPath)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	base := filepath.Base(dir)
	for _, excluded := range []string{base + "/.DS_Store", base + "/state.db-wal", base + "/.tartape"} {
		for _, s := range seen {
			if s == excluded {
				t.Fatalf("excluded path %q was recorded: %v", excluded, seen)
			}
		}
	}
	found := false
	for _, s := range seen {
		if s == base+"/keep.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("keep.txt missing from recorded tracks: %v", seen)
	}
}

func TestCommitHonorsCallerExclude(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "keep.txt"), "x")
	mustWriteFile(t, filepath.Join(dir, "skip.log"), "y")

	rec, err := New(dir, tartape.WithExclude(func(relPath string) bool {
		return filepath.Ext(relPath) == ".log"
	}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Commit(); err != nil {
		t.Fatal(err)
	}

	store, err := inventory.Open(filepath.Join(dir, tartape.MetadataDirName, tartape.MetadataFileName))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	base := filepath.Base(dir)
	if _, found, _ := store.Get(base + "/skip.log"); found {
		t.Fatal("skip.log should have been excluded by the caller's ExcludeFunc")
	}
	if _, found, _ := store.Get(base + "/keep.txt"); !found {
		t.Fatal("keep.txt should have been recorded")
	}
}
