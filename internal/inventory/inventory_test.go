package inventory

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/distr1/tartape"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertManyAndGet(t *testing.T) {
	s := openTestStore(t)
	tracks := []*tartape.Track{
		{ArcPath: "a.txt", Size: 3},
		{ArcPath: "b/c.txt", Size: 10},
	}
	if err := s.InsertMany(tracks); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.Get("b/c.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !found || got.Size != 10 {
		t.Fatalf("Get(b/c.txt) = %+v, found=%v", got, found)
	}

	if _, found, err := s.Get("missing"); err != nil || found {
		t.Fatalf("Get(missing) found=%v err=%v, want false, nil", found, err)
	}
}

func TestIterSortedByArcPathIsByteOrder(t *testing.T) {
	s := openTestStore(t)
	tracks := []*tartape.Track{
		{ArcPath: "z.txt"},
		{ArcPath: "a.txt"},
		{ArcPath: "m/n.txt"},
	}
	if err := s.InsertMany(tracks); err != nil {
		t.Fatal(err)
	}

	var order []string
	err := s.IterSortedByArcPath(func(tr *tartape.Track) error {
		order = append(order, tr.ArcPath)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.txt", "m/n.txt", "z.txt"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestUpdateOffsetsAndFindCoveringOffset(t *testing.T) {
	s := openTestStore(t)
	tracks := []*tartape.Track{
		{ArcPath: "a.txt", Size: 100},
		{ArcPath: "b.txt", Size: 200},
	}
	if err := s.InsertMany(tracks); err != nil {
		t.Fatal(err)
	}
	offsets := map[string][2]uint64{
		"a.txt": {0, 1024},
		"b.txt": {1024, 2560},
	}
	if err := s.UpdateOffsets(offsets); err != nil {
		t.Fatal(err)
	}

	tr, found, err := s.FindCoveringOffset(1500)
	if err != nil {
		t.Fatal(err)
	}
	if !found || tr.ArcPath != "b.txt" {
		t.Fatalf("FindCoveringOffset(1500) = %+v, found=%v, want b.txt", tr, found)
	}

	if _, found, err := s.FindCoveringOffset(9999); err != nil || found {
		t.Fatalf("FindCoveringOffset(9999) found=%v err=%v, want false, nil", found, err)
	}
}

func TestPutMetaAndGetMeta(t *testing.T) {
	s := openTestStore(t)
	if _, found, err := s.GetMeta(); err != nil || found {
		t.Fatalf("GetMeta on empty store found=%v err=%v, want false, nil", found, err)
	}

	meta := tartape.TapeMetadata{Fingerprint: "deadbeef", TotalSize: 4096}
	if err := s.PutMeta(meta); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.GetMeta()
	if err != nil {
		t.Fatal(err)
	}
	if !found || got.Fingerprint != meta.Fingerprint || got.TotalSize != meta.TotalSize {
		t.Fatalf("GetMeta() = %+v, want %+v", got, meta)
	}
}

func TestEncodeDecodeTrackRoundTrip(t *testing.T) {
	t1 := &tartape.Track{
		ArcPath: "dir/name.txt", RelPath: "name.txt", Size: 123, Mtime: 1700000000,
		Mode: 0644, Uid: 0, Gid: 0, Uname: "root", Gname: "root",
		IsDir: false, IsSymlink: true, Linkname: "target.txt",
		StartOffset: 512, EndOffset: 1536,
	}
	raw, err := encodeTrack(t1)
	if err != nil {
		t.Fatal(err)
	}
	t2, err := decodeTrack(raw)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(t1, t2); diff != "" {
		t.Fatalf("round-tripped track differs (-want +got):\n%s", diff)
	}
}

func TestDiscoverMissingTapeIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	if _, err := Discover(dir); err == nil {
		t.Fatal("expected an error for a directory with no tape")
	} else if _, ok := err.(*tartape.ConfigurationError); !ok {
		t.Fatalf("error = %T, want *tartape.ConfigurationError", err)
	}
}
