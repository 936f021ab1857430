package player

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/distr1/tartape"
	"github.com/distr1/tartape/internal/recorder"
	"github.com/distr1/tartape/internal/stream"
)

func recordTape(t *testing.T, dir string) {
	t.Helper()
	rec, err := recorder.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenMissingTapeIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir); err == nil {
		t.Fatal("expected an error opening a directory with no tape")
	} else if _, ok := err.(*tartape.ConfigurationError); !ok {
		t.Fatalf("error = %T, want *tartape.ConfigurationError", err)
	}
}

func TestVerifyPassesOnUntouchedTape(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	recordTape(t, dir)

	p, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.Verify(); err != nil {
		t.Fatalf("Verify() = %v, want nil", err)
	}
}

func TestVerifyDetectsMtimeDrift(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	recordTape(t, dir)

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(p, future, future); err != nil {
		t.Fatal(err)
	}

	pl, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer pl.Close()

	if err := pl.Verify(); err == nil {
		t.Fatal("expected Verify to detect the mtime change")
	} else if _, ok := err.(*tartape.IntegrityError); !ok {
		t.Fatalf("error = %T, want *tartape.IntegrityError", err)
	}
}

func TestSpotCheckCoversEverythingWhenSampleExceedsTrackCount(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	recordTape(t, dir)

	p, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.SpotCheck(1000); err != nil {
		t.Fatalf("SpotCheck(1000) = %v, want nil", err)
	}
}

func TestOffsetOfKnownAndUnknownTrack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	recordTape(t, dir)

	p, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	arcPath := filepath.Base(dir) + "/a.txt"
	off, err := p.OffsetOf(arcPath)
	if err != nil {
		t.Fatal(err)
	}
	if off != tartape.BlockSize {
		t.Errorf("OffsetOf(%s) = %d, want %d (right after the root directory's header block)", arcPath, off, tartape.BlockSize)
	}

	if _, err := p.OffsetOf("does-not-exist"); err == nil {
		t.Fatal("expected an error for an unknown arc path")
	}
}

func TestPlayFullProducesCompletedEvent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}
	recordTape(t, dir)

	p, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	events, errc, err := p.Play(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var last int
	for e := range events {
		last = int(e.Kind)
	}
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if stream.Kind(last) != stream.Completed {
		t.Errorf("last event kind = %v, want Completed", last)
	}
}

func TestPlayRejectsOutOfRangeStartOffset(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	recordTape(t, dir)

	p, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	_, _, err = p.Play(context.Background(), tartape.WithStartOffset(1<<40))
	if err == nil {
		t.Fatal("expected an error for a start offset past the tape's end")
	}
}
