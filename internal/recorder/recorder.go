// Package recorder implements the Recorder (spec §4.5): it walks a
// directory tree in deterministic byte-wise sorted order, turns every
// entry into a Track via internal/trackfactory, computes each track's
// final stream offsets (the layout pass, I2/I3), fingerprints the whole
// inventory (I6, P7), and publishes the result atomically so a reader
// never observes a half-written tape.
package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/xerrors"

	"github.com/distr1/tartape"
	"github.com/distr1/tartape/internal/inventory"
	"github.com/distr1/tartape/internal/trackfactory"
)

const batchSize = 300

var (
	metadataDirRelPath = tartape.MetadataDirName
	defaultExcludes    = tartape.DefaultExcludes
)

// Recorder records one directory tree into a new tape. A Recorder is
// single-use: construct it with New, call Commit exactly once.
type Recorder struct {
	root string
	cfg  tartape.RecorderConfig

	store   *inventory.Store
	tmpPath string

	batch []*tartape.Track
}

// New guards against recording over an existing tape (spec §4.5 "the
// recorder refuses to run if a tape already exists") and opens a
// scratch inventory store in the tape's metadata directory under a
// temporary name, so Commit can publish it atomically on success and
// leave nothing behind on failure.
func New(root string, opts ...tartape.RecorderOption) (*Recorder, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, tartape.NewConfigurationError("root %q: %v", root, err)
	}
	if !info.IsDir() {
		return nil, tartape.NewConfigurationError("root %q is not a directory", root)
	}

	metaDir := filepath.Join(root, tartape.MetadataDirName)
	finalPath := filepath.Join(metaDir, tartape.MetadataFileName)
	if _, err := os.Stat(finalPath); err == nil {
		return nil, tartape.NewConfigurationError("a tape already exists at %q", finalPath)
	} else if !os.IsNotExist(err) {
		return nil, tartape.NewIOError("checking for an existing tape", err)
	}

	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, tartape.NewIOError("creating metadata directory", err)
	}
	tmpPath := finalPath + ".tmp"
	os.Remove(tmpPath) // best-effort cleanup of a crashed prior attempt

	store, err := inventory.Open(tmpPath)
	if err != nil {
		return nil, xerrors.Errorf("opening scratch inventory: %w", err)
	}

	return &Recorder{
		root:    root,
		cfg:     tartape.NewRecorderConfig(opts...),
		store:   store,
		tmpPath: tmpPath,
	}, nil
}

// Commit walks the tree, lays out offsets, fingerprints the inventory,
// and publishes the tape. It returns the tape's fingerprint as a
// lowercase hex string. On any error the scratch store is closed and
// removed; no partial tape is left at the final path.
func (r *Recorder) Commit() (fingerprint string, err error) {
	defer func() {
		if err != nil {
			r.store.Close()
			os.Remove(r.tmpPath)
		}
	}()

	arcBase := filepath.Base(filepath.Clean(r.root))
	rootTrack, err := trackfactory.Create(r.root, "", arcBase, r.cfg.Anonymize)
	if err != nil {
		return "", xerrors.Errorf("probing root %q: %w", r.root, err)
	}
	if rootTrack == nil {
		return "", tartape.NewInternalError("root %q probed as an unsupported type", r.root)
	}
	r.batch = append(r.batch, rootTrack)

	if err := r.walk("", arcBase, r.root); err != nil {
		return "", xerrors.Errorf("discovering tracks: %w", err)
	}
	if err := r.flush(); err != nil {
		return "", xerrors.Errorf("flushing final batch: %w", err)
	}

	totalSize, err := r.layout()
	if err != nil {
		return "", xerrors.Errorf("computing layout: %w", err)
	}

	fingerprint, err = r.fingerprint()
	if err != nil {
		return "", xerrors.Errorf("computing fingerprint: %w", err)
	}

	if err := r.store.PutMeta(tartape.TapeMetadata{Fingerprint: fingerprint, TotalSize: totalSize}); err != nil {
		return "", xerrors.Errorf("persisting tape metadata: %w", err)
	}

	if err := r.store.Close(); err != nil {
		return "", xerrors.Errorf("closing scratch inventory: %w", err)
	}

	finalPath := filepath.Join(r.root, tartape.MetadataDirName, tartape.MetadataFileName)
	if err := inventory.Publish(r.tmpPath, finalPath, fingerprint); err != nil {
		return "", xerrors.Errorf("publishing tape: %w", err)
	}

	return fingerprint, nil
}

// walk recursively discovers entries under absDir, in byte-wise sorted
// order (os.ReadDir already sorts by Name, matching I6/P8 directly).
// relPath is absDir's path relative to r.root ("" at the root itself),
// used for exclusion checks and each Track's RelPath. arcPrefix is the
// arc_path of absDir itself — the root directory's basename at the top
// of the recursion (spec §4.5 step 2: "the root directory itself is
// always added first, with arc_path = basename(directory); child
// arc-paths are parent_arc/child_name") — and every child's arc_path is
// built as arcPrefix + "/" + name.
func (r *Recorder) walk(relPath, arcPrefix, absDir string) error {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		if os.IsPermission(err) {
			log.Printf("skipping unreadable directory %q: %v", absDir, err)
			return nil
		}
		return tartape.NewIOError(fmt.Sprintf("reading directory %q", absDir), err)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)

	for _, name := range names {
		childRel := name
		if relPath != "" {
			childRel = relPath + "/" + name
		}
		if r.shouldExclude(childRel, name) {
			continue
		}

		absPath := filepath.Join(absDir, name)
		childArc := arcPrefix + "/" + name

		track, err := trackfactory.Create(absPath, childRel, childArc, r.cfg.Anonymize)
		if err != nil {
			return xerrors.Errorf("probing %q: %w", absPath, err)
		}
		if track == nil {
			continue // unsupported type (socket, fifo, device): silent skip
		}

		r.batch = append(r.batch, track)
		if len(r.batch) >= batchSize {
			if err := r.flush(); err != nil {
				return err
			}
		}

		if track.IsDir {
			if err := r.walk(childRel, childArc, absPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Recorder) flush() error {
	if len(r.batch) == 0 {
		return nil
	}
	if err := r.store.InsertMany(r.batch); err != nil {
		return err
	}
	r.batch = r.batch[:0]
	return nil
}

// layout implements the layout pass (I2/I3): tracks are visited in the
// store's byte-wise sorted arc_path order and assigned contiguous
// offsets, each spanning BlockSize-aligned header+content+padding. It
// returns the tape's total size, footer included.
func (r *Recorder) layout() (totalSize uint64, err error) {
	offsets := make(map[string][2]uint64)
	var cursor uint64

	err = r.store.IterSortedByArcPath(func(t *tartape.Track) error {
		start := cursor
		end := start + t.BlockSpan()
		offsets[t.ArcPath] = [2]uint64{start, end}
		cursor = end
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := r.store.UpdateOffsets(offsets); err != nil {
		return 0, err
	}

	return cursor + tartape.FooterSize, nil
}

// fingerprint computes the SHA-256 digest over the inventory's
// canonicalized representation: one "arc_path|size|mtime" line per
// track, in byte-wise sorted arc_path order (I6, P7).
func (r *Recorder) fingerprint() (string, error) {
	h := sha256.New()
	err := r.store.IterSortedByArcPath(func(t *tartape.Track) error {
		fmt.Fprintf(h, "%s|%d|%d\n", t.ArcPath, t.Size, t.Mtime)
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
