// Package inventory implements the Inventory Store (spec §4.4): the
// durable, ordered, transactional record of every Track in a tape,
// keyed by arc_path so that bucket iteration order is byte-wise sorted
// order for free. It is backed by go.etcd.io/bbolt rather than any
// teacher dependency — the teacher repo carries no embedded ordered
// key/value store, and this component's ordering and transactional
// requirements (batch insert, offset patch-up after the layout pass,
// covering-offset lookup for resume) are exactly bbolt's niche.
package inventory

import (
	"bytes"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
	"github.com/google/renameio"

	"github.com/distr1/tartape"
)

var (
	tracksBucket = []byte("tracks")
	metaBucket   = []byte("meta")

	metaKeyFingerprint = []byte("fingerprint")
	metaKeyTotalSize   = []byte("total_size")
)

// Store is an open Inventory Store. The zero value is not usable; call
// Open.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt database at path and
// ensures both buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, tartape.NewIOError("opening inventory store", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(tracksBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, tartape.NewInternalError("initializing inventory buckets: %v", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertMany inserts or overwrites tracks in a single transaction, the
// "batch flush" the Recorder performs every 300 records (spec §4.5).
func (s *Store) InsertMany(tracks []*tartape.Track) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tracksBucket)
		for _, t := range tracks {
			buf, err := encodeTrack(t)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(t.ArcPath), buf); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateOffsets patches StartOffset/EndOffset onto already-inserted
// tracks after the layout pass computes them (spec §4.5 I2/I3). Every
// arc_path in offsets must already exist; a miss is an
// *tartape.InternalError, since the layout pass only ever sees tracks
// this same store produced.
func (s *Store) UpdateOffsets(offsets map[string][2]uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tracksBucket)
		for arcPath, span := range offsets {
			raw := b.Get([]byte(arcPath))
			if raw == nil {
				return tartape.NewInternalError("UpdateOffsets: no such track %q", arcPath)
			}
			t, err := decodeTrack(raw)
			if err != nil {
				return err
			}
			t.StartOffset, t.EndOffset = span[0], span[1]
			buf, err := encodeTrack(t)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(arcPath), buf); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get looks up a single track by arc_path.
func (s *Store) Get(arcPath string) (*tartape.Track, bool, error) {
	var t *tartape.Track
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(tracksBucket).Get([]byte(arcPath))
		if raw == nil {
			return nil
		}
		var err error
		t, err = decodeTrack(raw)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return t, t != nil, nil
}

// IterSortedByArcPath calls fn once per track in byte-wise sorted
// arc_path order (I6/P8), the order bbolt's btree already keeps its
// keys in. Iteration stops at the first error fn returns.
func (s *Store) IterSortedByArcPath(fn func(*tartape.Track) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(tracksBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			t, err := decodeTrack(v)
			if err != nil {
				return err
			}
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindCoveringOffset returns the track whose [StartOffset, EndOffset)
// region contains offset, for resume (spec §4.7 "resume-point covering
// track"). Because StartOffset increases monotonically with arc_path
// order (the layout pass assigns offsets while iterating the tracks
// bucket in that same sorted order), a single forward scan suffices; found
// is false if offset falls in no track's region (e.g. it lands in the
// footer).
func (s *Store) FindCoveringOffset(offset uint64) (track *tartape.Track, found bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(tracksBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			t, derr := decodeTrack(v)
			if derr != nil {
				return derr
			}
			if offset >= t.StartOffset && offset < t.EndOffset {
				track, found = t, true
				return nil
			}
		}
		return nil
	})
	return track, found, err
}

// PutMeta records the tape-level fingerprint and total size computed
// at the end of a recording (spec §4.5 I6, P7).
func (s *Store) PutMeta(meta tartape.TapeMetadata) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if err := b.Put(metaKeyFingerprint, []byte(meta.Fingerprint)); err != nil {
			return err
		}
		return b.Put(metaKeyTotalSize, encodeUint64(meta.TotalSize))
	})
}

// GetMeta reads back the tape-level metadata, or returns false if no
// recording has ever been committed.
func (s *Store) GetMeta() (meta tartape.TapeMetadata, found bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(metaBucket)
		fp := b.Get(metaKeyFingerprint)
		if fp == nil {
			return nil
		}
		found = true
		meta.Fingerprint = string(fp)
		meta.TotalSize = decodeUint64(b.Get(metaKeyTotalSize))
		return nil
	})
	return meta, found, err
}

// Publish atomically moves the database at tmpPath (built during a
// recording into scratch space) to finalPath, the tape's permanent
// metadata location. The Store at tmpPath must already be closed: bbolt
// owns its own file descriptor, so unlike a renameio.PendingFile the
// database file itself is published with a plain os.Rename (same
// filesystem, therefore atomic — bbolt's Close already fsyncs the
// committed pages). A small human-readable commit marker recording the
// fingerprint is written alongside it with renameio.WriteFile, which
// does apply directly to a single in-memory buffer.
func Publish(tmpPath, finalPath, fingerprint string) error {
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return tartape.NewIOError("publishing inventory store", err)
	}
	marker := finalPath + ".committed"
	if err := renameio.WriteFile(marker, []byte(fingerprint+"\n"), 0644); err != nil {
		return tartape.NewIOError("writing commit marker", err)
	}
	return nil
}

// Discover locates an existing tape's metadata database under
// directory, the supplemented operation original_source/tartape's
// Tape.discover() performs (spec §4.4). It returns an
// *tartape.ConfigurationError if no ".tartape/index.db" is found.
func Discover(directory string) (string, error) {
	candidate := filepath.Join(directory, tartape.MetadataDirName, tartape.MetadataFileName)
	if _, err := os.Stat(candidate); err != nil {
		if os.IsNotExist(err) {
			return "", tartape.NewConfigurationError("no tape found under %q (expected %q)", directory, candidate)
		}
		return "", tartape.NewIOError("probing for existing tape", err)
	}
	return candidate, nil
}

func encodeUint64(v uint64) []byte {
	var buf bytes.Buffer
	writeUint64(&buf, v)
	return buf.Bytes()
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}
