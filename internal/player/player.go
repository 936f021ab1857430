// Package player implements the Player (spec §4.7): verification (full
// or spot-check), byte-offset lookup, and handing a play request off to
// the Streaming Engine after the appropriate pre-flight check.
package player

import (
	"context"
	"math/rand"
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/distr1/tartape"
	"github.com/distr1/tartape/internal/inventory"
	"github.com/distr1/tartape/internal/stream"
)

// Player reads back a previously recorded tape.
type Player struct {
	root  string
	store *inventory.Store
}

// Open loads the tape rooted at root. It returns an
// *tartape.ConfigurationError if no tape has been recorded there.
func Open(root string) (*Player, error) {
	dbPath, err := inventory.Discover(root)
	if err != nil {
		return nil, err
	}
	store, err := inventory.Open(dbPath)
	if err != nil {
		return nil, xerrors.Errorf("opening inventory store: %w", err)
	}
	return &Player{root: root, store: store}, nil
}

// Close releases the underlying inventory store.
func (p *Player) Close() error {
	return p.store.Close()
}

// Verify performs a full integrity check: every track is re-probed and
// compared against its recorded identity. It returns the first
// violation encountered, or nil if the tape and the filesystem still
// agree completely.
func (p *Player) Verify() error {
	return p.store.IterSortedByArcPath(func(t *tartape.Track) error {
		return stream.CheckIntegrity(filepath.Join(p.root, t.RelPath), t)
	})
}

// SpotCheck verifies a uniform random sample of sampleSize tracks
// without replacement, the default (cheaper) pre-flight check ahead of
// a play (spec §4.7, §9 fast_verify). If the tape has fewer tracks than
// sampleSize, every track is checked.
func (p *Player) SpotCheck(sampleSize int) error {
	var all []*tartape.Track
	err := p.store.IterSortedByArcPath(func(t *tartape.Track) error {
		all = append(all, t)
		return nil
	})
	if err != nil {
		return err
	}

	if sampleSize >= len(all) {
		for _, t := range all {
			if err := stream.CheckIntegrity(filepath.Join(p.root, t.RelPath), t); err != nil {
				return err
			}
		}
		return nil
	}

	perm := rand.Perm(len(all))
	for _, idx := range perm[:sampleSize] {
		t := all[idx]
		if err := stream.CheckIntegrity(filepath.Join(p.root, t.RelPath), t); err != nil {
			return err
		}
	}
	return nil
}

// OffsetOf returns the recorded StartOffset of the track at arcPath,
// the supplemented lookup original_source/tartape's Tape.get_offset_of
// exposes (spec §4.4, §4.7).
func (p *Player) OffsetOf(arcPath string) (uint64, error) {
	t, found, err := p.store.Get(arcPath)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, tartape.NewConfigurationError("no track recorded at %q", arcPath)
	}
	return t.StartOffset, nil
}

// defaultSpotCheckSampleSize is the number of tracks SpotCheck examines
// in Play's fast-verify pre-flight check.
const defaultSpotCheckSampleSize = 15

// Play runs the pre-flight integrity check appropriate to opts
// (SpotCheck by default, full Verify when WithFastVerify(false) is
// set), checks the resume point's covering track if resuming mid-tape,
// and hands off to the Streaming Engine. The returned channel and error
// channel behave exactly as stream.Emit documents.
func (p *Player) Play(ctx context.Context, opts ...tartape.PlayOption) (<-chan stream.Event, <-chan error, error) {
	cfg := tartape.NewPlayConfig(opts...)

	meta, found, err := p.store.GetMeta()
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, tartape.NewConfigurationError("tape at %q has no recorded metadata", p.root)
	}
	if cfg.StartOffset >= meta.TotalSize {
		return nil, nil, tartape.NewConfigurationError("start offset %d is at or past the tape's total size %d", cfg.StartOffset, meta.TotalSize)
	}

	if cfg.FastVerify {
		if err := p.SpotCheck(defaultSpotCheckSampleSize); err != nil {
			return nil, nil, err
		}
	} else {
		if err := p.Verify(); err != nil {
			return nil, nil, err
		}
	}

	if cfg.StartOffset > 0 && cfg.StartOffset < meta.TotalSize-tartape.FooterSize {
		covering, found, err := p.store.FindCoveringOffset(cfg.StartOffset)
		if err != nil {
			return nil, nil, err
		}
		if found {
			if err := stream.CheckIntegrity(filepath.Join(p.root, covering.RelPath), covering); err != nil {
				return nil, nil, err
			}
		} else {
			return nil, nil, tartape.NewInternalError("no track covers in-bounds start offset %d", cfg.StartOffset)
		}
	}

	var tracks []*tartape.Track
	err = p.store.IterSortedByArcPath(func(t *tartape.Track) error {
		if t.EndOffset > cfg.StartOffset {
			tracks = append(tracks, t)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	events, errc := stream.Emit(ctx, p.root, tracks, meta.TotalSize, cfg.StartOffset, cfg.ChunkSize)
	return events, errc, nil
}
