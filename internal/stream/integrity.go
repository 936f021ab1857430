package stream

import (
	"github.com/distr1/tartape"
	"github.com/distr1/tartape/internal/probe"
)

// CheckIntegrity re-probes absPath and compares it against the
// recorded track, the check performed immediately before streaming any
// region of that track (spec §4.7), and reused by internal/player for
// both Verify and SpotCheck. Directory mtimes are compared like any
// other field, with one exception: the tape's root directory entry
// (identified by RelPath == "", since it is the only track the
// Recorder inserts at the tree's own root) is exempt, since nothing
// else in the tree references the root's own mtime and it changes
// merely by recording into it.
func CheckIntegrity(absPath string, track *tartape.Track) error {
	r, err := probe.Inspect(absPath)
	if err != nil {
		return tartape.NewIOError("re-probing "+absPath, err)
	}
	if !r.Exists {
		return tartape.NewIntegrityError("%q no longer exists", track.ArcPath)
	}
	if r.IsDir != track.IsDir || r.IsSymlink != track.IsSymlink || r.IsFile != (!track.IsDir && !track.IsSymlink) {
		return tartape.NewIntegrityError("%q changed type since recording", track.ArcPath)
	}
	if r.Mode != track.Mode {
		return tartape.NewIntegrityError("%q permission bits changed: recorded %o, now %o", track.ArcPath, track.Mode, r.Mode)
	}
	if track.IsSymlink {
		if r.Linkname != track.Linkname {
			return tartape.NewIntegrityError("%q symlink target changed: recorded %q, now %q", track.ArcPath, track.Linkname, r.Linkname)
		}
		return nil
	}

	isRoot := track.IsDir && track.RelPath == ""
	if !isRoot && r.Mtime != track.Mtime {
		return tartape.NewIntegrityError("%q mtime changed: recorded %d, now %d", track.ArcPath, track.Mtime, r.Mtime)
	}
	if !track.IsDir && r.Size != track.Size {
		if r.Size < track.Size {
			return tartape.NewIntegrityError("%q shrunk: recorded %d bytes, now %d", track.ArcPath, track.Size, r.Size)
		}
		return tartape.NewIntegrityError("%q grew: recorded %d bytes, now %d", track.ArcPath, track.Size, r.Size)
	}
	return nil
}
