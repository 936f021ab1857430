// Package trackfactory builds tartape.Track values from filesystem
// probe results, applying the anonymization policy (spec §4.2).
package trackfactory

import (
	"github.com/distr1/tartape"
	"github.com/distr1/tartape/internal/probe"
)

// Create inspects sourcePath and builds a Track for it. It returns
// (nil, nil) if the path does not exist or is a type the engine does
// not support (sockets, fifos, devices) — both are silent skips, not
// errors. A non-nil error means the probe itself failed (e.g. a
// readlink failure on a symlink race).
func Create(sourcePath, relPath, arcPath string, anonymize bool) (*tartape.Track, error) {
	r, err := probe.Inspect(sourcePath)
	if err != nil {
		return nil, err
	}
	if !r.Exists || !(r.IsDir || r.IsFile || r.IsSymlink) {
		return nil, nil
	}

	t := &tartape.Track{
		ArcPath:   arcPath,
		RelPath:   relPath,
		Size:      r.Size,
		Mtime:     r.Mtime,
		Mode:      r.Mode,
		IsDir:     r.IsDir,
		IsSymlink: r.IsSymlink,
		Linkname:  r.Linkname,
		Uid:       r.Uid,
		Gid:       r.Gid,
		Uname:     r.Uname,
		Gname:     r.Gname,
	}

	if anonymize {
		t.Uid, t.Gid = 0, 0
		t.Uname, t.Gname = "root", "root"
	}

	return t, nil
}
