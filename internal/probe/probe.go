// Package probe implements the metadata probe (spec §4.1): a single
// point of file-system inspection that never follows symlinks.
package probe

import (
	"os"

	"golang.org/x/sys/unix"
)

// Result is what a single stat-without-follow of a path reveals. Types
// other than directory/regular/symlink (sockets, fifos, devices) come
// back with IsDir, IsFile, and IsSymlink all false; callers must ignore
// those silently rather than treat them as an error.
type Result struct {
	Exists bool

	IsDir, IsFile, IsSymlink bool

	Size  uint64
	Mtime int64 // seconds, truncated

	Mode uint32 // permission bits only (type bits stripped)

	Uid, Gid     uint32
	Uname, Gname string

	// Linkname is the symlink target, or empty.
	Linkname string
}

// Inspect stats path without following a trailing symlink and reports
// its type, size, mtime, permission bits, numeric and resolved
// owner/group, and symlink target. A path that does not exist yields a
// zero Result with Exists=false and a nil error; any other stat failure
// is returned as an error.
func Inspect(path string) (Result, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		if os.IsNotExist(err) {
			return Result{}, nil
		}
		return Result{}, err
	}

	r := Result{
		Exists: true,
		Size:   uint64(st.Size),
		Mtime:  st.Mtim.Sec,
		Mode:   uint32(st.Mode) & 07777,
		Uid:    st.Uid,
		Gid:    st.Gid,
	}

	switch st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		r.IsDir = true
	case unix.S_IFREG:
		r.IsFile = true
	case unix.S_IFLNK:
		r.IsSymlink = true
	default:
		// Socket, FIFO, device: all three booleans remain false; the
		// caller is responsible for silently skipping these.
		return r, nil
	}

	r.Uname = lookupUserName(r.Uid)
	r.Gname = lookupGroupName(r.Gid)

	if r.IsSymlink {
		target, err := os.Readlink(path)
		if err != nil {
			return Result{}, err
		}
		r.Linkname = target
	}
	if r.IsDir || r.IsSymlink {
		r.Size = 0
	}

	return r, nil
}
