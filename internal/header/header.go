// Package header implements the USTAR/GNU header codec (spec §4.3):
// the "512-byte contract" that renders exactly one 512-byte header per
// track, with octal or GNU base-256 size encoding, USTAR prefix/name
// path splitting, and the standard checksum. It never emits LongLink or
// PAX extension blocks; a header that would need one is a failure.
package header

import (
	"io"

	"github.com/distr1/tartape"
	"github.com/orcaman/writerseeker"
)

const (
	offName     = 0
	widName     = 100
	offMode     = 100
	widMode     = 8
	offUid      = 108
	widUid      = 8
	offGid      = 116
	widGid      = 8
	offSize     = 124
	widSize     = 12
	offMtime    = 136
	widMtime    = 12
	offChecksum = 148
	widChecksum = 8
	offTypeflag = 156
	offLinkname = 157
	widLinkname = 100
	offMagic    = 257
	widMagic    = 6
	offVersion  = 263
	widVersion  = 2
	offUname    = 265
	widUname    = 32
	offGname    = 297
	widGname    = 32
	offPrefix   = 345
	widPrefix   = 155

	ustarMaxOctalSize = (1 << 33) - 1 // 2^33 - 1, ADR-004's USTAR/GNU boundary

	typeReg     = '0'
	typeSymlink = '2'
	typeDir     = '5'
)

// Build renders track as exactly 512 bytes, or returns a
// *tartape.ComplianceError if the path cannot be split into a USTAR
// prefix/name, a component exceeds the field width, or a string field
// is too long. A successful return is always exactly 512 bytes; this is
// checked internally and any violation is reported as an
// *tartape.InternalError rather than silently truncated.
func Build(track *tartape.Track) ([]byte, error) {
	var ws writerseeker.WriterSeeker

	name, prefix, err := splitPath(track.ArcPath)
	if err != nil {
		return nil, err
	}
	if track.IsDir {
		name += "/"
		if len(name) > widName {
			return nil, tartape.NewComplianceError(
				"directory name %q too long for USTAR name field after appending '/'", track.ArcPath)
		}
	}

	if err := writeString(&ws, offName, widName, name); err != nil {
		return nil, err
	}
	if err := writeString(&ws, offPrefix, widPrefix, prefix); err != nil {
		return nil, err
	}
	if err := writeOctal(&ws, offMode, widMode, uint64(track.Mode)); err != nil {
		return nil, err
	}
	if err := writeOctal(&ws, offUid, widUid, uint64(track.Uid)); err != nil {
		return nil, err
	}
	if err := writeOctal(&ws, offGid, widGid, uint64(track.Gid)); err != nil {
		return nil, err
	}
	if err := writeSize(&ws, track.ContentSize()); err != nil {
		return nil, err
	}
	if err := writeOctal(&ws, offMtime, widMtime, uint64(track.Mtime)); err != nil {
		return nil, err
	}
	if err := writeString(&ws, offUname, widUname, track.Uname); err != nil {
		return nil, err
	}
	if err := writeString(&ws, offGname, widGname, track.Gname); err != nil {
		return nil, err
	}

	var typeflag byte
	switch {
	case track.IsDir:
		typeflag = typeDir
	case track.IsSymlink:
		typeflag = typeSymlink
		if err := writeString(&ws, offLinkname, widLinkname, track.Linkname); err != nil {
			return nil, tartape.NewComplianceError("symlink target %q too long: %v", track.Linkname, err)
		}
	default:
		typeflag = typeReg
	}
	if _, err := ws.Seek(offTypeflag, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := ws.Write([]byte{typeflag}); err != nil {
		return nil, err
	}

	if err := writeString(&ws, offMagic, widMagic, "ustar\x00"); err != nil {
		return nil, err
	}
	if err := writeString(&ws, offVersion, widVersion, "00"); err != nil {
		return nil, err
	}

	// Pad the buffer out to a full 512 bytes before computing the
	// checksum: any field never written (e.g. linkname for a regular
	// file) must read back as NUL, not be left absent from the buffer.
	if _, err := ws.Seek(tartape.BlockSize-1, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := ws.Write([]byte{0}); err != nil {
		return nil, err
	}

	buf, err := io.ReadAll(ws.Reader())
	if err != nil {
		return nil, err
	}
	if len(buf) != tartape.BlockSize {
		return nil, tartape.NewInternalError("header codec produced %d bytes, want %d", len(buf), tartape.BlockSize)
	}

	writeChecksum(buf)

	return buf, nil
}

// writeChecksum zeroes the checksum field to ASCII spaces, sums all 512
// bytes as unsigned 8-bit integers, and writes back "NNNNNN\0 " where
// NNNNNN is the zero-padded 6-digit octal sum.
func writeChecksum(buf []byte) {
	for i := 0; i < widChecksum; i++ {
		buf[offChecksum+i] = ' '
	}
	var sum uint64
	for _, b := range buf {
		sum += uint64(b)
	}
	s := octalDigits(sum, 6) + "\x00 "
	copy(buf[offChecksum:offChecksum+widChecksum], s)
}

// writeString writes value's UTF-8 bytes at offset, NUL-padding the
// remainder of width. It is a *tartape.ComplianceError for value to
// exceed width bytes.
func writeString(ws *writerseeker.WriterSeeker, offset, width int, value string) error {
	if len(value) > width {
		return tartape.NewComplianceError("field at offset %d: %q is %d bytes, limit %d", offset, value, len(value), width)
	}
	if _, err := ws.Seek(int64(offset), io.SeekStart); err != nil {
		return err
	}
	_, err := ws.Write([]byte(value))
	return err
}

// writeOctal writes value as a zero-padded octal string occupying
// width-1 digits followed by a trailing NUL, the standard USTAR numeric
// field encoding.
func writeOctal(ws *writerseeker.WriterSeeker, offset, width int, value uint64) error {
	s := octalDigits(value, width-1)
	if len(s) > width-1 {
		return tartape.NewComplianceError("value %d does not fit in octal field of width %d at offset %d", value, width, offset)
	}
	if _, err := ws.Seek(int64(offset), io.SeekStart); err != nil {
		return err
	}
	_, err := ws.Write(append([]byte(s), 0))
	return err
}

// writeSize implements ADR-004: USTAR octal encoding for sizes up to
// 2^33-1, GNU base-256 (byte 0x80 marker + 11-byte big-endian binary)
// beyond that. The header length never changes; no extension block is
// ever allocated.
func writeSize(ws *writerseeker.WriterSeeker, size uint64) error {
	if size <= ustarMaxOctalSize {
		return writeOctal(ws, offSize, widSize, size)
	}

	buf := make([]byte, widSize)
	buf[0] = 0x80
	for i := 0; i < 11; i++ {
		shift := uint(8 * (10 - i))
		buf[1+i] = byte(size >> shift)
	}
	if _, err := ws.Seek(offSize, io.SeekStart); err != nil {
		return err
	}
	_, err := ws.Write(buf)
	return err
}

// octalDigits renders value as an octal string left-padded with zeros
// to at least width digits (more digits if value does not fit).
func octalDigits(value uint64, width int) string {
	digits := []byte{}
	if value == 0 {
		digits = []byte{'0'}
	}
	for value > 0 {
		digits = append([]byte{byte('0' + value%8)}, digits...)
		value /= 8
	}
	for len(digits) < width {
		digits = append([]byte{'0'}, digits...)
	}
	return string(digits)
}

// splitPath implements ADR-005. If path's UTF-8 length is at most 100
// bytes it fits in the name field untouched. Otherwise it scans every
// "/" separator for the split furthest to the right such that the
// prefix half is at most 155 bytes and the name half is at most 100
// bytes, both in UTF-8 bytes. If no split satisfies both bounds, or any
// single path component exceeds 100 bytes, it returns a
// *tartape.ComplianceError.
func splitPath(path string) (name, prefix string, err error) {
	if len(path) <= widName {
		return path, "", nil
	}

	compStart := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i-compStart > widName {
				return "", "", tartape.NewComplianceError("path %q has a component longer than %d bytes", path, widName)
			}
			compStart = i + 1
		}
	}

	bestSplit := -1
	for i := 0; i < len(path); i++ {
		if path[i] != '/' {
			continue
		}
		candidatePrefix := path[:i]
		candidateName := path[i+1:]
		if len(candidatePrefix) <= widPrefix && len(candidateName) <= widName {
			bestSplit = i
		}
	}

	if bestSplit == -1 {
		return "", "", tartape.NewComplianceError("path %q cannot be split into USTAR prefix/name", path)
	}

	return path[bestSplit+1:], path[:bestSplit], nil
}
