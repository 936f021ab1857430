package inventory

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/distr1/tartape"
)

// encodeTrack and decodeTrack render a Track as a flat binary record:
// fixed-width numeric fields written with encoding/binary, variable
// strings as a uint16 length prefix followed by raw bytes. This mirrors
// internal/squashfs/writer.go's style of assembling an exact-layout
// binary record field by field, generalized here to a record with a
// handful of variable-length tails instead of squashfs's fully fixed
// inode layout.
func encodeTrack(t *tartape.Track) ([]byte, error) {
	var buf bytes.Buffer

	writeString(&buf, t.ArcPath)
	writeString(&buf, t.RelPath)
	writeUint64(&buf, t.Size)
	if err := binary.Write(&buf, binary.BigEndian, t.Mtime); err != nil {
		return nil, tartape.NewInternalError("encoding track mtime: %v", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, t.Mode); err != nil {
		return nil, tartape.NewInternalError("encoding track mode: %v", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, t.Uid); err != nil {
		return nil, tartape.NewInternalError("encoding track uid: %v", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, t.Gid); err != nil {
		return nil, tartape.NewInternalError("encoding track gid: %v", err)
	}
	writeString(&buf, t.Uname)
	writeString(&buf, t.Gname)
	writeBool(&buf, t.IsDir)
	writeBool(&buf, t.IsSymlink)
	writeString(&buf, t.Linkname)
	writeUint64(&buf, t.StartOffset)
	writeUint64(&buf, t.EndOffset)

	return buf.Bytes(), nil
}

func decodeTrack(raw []byte) (*tartape.Track, error) {
	r := bytes.NewReader(raw)
	t := &tartape.Track{}

	var err error
	if t.ArcPath, err = readString(r); err != nil {
		return nil, err
	}
	if t.RelPath, err = readString(r); err != nil {
		return nil, err
	}
	if t.Size, err = readUint64(r); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &t.Mtime); err != nil {
		return nil, tartape.NewInternalError("decoding track mtime: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, &t.Mode); err != nil {
		return nil, tartape.NewInternalError("decoding track mode: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, &t.Uid); err != nil {
		return nil, tartape.NewInternalError("decoding track uid: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, &t.Gid); err != nil {
		return nil, tartape.NewInternalError("decoding track gid: %v", err)
	}
	if t.Uname, err = readString(r); err != nil {
		return nil, err
	}
	if t.Gname, err = readString(r); err != nil {
		return nil, err
	}
	if t.IsDir, err = readBool(r); err != nil {
		return nil, err
	}
	if t.IsSymlink, err = readBool(r); err != nil {
		return nil, err
	}
	if t.Linkname, err = readString(r); err != nil {
		return nil, err
	}
	if t.StartOffset, err = readUint64(r); err != nil {
		return nil, err
	}
	if t.EndOffset, err = readUint64(r); err != nil {
		return nil, err
	}

	return t, nil
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", tartape.NewInternalError("decoding string length: %v", err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", tartape.NewInternalError("decoding string body: %v", err)
	}
	return string(b), nil
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	binary.Write(buf, binary.BigEndian, v)
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, tartape.NewInternalError("decoding uint64: %v", err)
	}
	return v, nil
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, tartape.NewInternalError("decoding bool: %v", err)
	}
	return b != 0, nil
}
