// Package stream implements the Streaming Engine (spec §4.6): a lazy,
// resumable producer of the TAR byte stream, built as a single
// producer goroutine feeding a channel of Events rather than
// materializing the archive. Every region — header, content, padding,
// the two-block footer — goes through the same byte-window arithmetic
// (window.go), which is what makes resuming mid-file a matter of
// arithmetic rather than special-casing.
package stream

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"hash"
	"path/filepath"

	"golang.org/x/exp/mmap"
	"golang.org/x/xerrors"

	"github.com/distr1/tartape"
	"github.com/distr1/tartape/internal/header"
)

func hexDigest(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// Emit starts a producer goroutine that walks tracks in order and sends
// Events for everything from startOffset through totalSize (the tape's
// full size, footer included). The returned channel is closed when the
// producer is done, successfully or not; the error channel then holds
// exactly one value (nil on success) and is safe to receive from
// without blocking. Canceling ctx stops the producer promptly, and its
// error channel yields ctx.Err().
func Emit(ctx context.Context, rootDir string, tracks []*tartape.Track, totalSize uint64, startOffset uint64, chunkSize int) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		errc <- run(ctx, rootDir, tracks, totalSize, startOffset, chunkSize, events)
	}()

	return events, errc
}

func run(ctx context.Context, rootDir string, tracks []*tartape.Track, totalSize, startOffset uint64, chunkSize int, events chan<- Event) error {
	if chunkSize <= 0 {
		chunkSize = tartape.DefaultChunkSize
	}

	for _, track := range tracks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if track.EndOffset <= startOffset {
			continue // entirely before the resume point
		}

		if err := emitTrack(ctx, rootDir, track, startOffset, chunkSize, events); err != nil {
			return err
		}
	}

	footerStart := totalSize - tartape.FooterSize
	localSkip, n := window(footerStart, tartape.FooterSize, startOffset)
	if n > 0 {
		if err := send(ctx, events, Event{Kind: Footer, Bytes: make([]byte, n)}); err != nil {
			return err
		}
		_ = localSkip // the footer is all zero bytes; no content to offset into
	}

	return send(ctx, events, Event{Kind: Completed})
}

func emitTrack(ctx context.Context, rootDir string, track *tartape.Track, startOffset uint64, chunkSize int, events chan<- Event) error {
	absPath := filepath.Join(rootDir, track.RelPath)

	if err := CheckIntegrity(absPath, track); err != nil {
		return err
	}

	headerSkip, headerLen := window(track.StartOffset, tartape.BlockSize, startOffset)
	if headerLen > 0 {
		buf, err := header.Build(track)
		if err != nil {
			return err
		}
		if err := send(ctx, events, Event{Kind: FileHeader, ArcPath: track.ArcPath, Bytes: buf[headerSkip : headerSkip+headerLen]}); err != nil {
			return err
		}
	}

	var md5Sum string
	if track.HasContent() {
		var err error
		md5Sum, err = emitContent(ctx, absPath, track, startOffset, chunkSize, events)
		if err != nil {
			return err
		}
	}

	paddingStart := track.ContentEndOffset()
	paddingLen := tartape.PaddedSize(track.ContentSize()) - track.ContentSize()
	_, n := window(paddingStart, paddingLen, startOffset)
	if n > 0 {
		if err := send(ctx, events, Event{Kind: FileData, ArcPath: track.ArcPath, Bytes: make([]byte, n)}); err != nil {
			return err
		}
	}

	return send(ctx, events, Event{Kind: FileEnd, ArcPath: track.ArcPath, MD5Sum: md5Sum})
}

// emitContent streams a track's content region in chunkSize pieces,
// returning the content's hex MD5 digest if (and only if) the entire
// region was read starting from its first byte — resuming mid-content
// means the digest would be meaningless, so it is left empty.
func emitContent(ctx context.Context, absPath string, track *tartape.Track, startOffset uint64, chunkSize int, events chan<- Event) (md5Sum string, err error) {
	contentStart := track.HeaderEndOffset()
	localSkip, n := window(contentStart, track.ContentSize(), startOffset)
	if n == 0 {
		return "", nil
	}

	ra, err := mmap.Open(absPath)
	if err != nil {
		return "", xerrors.Errorf("mmapping %q: %w", absPath, err)
	}
	defer ra.Close()

	var h = md5.New()
	computeDigest := localSkip == 0

	remaining := n
	off := int64(localSkip)
	for remaining > 0 {
		want := chunkSize
		if uint64(want) > remaining {
			want = int(remaining)
		}
		buf := make([]byte, want)
		read, rerr := ra.ReadAt(buf, off)
		if read < want {
			return "", tartape.NewIntegrityError("%q shrunk mid-read: expected %d more bytes at offset %d, got %d", track.ArcPath, want, off, read)
		}
		if computeDigest {
			h.Write(buf)
		}
		if err := send(ctx, events, Event{Kind: FileData, ArcPath: track.ArcPath, Bytes: buf}); err != nil {
			return "", err
		}
		off += int64(read)
		remaining -= uint64(read)
		if rerr != nil && remaining > 0 {
			return "", tartape.NewIntegrityError("%q: unexpected read error mid-content: %v", track.ArcPath, rerr)
		}
	}

	if computeDigest {
		// A read of one extra byte past the declared size succeeding
		// means the file grew after CheckIntegrity's pre-flight probe
		// but before this read (spec §4.6 "file grew" TOCTOU case).
		var extra [1]byte
		if read, _ := ra.ReadAt(extra[:], off); read > 0 {
			return "", tartape.NewIntegrityError("%q grew during read: content extends past the recorded %d bytes", track.ArcPath, track.Size)
		}
		return hexDigest(h), nil
	}
	return "", nil
}

func send(ctx context.Context, events chan<- Event, e Event) error {
	select {
	case events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
