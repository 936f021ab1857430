// Package tartape implements a deterministic, resumable,
// integrity-checked TAR archive engine.
//
// Given a directory tree, tartape produces a standards-compliant
// USTAR/GNU byte stream where every byte's position is known before the
// stream starts. Recording a directory persists a compact inventory (the
// "tape") under <directory>/.tartape/index.db; playing a tape replays
// the archive, in full or from any byte offset, aborting if the
// filesystem has drifted from the recorded inventory.
package tartape

const (
	// BlockSize is the USTAR header/padding block size.
	BlockSize = 512

	// FooterSize is the length of the two all-zero blocks that terminate
	// every TAR stream.
	FooterSize = 1024

	// DefaultChunkSize is the default maximum number of content bytes
	// per FILE_DATA event.
	DefaultChunkSize = 64 * 1024

	// MetadataDirName is the directory, relative to the tape's root,
	// that holds the inventory store.
	MetadataDirName = ".tartape"

	// MetadataFileName is the inventory store's file name inside
	// MetadataDirName.
	MetadataFileName = "index.db"
)

// DefaultExcludes are skipped during discovery unconditionally, in
// addition to the metadata directory itself and any caller-supplied
// exclusion rule. These mirror housekeeping files that have no business
// being archived regardless of what a caller asks for.
var DefaultExcludes = []string{
	".DS_Store",
	"Thumbs.db",
	"__pycache__",
	"*.db-wal",
	"*.db-shm",
	"*.sock",
}

// PaddedSize rounds n up to the next multiple of BlockSize.
func PaddedSize(n uint64) uint64 {
	rem := n % BlockSize
	if rem == 0 {
		return n
	}
	return n + (BlockSize - rem)
}
