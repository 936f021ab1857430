package tartape

// ExcludeFunc decides whether a path (relative to the tape's root)
// should be skipped during discovery.
type ExcludeFunc func(relPath string) bool

// RecorderConfig holds Recorder construction options. Use
// NewRecorderConfig with RecorderOption values to build one; the zero
// value is not ready to use.
type RecorderConfig struct {
	Anonymize bool
	Exclude   ExcludeFunc
}

// RecorderOption configures a RecorderConfig.
type RecorderOption func(*RecorderConfig)

// WithAnonymize overrides the default (true) anonymization policy.
func WithAnonymize(anonymize bool) RecorderOption {
	return func(c *RecorderConfig) { c.Anonymize = anonymize }
}

// WithExclude installs a predicate over paths relative to the tape's
// root (see ExcludeFunc). Only the predicate form is accepted; no
// glob-string or pattern-list form of exclusion is provided.
func WithExclude(fn ExcludeFunc) RecorderOption {
	return func(c *RecorderConfig) { c.Exclude = fn }
}

// NewRecorderConfig applies opts over the documented defaults
// (anonymize=true, no additional exclusions beyond DefaultExcludes and
// the metadata directory).
func NewRecorderConfig(opts ...RecorderOption) RecorderConfig {
	c := RecorderConfig{Anonymize: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// PlayConfig holds Player.Play options.
type PlayConfig struct {
	StartOffset uint64
	ChunkSize   int
	FastVerify  bool
}

// PlayOption configures a PlayConfig.
type PlayOption func(*PlayConfig)

// WithStartOffset resumes playback at the given byte offset (0 ≤ n <
// total_size).
func WithStartOffset(offset uint64) PlayOption {
	return func(c *PlayConfig) { c.StartOffset = offset }
}

// WithChunkSize caps the number of content bytes per FILE_DATA event.
func WithChunkSize(n int) PlayOption {
	return func(c *PlayConfig) { c.ChunkSize = n }
}

// WithFastVerify selects spot-check (true, the default) or full verify
// (false) as the pre-flight integrity check.
func WithFastVerify(fast bool) PlayOption {
	return func(c *PlayConfig) { c.FastVerify = fast }
}

// NewPlayConfig applies opts over the documented defaults
// (start_offset=0, chunk_size=64KiB, fast_verify=true).
func NewPlayConfig(opts ...PlayOption) PlayConfig {
	c := PlayConfig{ChunkSize: DefaultChunkSize, FastVerify: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
