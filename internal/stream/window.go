package stream

// window implements the byte-window arithmetic used uniformly for
// every region of the stream — header, content, padding, footer (spec
// §4.6). Given a region starting at blockStart and running blockLength
// bytes, and globalSkip (the resume point expressed in stream-global
// coordinates), it returns localSkip (how many bytes of the region
// itself to skip) and n (how many bytes of the region to actually
// send). A region entirely before globalSkip sends nothing; a region
// entirely after it sends in full.
func window(blockStart, blockLength, globalSkip uint64) (localSkip, n uint64) {
	regionEnd := blockStart + blockLength
	switch {
	case globalSkip <= blockStart:
		return 0, blockLength
	case globalSkip >= regionEnd:
		return blockLength, 0
	default:
		localSkip = globalSkip - blockStart
		return localSkip, blockLength - localSkip
	}
}
