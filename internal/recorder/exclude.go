package recorder

import "path/filepath"

// shouldExclude applies, in order: the metadata directory itself (always
// excluded, regardless of caller configuration), tartape.DefaultExcludes
// (literal basenames or filepath.Match globs), then the caller's
// ExcludeFunc if one was supplied. relPath and base are both
// forward-slash and basename respectively, relative to the tape root.
func (r *Recorder) shouldExclude(relPath, base string) bool {
	if relPath == metadataDirRelPath || hasMetadataDirPrefix(relPath) {
		return true
	}
	for _, pattern := range defaultExcludes {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	if r.cfg.Exclude != nil && r.cfg.Exclude(relPath) {
		return true
	}
	return false
}

func hasMetadataDirPrefix(relPath string) bool {
	return len(relPath) > len(metadataDirRelPath) &&
		relPath[:len(metadataDirRelPath)] == metadataDirRelPath &&
		relPath[len(metadataDirRelPath)] == '/'
}
