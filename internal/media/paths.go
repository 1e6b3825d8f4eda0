package media

import (
	"os"
	"path/filepath"
	"strings"
)

// NormalizeOutputPath turns the configured output path into a concrete
// playlist path. A directory (trailing separator or an existing directory
// on disk) gets an "index.m3u8" inside it; a path without an extension
// gets ".m3u8" appended; anything else is used as-is.
func NormalizeOutputPath(p string) string {
	if strings.HasSuffix(p, "/") || strings.HasSuffix(p, string(os.PathSeparator)) {
		return filepath.Join(p, "index.m3u8")
	}
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		return filepath.Join(p, "index.m3u8")
	}

	base := filepath.Base(p)
	if !strings.Contains(base, ".") {
		return p + ".m3u8"
	}
	return p
}

// VariantPlaylistPath derives a rendition's playlist path from the
// normalized base playlist: "<dir>/index.m3u8" + "low" becomes
// "<dir>/index_low.m3u8".
func VariantPlaylistPath(base, name string) string {
	stem, ext := splitExt(base)
	return stem + "_" + name + ext
}

// SegmentPattern derives the numbered segment filename pattern the
// segmenter writes next to a playlist: "<dir>/index.m3u8" becomes
// "<dir>/index_%05d.ts".
func SegmentPattern(playlist string) string {
	stem, _ := splitExt(playlist)
	return stem + "_%05d.ts"
}

func splitExt(p string) (stem, ext string) {
	ext = filepath.Ext(p)
	return strings.TrimSuffix(p, ext), ext
}
