package stream

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPlaylistWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.m3u8")
	body := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:4
#EXT-X-MEDIA-SEQUENCE:42
#EXTINF:4.000000,
index_00042.ts
#EXTINF:4.000000,
index_00043.ts
#EXTINF:4.000000,
index_00044.ts
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	win, err := readPlaylistWindow(path)
	require.NoError(t, err)

	assert.Equal(t, 3, win.Segments)
	assert.Equal(t, 42, win.MediaSequence)
}

func TestReadPlaylistWindow_MissingFile(t *testing.T) {
	_, err := readPlaylistWindow(filepath.Join(t.TempDir(), "absent.m3u8"))
	assert.Error(t, err)
}

func TestReadPlaylistWindow_NotAMediaPlaylist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.m3u8")
	body := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=400000,RESOLUTION=426x240
index_low.m3u8
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := readPlaylistWindow(path)
	assert.Error(t, err)
}
