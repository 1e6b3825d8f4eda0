package stream

import (
	"fmt"
	"os"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
)

// playlistWindow summarizes the on-disk state of one live playlist for
// progress reporting.
type playlistWindow struct {
	Segments      int
	MediaSequence int
}

// readPlaylistWindow parses the playlist at path. The file is rewritten
// by the muxer on every segment boundary, so a transient read or parse
// failure is reported as an error and the caller just skips the stat.
func readPlaylistWindow(path string) (playlistWindow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return playlistWindow{}, err
	}

	pl, err := playlist.Unmarshal(data)
	if err != nil {
		return playlistWindow{}, fmt.Errorf("parsing playlist: %w", err)
	}
	m, ok := pl.(*playlist.Media)
	if !ok {
		return playlistWindow{}, fmt.Errorf("%s is not a media playlist", path)
	}
	return playlistWindow{
		Segments:      len(m.Segments),
		MediaSequence: m.MediaSequence,
	}, nil
}
