package stream

import (
	"fmt"
	"strconv"
	"strings"
)

// Rendition describes one re-encoded output quality.
type Rendition struct {
	Name    string
	Width   int
	Height  int
	Bitrate int // video bits per second
}

// DefaultLadder is the built-in quality set.
func DefaultLadder() []Rendition {
	return []Rendition{
		{Name: "low", Width: 426, Height: 240, Bitrate: 400_000},
		{Name: "mid", Width: 854, Height: 480, Bitrate: 1_200_000},
		{Name: "high", Width: 1280, Height: 720, Bitrate: 2_500_000},
	}
}

// ParseLadder parses "name:WxH:bitrate" entries, e.g.
// "low:426x240:400000". An empty slice yields the default ladder.
func ParseLadder(entries []string) ([]Rendition, error) {
	if len(entries) == 0 {
		return DefaultLadder(), nil
	}

	renditions := make([]Rendition, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		r, err := parseRendition(entry)
		if err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate rendition name %q", r.Name)
		}
		seen[r.Name] = true
		renditions = append(renditions, r)
	}
	return renditions, nil
}

func parseRendition(entry string) (Rendition, error) {
	parts := strings.Split(strings.TrimSpace(entry), ":")
	if len(parts) != 3 {
		return Rendition{}, fmt.Errorf("rendition %q: want name:WxH:bitrate", entry)
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return Rendition{}, fmt.Errorf("rendition %q: empty name", entry)
	}

	dims := strings.SplitN(parts[1], "x", 2)
	if len(dims) != 2 {
		return Rendition{}, fmt.Errorf("rendition %q: dimensions must be WxH", entry)
	}
	width, err := strconv.Atoi(dims[0])
	if err != nil || width <= 0 {
		return Rendition{}, fmt.Errorf("rendition %q: invalid width %q", entry, dims[0])
	}
	height, err := strconv.Atoi(dims[1])
	if err != nil || height <= 0 {
		return Rendition{}, fmt.Errorf("rendition %q: invalid height %q", entry, dims[1])
	}

	bitrate, err := strconv.Atoi(parts[2])
	if err != nil || bitrate <= 0 {
		return Rendition{}, fmt.Errorf("rendition %q: invalid bitrate %q", entry, parts[2])
	}

	return Rendition{Name: name, Width: width, Height: height, Bitrate: bitrate}, nil
}
