package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaylistSize(t *testing.T) {
	tests := []struct {
		name           string
		keepMinutes    int
		segmentSeconds int
		want           int
	}{
		{"one minute of 4s segments", 1, 4, 15},
		{"ten minutes of 4s segments", 10, 4, 150},
		{"window smaller than two segments clamps to 2", 1, 60, 2},
		{"window of exactly one segment clamps to 2", 1, 45, 2},
		{"zero minutes is unbounded", 0, 4, 0},
		{"zero segment duration is unbounded", 5, 0, 0},
		{"truncating division", 1, 7, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlaylistSize(tt.keepMinutes, tt.segmentSeconds))
		})
	}
}
