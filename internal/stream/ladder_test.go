package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLadder_Defaults(t *testing.T) {
	ladder, err := ParseLadder(nil)
	require.NoError(t, err)
	require.Len(t, ladder, 3)

	assert.Equal(t, Rendition{Name: "low", Width: 426, Height: 240, Bitrate: 400_000}, ladder[0])
	assert.Equal(t, Rendition{Name: "mid", Width: 854, Height: 480, Bitrate: 1_200_000}, ladder[1])
	assert.Equal(t, Rendition{Name: "high", Width: 1280, Height: 720, Bitrate: 2_500_000}, ladder[2])
}

func TestParseLadder_Custom(t *testing.T) {
	ladder, err := ParseLadder([]string{"sd:640x360:800000", "hd:1920x1080:4500000"})
	require.NoError(t, err)
	require.Len(t, ladder, 2)

	assert.Equal(t, Rendition{Name: "sd", Width: 640, Height: 360, Bitrate: 800_000}, ladder[0])
	assert.Equal(t, Rendition{Name: "hd", Width: 1920, Height: 1080, Bitrate: 4_500_000}, ladder[1])
}

func TestParseLadder_Errors(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"missing fields", "low:426x240"},
		{"empty name", ":426x240:400000"},
		{"bad dimensions", "low:426:400000"},
		{"zero width", "low:0x240:400000"},
		{"negative height", "low:426x-240:400000"},
		{"bad bitrate", "low:426x240:fast"},
		{"zero bitrate", "low:426x240:0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLadder([]string{tt.entry})
			assert.Error(t, err)
		})
	}
}

func TestParseLadder_DuplicateName(t *testing.T) {
	_, err := ParseLadder([]string{"low:426x240:400000", "low:640x360:800000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}
