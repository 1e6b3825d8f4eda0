package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDescriptor_Classification(t *testing.T) {
	tests := []struct {
		name string
		url  string
		live bool
	}{
		{"rtsp camera", "rtsp://cam.local:554/ch0", true},
		{"rtsps camera", "rtsps://cam.local/ch0", true},
		{"rtmp ingest", "rtmp://origin/live/key", true},
		{"srt feed", "srt://10.0.0.2:9000", true},
		{"udp multicast", "udp://239.0.0.1:1234", true},
		{"http hls playlist", "http://origin/live/index.m3u8", true},
		{"https hls playlist uppercase", "https://origin/live/INDEX.M3U8", true},
		{"http mp4 download", "https://origin/vod/movie.mp4", false},
		{"local file", "/var/media/recording.mkv", false},
		{"relative file", "recording.ts", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDescriptor(tt.url, false)
			assert.Equal(t, tt.live, d.Live)
			assert.Equal(t, tt.url, d.URL)
		})
	}
}

func TestNewDescriptor_ForceTCP(t *testing.T) {
	d := NewDescriptor("rtsp://cam.local/ch0", true)
	assert.True(t, d.ForceTCP)
}
