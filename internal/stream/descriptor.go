// Package stream implements the camstreamd session engine: input
// acquisition, the decode/fan-out pipeline, the passthrough and rendition
// HLS outputs, and the reconnecting session controller that drives them.
package stream

import (
	"net/url"
	"strings"
)

// Descriptor describes the single source this process consumes. It is
// immutable for the process lifetime.
type Descriptor struct {
	URL      string
	ForceTCP bool
	Live     bool
}

// NewDescriptor classifies the source address. Live sources get forced
// reconnect behavior and EOF-is-recoverable handling; finite sources
// (plain files, VOD over HTTP) terminate cleanly at end-of-stream.
func NewDescriptor(rawURL string, forceTCP bool) Descriptor {
	return Descriptor{
		URL:      rawURL,
		ForceTCP: forceTCP,
		Live:     isLiveSource(rawURL),
	}
}

// liveSchemes are transports that only ever carry live feeds.
var liveSchemes = map[string]bool{
	"rtsp":  true,
	"rtsps": true,
	"rtp":   true,
	"udp":   true,
	"rtmp":  true,
	"rtmps": true,
	"srt":   true,
}

func isLiveSource(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		// Not a URL: local file input.
		return false
	}
	if liveSchemes[strings.ToLower(u.Scheme)] {
		return true
	}
	// An HLS playlist over HTTP is treated as live; any other HTTP object
	// is a finite download.
	if u.Scheme == "http" || u.Scheme == "https" {
		return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
	}
	return false
}
