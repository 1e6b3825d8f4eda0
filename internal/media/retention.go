package media

// PlaylistSize converts a retention window in minutes and a segment
// duration in seconds into the maximum number of segments the playlist
// may hold. A playlist needs at least two segments to be playable, so
// the result is clamped upward. Zero for either input means the window
// is unbounded and 0 is returned (the muxer keeps everything).
func PlaylistSize(keepMinutes, segmentSeconds int) int {
	if keepMinutes <= 0 || segmentSeconds <= 0 {
		return 0
	}
	n := keepMinutes * 60 / segmentSeconds
	if n < 2 {
		n = 2
	}
	return n
}
