// Package media holds the pure stream-math pieces of camstreamd: packet
// timestamp repair, HLS retention arithmetic, and output path derivation.
// Nothing here touches libav, so it is all unit-testable.
package media

// NoTimestamp mirrors libav's AV_NOPTS_VALUE sentinel for missing PTS/DTS.
const NoTimestamp = int64(-0x8000000000000000)

// PacketTiming carries the mutable timing fields of one packet, already
// rescaled into the destination stream's time base.
type PacketTiming struct {
	PTS      int64
	DTS      int64
	Duration int64
}

// CopyTiming repairs the timestamp sequence of one output stream on a
// passthrough path. Live camera feeds routinely deliver packets with
// missing timestamps, DTS regressions after network hiccups, and PTS
// running behind DTS; muxers reject all three. One CopyTiming instance
// tracks one output stream.
type CopyTiming struct {
	next int64 // expected DTS of the next packet
}

// Repair rewrites pkt's timing fields in place so the resulting sequence
// is valid for muxing: DTS never running backwards and PTS never behind DTS.
func (c *CopyTiming) Repair(pkt *PacketTiming) {
	// Fill in missing values first.
	switch {
	case pkt.DTS == NoTimestamp && pkt.PTS == NoTimestamp:
		pkt.DTS = c.next
		pkt.PTS = c.next
	case pkt.DTS == NoTimestamp:
		pkt.DTS = pkt.PTS
	case pkt.PTS == NoTimestamp:
		pkt.PTS = pkt.DTS
	}

	// DTS must not run backwards relative to what we already emitted.
	if pkt.DTS < c.next {
		pkt.DTS = c.next
	}

	// A frame cannot be presented before it is decoded.
	if pkt.PTS < pkt.DTS {
		pkt.PTS = pkt.DTS
	}

	advance := pkt.Duration
	if advance <= 0 {
		advance = 1
	}
	c.next = pkt.DTS + advance
}

// Next reports the expected DTS of the next packet. Only meaningful after
// the first Repair call.
func (c *CopyTiming) Next() int64 {
	return c.next
}

// FallbackClock hands out synthetic frame PTS values when the decoder
// produces frames without presentation timestamps. All renditions share
// one clock so their variants stay aligned.
type FallbackClock struct {
	n int64
}

// Tick returns the next synthetic PTS.
func (f *FallbackClock) Tick() int64 {
	v := f.n
	f.n++
	return v
}
