package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyTiming_Repair(t *testing.T) {
	tests := []struct {
		name string
		in   []PacketTiming
		want []PacketTiming
	}{
		{
			name: "well formed sequence passes through",
			in: []PacketTiming{
				{PTS: 0, DTS: 0, Duration: 10},
				{PTS: 10, DTS: 10, Duration: 10},
				{PTS: 20, DTS: 20, Duration: 10},
			},
			want: []PacketTiming{
				{PTS: 0, DTS: 0, Duration: 10},
				{PTS: 10, DTS: 10, Duration: 10},
				{PTS: 20, DTS: 20, Duration: 10},
			},
		},
		{
			name: "both timestamps missing synthesized from next",
			in: []PacketTiming{
				{PTS: 0, DTS: 0, Duration: 10},
				{PTS: NoTimestamp, DTS: NoTimestamp, Duration: 10},
				{PTS: NoTimestamp, DTS: NoTimestamp, Duration: 10},
			},
			want: []PacketTiming{
				{PTS: 0, DTS: 0, Duration: 10},
				{PTS: 10, DTS: 10, Duration: 10},
				{PTS: 20, DTS: 20, Duration: 10},
			},
		},
		{
			name: "missing dts copied from pts",
			in: []PacketTiming{
				{PTS: 100, DTS: NoTimestamp, Duration: 10},
			},
			want: []PacketTiming{
				{PTS: 100, DTS: 100, Duration: 10},
			},
		},
		{
			name: "missing pts copied from dts",
			in: []PacketTiming{
				{PTS: NoTimestamp, DTS: 100, Duration: 10},
			},
			want: []PacketTiming{
				{PTS: 100, DTS: 100, Duration: 10},
			},
		},
		{
			name: "dts regression clamped forward",
			in: []PacketTiming{
				{PTS: 50, DTS: 50, Duration: 10},
				{PTS: 30, DTS: 30, Duration: 10},
			},
			want: []PacketTiming{
				{PTS: 50, DTS: 50, Duration: 10},
				{PTS: 60, DTS: 60, Duration: 10},
			},
		},
		{
			name: "pts behind dts raised to dts",
			in: []PacketTiming{
				{PTS: 5, DTS: 20, Duration: 10},
			},
			want: []PacketTiming{
				{PTS: 20, DTS: 20, Duration: 10},
			},
		},
		{
			name: "zero duration advances by one tick",
			in: []PacketTiming{
				{PTS: 0, DTS: 0, Duration: 0},
				{PTS: 0, DTS: 0, Duration: 0},
			},
			want: []PacketTiming{
				{PTS: 0, DTS: 0, Duration: 0},
				{PTS: 1, DTS: 1, Duration: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ct CopyTiming
			for i := range tt.in {
				pkt := tt.in[i]
				ct.Repair(&pkt)
				assert.Equal(t, tt.want[i], pkt, "packet %d", i)
			}
		})
	}
}

// Feed a jittery sequence and assert the output invariants hold
// regardless of input shape.
func TestCopyTiming_Monotonicity(t *testing.T) {
	in := []PacketTiming{
		{PTS: 100, DTS: 90, Duration: 33},
		{PTS: NoTimestamp, DTS: NoTimestamp, Duration: 0},
		{PTS: 10, DTS: 5, Duration: 33},
		{PTS: 400, DTS: NoTimestamp, Duration: 33},
		{PTS: NoTimestamp, DTS: 200, Duration: 0},
		{PTS: 1, DTS: 1, Duration: 33},
	}

	var ct CopyTiming
	lastDTS := int64(-1)
	for i := range in {
		pkt := in[i]
		ct.Repair(&pkt)

		assert.NotEqual(t, NoTimestamp, pkt.PTS, "packet %d pts", i)
		assert.NotEqual(t, NoTimestamp, pkt.DTS, "packet %d dts", i)
		assert.GreaterOrEqual(t, pkt.PTS, pkt.DTS, "packet %d pts >= dts", i)
		assert.Greater(t, pkt.DTS, lastDTS, "packet %d dts advances", i)
		lastDTS = pkt.DTS
	}
}

func TestFallbackClock(t *testing.T) {
	var clk FallbackClock
	assert.Equal(t, int64(0), clk.Tick())
	assert.Equal(t, int64(1), clk.Tick())
	assert.Equal(t, int64(2), clk.Tick())
}
