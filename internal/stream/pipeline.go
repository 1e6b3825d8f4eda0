package stream

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/camstreamd/camstreamd/internal/media"
)

// pipeline fans one source packet stream out to the passthrough output
// and, for video, through a single decode into every rendition encoder.
// Everything runs on the calling goroutine: each decoded frame is scaled
// and encoded into every rendition sequentially before the next packet is
// read, so all outputs advance in lockstep.
type pipeline struct {
	in    *input
	pass  *passthroughOutput
	rends []*renditionOutput

	frame    *astiav.Frame
	audioDup *astiav.Packet
	clock    media.FallbackClock

	packets uint64
	frames  uint64
}

func newPipeline(in *input, pass *passthroughOutput, rends []*renditionOutput) *pipeline {
	return &pipeline{
		in:       in,
		pass:     pass,
		rends:    rends,
		frame:    astiav.AllocFrame(),
		audioDup: astiav.AllocPacket(),
	}
}

// process consumes one packet read from the source. Rendition work runs
// first on untouched copies; the passthrough write runs last because it
// mutates the packet's timing in place.
func (p *pipeline) process(pkt *astiav.Packet) error {
	p.packets++

	switch pkt.StreamIndex() {
	case p.in.video.Index():
		if err := p.in.decoder.SendPacket(pkt); err != nil {
			return fmt.Errorf("sending packet to decoder: %w", err)
		}
		if err := p.drainDecoder(); err != nil {
			return err
		}
	case p.audioIndex():
		if err := p.fanOutAudio(pkt); err != nil {
			return err
		}
	}

	return p.pass.writePacket(pkt)
}

func (p *pipeline) audioIndex() int {
	if p.in.audio == nil {
		return -1
	}
	return p.in.audio.Index()
}

// drainDecoder pulls every frame the decoder has ready and encodes it
// into each rendition.
func (p *pipeline) drainDecoder() error {
	srcTB := p.in.video.TimeBase()
	for {
		p.frame.Unref()
		if err := p.in.decoder.ReceiveFrame(p.frame); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("receiving frame from decoder: %w", err)
		}
		p.frames++

		// Sources that never timestamp their frames fall back to a frame
		// counter shared by every rendition, one tick per frame in the
		// encoder time base.
		pts := p.frame.Pts()
		synthetic := pts == media.NoTimestamp
		if synthetic {
			pts = p.clock.Tick()
		}

		for _, r := range p.rends {
			if err := r.writeFrame(p.frame, pts, srcTB, synthetic); err != nil {
				return fmt.Errorf("rendition %s: %w", r.spec.Name, err)
			}
		}
	}
}

// fanOutAudio duplicates the audio packet into every rendition that
// carries an audio stream.
func (p *pipeline) fanOutAudio(pkt *astiav.Packet) error {
	for _, r := range p.rends {
		if r.astream == nil {
			continue
		}
		p.audioDup.Unref()
		if err := p.audioDup.Ref(pkt); err != nil {
			return fmt.Errorf("duplicating audio packet: %w", err)
		}
		if err := r.writeAudio(p.audioDup); err != nil {
			return fmt.Errorf("rendition %s: %w", r.spec.Name, err)
		}
	}
	return nil
}

// flush drains the decoder's buffered frames into the renditions, then
// flushes every rendition encoder.
func (p *pipeline) flush() error {
	if err := p.in.decoder.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		return fmt.Errorf("flushing decoder: %w", err)
	}
	if err := p.drainDecoder(); err != nil {
		return err
	}
	for _, r := range p.rends {
		if err := r.flush(); err != nil {
			return fmt.Errorf("rendition %s: %w", r.spec.Name, err)
		}
	}
	return nil
}

func (p *pipeline) free() {
	if p.frame != nil {
		p.frame.Free()
		p.frame = nil
	}
	if p.audioDup != nil {
		p.audioDup.Free()
		p.audioDup = nil
	}
}
