package stream

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/asticode/go-astiav"
	"github.com/camstreamd/camstreamd/internal/media"
)

// hlsSettings parameterizes one segmented playlist writer.
type hlsSettings struct {
	playlist       string
	segmentSeconds int
	keepMinutes    int
}

// hlsOptions fills the muxer dictionary implementing sliding-window
// retention: segment duration, maximum playlist size, and eviction of
// segments that fall out of the window.
func (s hlsSettings) hlsOptions(opts *astiav.Dictionary) {
	segs := s.segmentSeconds
	if segs > 0 {
		_ = opts.Set("hls_time", strconv.Itoa(segs), 0)
	} else {
		segs = 2 // the muxer's own hls_time default
	}
	// The muxer defaults to a 5-entry playlist; 0 keeps every segment.
	_ = opts.Set("hls_list_size", strconv.Itoa(media.PlaylistSize(s.keepMinutes, segs)), 0)
	_ = opts.Set("hls_flags", "delete_segments", 0)
	_ = opts.Set("hls_segment_filename", media.SegmentPattern(s.playlist), 0)
}

// openPlaylistMuxer allocates an hls muxer context for the playlist path
// and opens its IO unless the muxer manages its own files.
func openPlaylistMuxer(playlist string) (*astiav.FormatContext, *astiav.IOContext, error) {
	oc, err := astiav.AllocOutputFormatContext(nil, "hls", playlist)
	if err != nil {
		return nil, nil, fmt.Errorf("allocating output context: %w", err)
	}
	if oc == nil {
		return nil, nil, errors.New("allocating output context")
	}

	var pb *astiav.IOContext
	if !oc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		pb, err = astiav.OpenIOContext(playlist, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
		if err != nil {
			oc.Free()
			return nil, nil, fmt.Errorf("opening %s: %w", playlist, err)
		}
		oc.SetPb(pb)
	}
	return oc, pb, nil
}

func closeMuxer(oc *astiav.FormatContext, pb *astiav.IOContext) {
	if pb != nil {
		_ = pb.Close()
		pb.Free()
	}
	if oc != nil {
		oc.Free()
	}
}

// repairAndWrite applies copy-timing repair to pkt (already rescaled into
// the output stream's time base) and hands it to the muxer.
func repairAndWrite(oc *astiav.FormatContext, ct *media.CopyTiming, pkt *astiav.Packet) error {
	timing := media.PacketTiming{PTS: pkt.Pts(), DTS: pkt.Dts(), Duration: pkt.Duration()}
	ct.Repair(&timing)
	pkt.SetPts(timing.PTS)
	pkt.SetDts(timing.DTS)
	pkt.SetPos(-1)
	return oc.WriteInterleavedFrame(pkt)
}

// passthroughOutput remuxes every source stream 1:1 into its own HLS
// playlist. No decoding happens on this path.
type passthroughOutput struct {
	oc        *astiav.FormatContext
	pb        *astiav.IOContext
	streamMap map[int]*astiav.Stream    // source index -> output stream
	timing    map[int]*media.CopyTiming // source index -> repair state
	srcTB     map[int]astiav.Rational   // source index -> source time base
	written   uint64
}

// newPassthroughOutput builds the stream table as a copy of every source
// stream's codec parameters and writes the container header.
func newPassthroughOutput(in *input, settings hlsSettings) (*passthroughOutput, error) {
	oc, pb, err := openPlaylistMuxer(settings.playlist)
	if err != nil {
		return nil, err
	}

	out := &passthroughOutput{
		oc:        oc,
		pb:        pb,
		streamMap: make(map[int]*astiav.Stream),
		timing:    make(map[int]*media.CopyTiming),
		srcTB:     make(map[int]astiav.Rational),
	}

	for _, is := range in.fc.Streams() {
		os := oc.NewStream(nil)
		if os == nil {
			out.free()
			return nil, errors.New("allocating output stream")
		}
		if err := is.CodecParameters().Copy(os.CodecParameters()); err != nil {
			out.free()
			return nil, fmt.Errorf("copying codec parameters: %w", err)
		}
		os.CodecParameters().SetCodecTag(0)
		os.SetTimeBase(is.TimeBase())

		out.streamMap[is.Index()] = os
		out.timing[is.Index()] = &media.CopyTiming{}
		out.srcTB[is.Index()] = is.TimeBase()
	}

	opts := astiav.NewDictionary()
	defer opts.Free()
	settings.hlsOptions(opts)
	if err := oc.WriteHeader(opts); err != nil {
		out.free()
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return out, nil
}

// writePacket rescales pkt into the output stream's time base, repairs
// its timestamps, and writes it. The packet is consumed: its timing
// fields are mutated, so callers must hand over their last reference.
func (o *passthroughOutput) writePacket(pkt *astiav.Packet) error {
	os, ok := o.streamMap[pkt.StreamIndex()]
	if !ok {
		return nil
	}
	srcIdx := pkt.StreamIndex()
	pkt.RescaleTs(o.srcTB[srcIdx], os.TimeBase())
	pkt.SetStreamIndex(os.Index())

	if err := repairAndWrite(o.oc, o.timing[srcIdx], pkt); err != nil {
		return fmt.Errorf("writing packet: %w", err)
	}
	o.written++
	return nil
}

func (o *passthroughOutput) close() error {
	err := o.oc.WriteTrailer()
	o.free()
	return err
}

func (o *passthroughOutput) free() {
	closeMuxer(o.oc, o.pb)
	o.oc = nil
	o.pb = nil
}

// renditionOutput re-encodes the source video into one quality level and
// optionally stream-copies the source audio alongside it.
type renditionOutput struct {
	spec    Rendition
	oc      *astiav.FormatContext
	pb      *astiav.IOContext
	vstream *astiav.Stream
	astream *astiav.Stream // nil when the source has no audio
	audioTB astiav.Rational
	aTiming media.CopyTiming

	enc     *astiav.CodecContext
	scaler  *astiav.SoftwareScaleContext
	scaled  *astiav.Frame
	encPkt  *astiav.Packet
	flushed bool
	encoded uint64
}

// newRenditionOutput opens the encoder sized to the rendition, builds the
// stream table from the encoder's parameters plus an optional copied
// audio stream, and writes the container header. The scaler is created
// lazily on the first decoded frame, once the real frame geometry is
// known.
func newRenditionOutput(in *input, spec Rendition, settings hlsSettings, preset, tune string, threads int) (*renditionOutput, error) {
	out := &renditionOutput{spec: spec}

	oc, pb, err := openPlaylistMuxer(settings.playlist)
	if err != nil {
		return nil, err
	}
	out.oc, out.pb = oc, pb

	if err := out.openEncoder(in, preset, tune, threads); err != nil {
		out.free()
		return nil, err
	}

	vs := oc.NewStream(nil)
	if vs == nil {
		out.free()
		return nil, errors.New("allocating video stream")
	}
	if err := out.enc.ToCodecParameters(vs.CodecParameters()); err != nil {
		out.free()
		return nil, fmt.Errorf("exporting encoder parameters: %w", err)
	}
	vs.SetTimeBase(out.enc.TimeBase())
	out.vstream = vs

	// Audio is always copied, never re-encoded.
	if in.audio != nil {
		as := oc.NewStream(nil)
		if as == nil {
			out.free()
			return nil, errors.New("allocating audio stream")
		}
		if err := in.audio.CodecParameters().Copy(as.CodecParameters()); err != nil {
			out.free()
			return nil, fmt.Errorf("copying audio parameters: %w", err)
		}
		as.CodecParameters().SetCodecTag(0)
		as.SetTimeBase(in.audio.TimeBase())
		out.astream = as
		out.audioTB = in.audio.TimeBase()
	}

	opts := astiav.NewDictionary()
	defer opts.Free()
	settings.hlsOptions(opts)
	if err := oc.WriteHeader(opts); err != nil {
		out.free()
		return nil, fmt.Errorf("writing header: %w", err)
	}

	out.scaled = astiav.AllocFrame()
	out.encPkt = astiav.AllocPacket()
	return out, nil
}

func (o *renditionOutput) openEncoder(in *input, preset, tune string, threads int) error {
	codec := astiav.FindEncoderByName("libx264")
	if codec == nil {
		codec = astiav.FindEncoder(astiav.CodecIDH264)
	}
	if codec == nil {
		return errors.New("no h264 encoder available")
	}

	ctx := astiav.AllocCodecContext(codec)
	if ctx == nil {
		return errors.New("allocating encoder context")
	}

	fps := in.frameRate()
	ctx.SetWidth(o.spec.Width)
	ctx.SetHeight(o.spec.Height)
	ctx.SetPixelFormat(astiav.PixelFormatYuv420P)
	ctx.SetTimeBase(astiav.NewRational(fps.Den(), fps.Num()))
	ctx.SetFramerate(fps)
	ctx.SetBitRate(int64(o.spec.Bitrate))
	// One keyframe per second so segment boundaries stay near hls_time.
	gop := fps.Num() / fps.Den()
	if gop <= 0 {
		gop = 25
	}
	ctx.SetGopSize(gop)
	ctx.SetMaxBFrames(0)
	if threads > 0 {
		ctx.SetThreadCount(threads)
	}
	if o.oc.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader) {
		ctx.SetFlags(ctx.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	opts := astiav.NewDictionary()
	defer opts.Free()
	if preset != "" {
		_ = opts.Set("preset", preset, 0)
	}
	if tune != "" {
		_ = opts.Set("tune", tune, 0)
	}

	if err := ctx.Open(codec, opts); err != nil {
		ctx.Free()
		return fmt.Errorf("opening h264 encoder: %w", err)
	}
	o.enc = ctx
	return nil
}

// ensureScaler builds the frame scaler on first use, sized from the
// actual decoded frame rather than the container's declared geometry.
func (o *renditionOutput) ensureScaler(f *astiav.Frame) error {
	if o.scaler != nil {
		return nil
	}
	scaler, err := astiav.CreateSoftwareScaleContext(
		f.Width(), f.Height(), f.PixelFormat(),
		o.enc.Width(), o.enc.Height(), o.enc.PixelFormat(),
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("creating scaler: %w", err)
	}
	o.scaler = scaler
	return nil
}

// writeFrame scales a decoded frame, stamps its presentation timestamp in
// the encoder's time base, and encodes it. pts is the frame timestamp in
// srcTB; when synthetic is true, pts is already a frame counter matching
// the encoder's one-tick-per-frame time base.
func (o *renditionOutput) writeFrame(f *astiav.Frame, pts int64, srcTB astiav.Rational, synthetic bool) error {
	if err := o.ensureScaler(f); err != nil {
		return err
	}

	o.scaled.Unref()
	if err := o.scaler.ScaleFrame(f, o.scaled); err != nil {
		return fmt.Errorf("scaling frame: %w", err)
	}
	if synthetic {
		o.scaled.SetPts(pts)
	} else {
		o.scaled.SetPts(astiav.RescaleQ(pts, srcTB, o.enc.TimeBase()))
	}
	o.scaled.SetPictureType(astiav.PictureTypeNone)

	if err := o.enc.SendFrame(o.scaled); err != nil {
		return fmt.Errorf("sending frame to encoder: %w", err)
	}
	return o.drainEncoder()
}

// writeAudio stream-copies one source audio packet. The packet is a
// private clone owned by this output.
func (o *renditionOutput) writeAudio(pkt *astiav.Packet) error {
	if o.astream == nil {
		return nil
	}
	pkt.RescaleTs(o.audioTB, o.astream.TimeBase())
	pkt.SetStreamIndex(o.astream.Index())
	if err := repairAndWrite(o.oc, &o.aTiming, pkt); err != nil {
		return fmt.Errorf("writing audio packet: %w", err)
	}
	return nil
}

// drainEncoder moves every pending compressed unit out of the encoder
// into the muxer.
func (o *renditionOutput) drainEncoder() error {
	for {
		o.encPkt.Unref()
		if err := o.enc.ReceivePacket(o.encPkt); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return fmt.Errorf("receiving packet from encoder: %w", err)
		}
		o.encPkt.SetStreamIndex(o.vstream.Index())
		o.encPkt.RescaleTs(o.enc.TimeBase(), o.vstream.TimeBase())
		o.encPkt.SetPos(-1)
		if err := o.oc.WriteInterleavedFrame(o.encPkt); err != nil {
			return fmt.Errorf("writing encoded packet: %w", err)
		}
		o.encoded++
	}
}

// flush signals end-of-stream to the encoder and drains what remains.
func (o *renditionOutput) flush() error {
	if o.flushed || o.enc == nil {
		return nil
	}
	o.flushed = true
	if err := o.enc.SendFrame(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		return fmt.Errorf("flushing encoder: %w", err)
	}
	return o.drainEncoder()
}

func (o *renditionOutput) close() error {
	err := o.flush()
	if trailerErr := o.oc.WriteTrailer(); err == nil {
		err = trailerErr
	}
	o.free()
	return err
}

func (o *renditionOutput) free() {
	if o.scaled != nil {
		o.scaled.Free()
		o.scaled = nil
	}
	if o.encPkt != nil {
		o.encPkt.Free()
		o.encPkt = nil
	}
	if o.scaler != nil {
		o.scaler.Free()
		o.scaler = nil
	}
	if o.enc != nil {
		o.enc.Free()
		o.enc = nil
	}
	closeMuxer(o.oc, o.pb)
	o.oc = nil
	o.pb = nil
}
