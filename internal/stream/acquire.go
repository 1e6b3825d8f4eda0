package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/asticode/go-astiav"
)

// input holds one open source: format context, selected streams, and the
// opened video decoder. Audio is optional and never decoded (it is only
// ever stream-copied).
type input struct {
	fc      *astiav.FormatContext
	video   *astiav.Stream
	audio   *astiav.Stream
	decoder *astiav.CodecContext
}

// openInput acquires the source described by src: opens the demuxer with
// transport options appropriate for the scheme, probes stream info,
// selects the video (required) and audio (optional) streams, and opens a
// decoder for the video stream.
func openInput(src Descriptor, ioTimeout time.Duration) (*input, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, stageErr(StageAcquire, errors.New("allocating format context"))
	}

	opts := astiav.NewDictionary()
	defer opts.Free()
	inputOptions(src, ioTimeout, opts)

	if err := fc.OpenInput(src.URL, nil, opts); err != nil {
		fc.Free()
		return nil, stageErr(StageAcquire, fmt.Errorf("opening input: %w", err))
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, stageErr(StageAcquire, fmt.Errorf("probing streams: %w", err))
	}

	in := &input{fc: fc}
	for _, s := range fc.Streams() {
		switch s.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if in.video == nil {
				in.video = s
			}
		case astiav.MediaTypeAudio:
			if in.audio == nil {
				in.audio = s
			}
		}
	}
	if in.video == nil {
		in.close()
		return nil, stageErr(StageDecoder, errors.New("no video stream in source"))
	}

	if err := in.openDecoder(); err != nil {
		in.close()
		return nil, stageErr(StageDecoder, err)
	}
	return in, nil
}

// inputOptions fills the demuxer dictionary for the source's transport.
func inputOptions(src Descriptor, ioTimeout time.Duration, opts *astiav.Dictionary) {
	timeoutMicros := strconv.FormatInt(ioTimeout.Microseconds(), 10)

	// Missing timestamps are repaired downstream, but genpts papers over
	// sources that omit them entirely.
	_ = opts.Set("fflags", "+genpts+discardcorrupt", 0)

	switch {
	case strings.HasPrefix(src.URL, "rtsp://"), strings.HasPrefix(src.URL, "rtsps://"):
		if src.ForceTCP {
			_ = opts.Set("rtsp_transport", "tcp", 0)
		}
		if ioTimeout > 0 {
			_ = opts.Set("stimeout", timeoutMicros, 0)
			_ = opts.Set("rw_timeout", timeoutMicros, 0)
		}
	case strings.HasPrefix(src.URL, "http://"), strings.HasPrefix(src.URL, "https://"):
		_ = opts.Set("reconnect", "1", 0)
		_ = opts.Set("reconnect_streamed", "1", 0)
		_ = opts.Set("reconnect_delay_max", "5", 0)
		if ioTimeout > 0 {
			_ = opts.Set("rw_timeout", timeoutMicros, 0)
		}
	default:
		if src.Live && ioTimeout > 0 {
			_ = opts.Set("rw_timeout", timeoutMicros, 0)
		}
	}
}

func (in *input) openDecoder() error {
	par := in.video.CodecParameters()
	dec := astiav.FindDecoder(par.CodecID())
	if dec == nil {
		return fmt.Errorf("no decoder for codec %s", par.CodecID())
	}

	ctx := astiav.AllocCodecContext(dec)
	if ctx == nil {
		return errors.New("allocating decoder context")
	}
	if err := par.ToCodecContext(ctx); err != nil {
		ctx.Free()
		return fmt.Errorf("applying codec parameters: %w", err)
	}
	if err := ctx.Open(dec, nil); err != nil {
		ctx.Free()
		return fmt.Errorf("opening decoder: %w", err)
	}

	in.decoder = ctx
	return nil
}

// frameRate reports the source video frame rate, falling back to 25 fps
// when the container does not declare one.
func (in *input) frameRate() astiav.Rational {
	r := in.video.AvgFrameRate()
	if r.Num() <= 0 || r.Den() <= 0 {
		r = in.decoder.Framerate()
	}
	if r.Num() <= 0 || r.Den() <= 0 {
		r = astiav.NewRational(25, 1)
	}
	return r
}

func (in *input) close() {
	if in.decoder != nil {
		in.decoder.Free()
		in.decoder = nil
	}
	if in.fc != nil {
		in.fc.CloseInput()
		in.fc.Free()
		in.fc = nil
	}
}
