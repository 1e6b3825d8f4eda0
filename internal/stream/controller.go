package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/camstreamd/camstreamd/internal/media"
	"github.com/camstreamd/camstreamd/internal/observability"
	"github.com/google/uuid"
)

const (
	defaultLiveReconnectDelay = 5 * time.Second
	defaultProgressEvery      = 2000
	readRetryPause            = 100 * time.Millisecond
	stopPollInterval          = 100 * time.Millisecond
)

// Config parameterizes one Controller. All values are resolved before the
// state machine starts; nothing is re-read mid-run.
type Config struct {
	Source     Descriptor
	OutputPath string
	Ladder     []Rendition

	CopySegmentSeconds   int
	CopyKeepMinutes      int
	EncodeSegmentSeconds int
	EncodeKeepMinutes    int

	Preset  string
	Tune    string
	Threads int

	IOTimeout      time.Duration
	ReconnectDelay time.Duration

	// ProgressEvery is the packet interval between progress log lines.
	ProgressEvery uint64

	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// Controller drives the session lifecycle: acquire the source, open
// outputs, pump the pipeline, flush and tear down, then reconnect or
// terminate. One Controller handles one source for the process lifetime.
type Controller struct {
	cfg     Config
	logger  *slog.Logger
	stopped atomic.Bool
	sampler *observability.ResourceSampler

	// attempt runs one full connect attempt. Overridable in tests.
	attempt func(logger *slog.Logger) error
	// nap sleeps for one poll slice. Overridable in tests.
	nap func(time.Duration)
}

// New creates a Controller. The configured ladder, paths, and delays are
// used as-is; validation belongs to the caller.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		cfg:     cfg,
		logger:  observability.WithComponent(logger, "controller"),
		sampler: observability.NewResourceSampler(),
		nap:     time.Sleep,
	}
	c.attempt = c.runAttempt
	return c
}

// RequestStop trips the process-wide stop flag. Safe from any goroutine;
// the run loop polls it between blocking calls. Stop always wins over
// reconnect and yields a success exit.
func (c *Controller) RequestStop() {
	c.stopped.Store(true)
}

// Stopped reports whether a graceful stop has been requested.
func (c *Controller) Stopped() bool {
	return c.stopped.Load()
}

// Run executes the connect/stream/reconnect loop until a terminal
// condition and returns the process exit code.
func (c *Controller) Run() int {
	attemptNum := 0
	for {
		attemptNum++
		logger := c.logger.With(
			slog.String("attempt_id", uuid.NewString()),
			slog.Int("attempt", attemptNum),
		)
		logger.Info("starting attempt",
			slog.String("source", observability.RedactURL(c.cfg.Source.URL)),
			slog.Bool("live", c.cfg.Source.Live))

		err := c.attempt(logger)

		if c.Stopped() {
			logger.Info("graceful stop complete")
			return ExitOK
		}
		if err == nil {
			logger.Info("source ended cleanly")
			return ExitOK
		}

		observability.WithError(logger, err).Error("attempt failed")

		delay := c.reconnectDelay()
		if delay <= 0 {
			return ExitCode(err)
		}
		logger.Info("waiting before reconnect", slog.Duration("delay", delay))
		if !c.sleepInterruptible(delay) {
			logger.Info("graceful stop during reconnect wait")
			return ExitOK
		}
	}
}

// reconnectDelay resolves the effective reconnect delay. A live source
// always reconnects, even when the caller disabled it.
func (c *Controller) reconnectDelay() time.Duration {
	if c.cfg.ReconnectDelay > 0 {
		return c.cfg.ReconnectDelay
	}
	if c.cfg.Source.Live {
		return defaultLiveReconnectDelay
	}
	return 0
}

// sleepInterruptible sleeps d in slices, checking the stop flag between
// them. Returns false when the sleep was cut short by a stop request.
func (c *Controller) sleepInterruptible(d time.Duration) bool {
	for d > 0 {
		if c.Stopped() {
			return false
		}
		slice := d
		if slice > stopPollInterval {
			slice = stopPollInterval
		}
		c.nap(slice)
		d -= slice
	}
	return !c.Stopped()
}

// runAttempt is one pass through ACQUIRE, OPEN_OUTPUTS, RUNNING, FLUSH,
// TEARDOWN. Teardown always runs.
func (c *Controller) runAttempt(logger *slog.Logger) error {
	in, err := openInput(c.cfg.Source, c.cfg.IOTimeout)
	if err != nil {
		return err
	}

	s := &session{in: in}
	defer s.close(logger)

	if err := s.openOutputs(c.cfg, logger); err != nil {
		return err
	}
	logger.Info("session running",
		slog.Int("renditions", len(s.rends)),
		slog.Bool("audio", in.audio != nil))

	return c.pump(s, logger)
}

// pump is the RUNNING state: read packets and hand them to the pipeline
// until stop, end-of-stream, or an unrecoverable error.
func (c *Controller) pump(s *session, logger *slog.Logger) error {
	pkt := astiav.AllocPacket()
	defer pkt.Free()

	every := c.cfg.ProgressEvery
	if every == 0 {
		every = defaultProgressEvery
	}
	nextProgress := every

	for {
		if c.Stopped() {
			break
		}

		pkt.Unref()
		if err := c.readPacket(s, pkt, logger); err != nil {
			if errors.Is(err, io.EOF) {
				return c.finish(s, logger)
			}
			return err
		}

		if err := s.pipe.process(pkt); err != nil {
			return stageErr(StageRun, err)
		}

		if s.pipe.packets >= nextProgress {
			c.logProgress(s, logger)
			nextProgress += every
		}
	}

	// Graceful stop: flush, then report clean.
	if err := s.pipe.flush(); err != nil {
		observability.WithError(logger, err).Warn("flush during stop")
	}
	return nil
}

// readPacket reads one packet, retrying in place on transient timeouts.
func (c *Controller) readPacket(s *session, pkt *astiav.Packet, logger *slog.Logger) error {
	for {
		err := s.in.fc.ReadFrame(pkt)
		if err == nil {
			return nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, astiav.ErrEof) {
			return io.EOF
		}
		if isTimeout(err) {
			logger.Debug("read timeout, retrying")
			if !c.sleepInterruptible(readRetryPause) {
				return io.EOF
			}
			continue
		}
		return stageErr(StageRun, fmt.Errorf("reading packet: %w", err))
	}
}

// finish handles end-of-stream: flush everything, then decide whether the
// end was clean. A live source ending is a failure (it should never end),
// a finite source ending is the normal exit.
func (c *Controller) finish(s *session, logger *slog.Logger) error {
	if err := s.pipe.flush(); err != nil {
		return stageErr(StageRun, err)
	}
	if c.cfg.Source.Live {
		return stageErr(StageRun, errors.New("live source ended"))
	}
	logger.Info("end of stream",
		slog.Uint64("packets", s.pipe.packets),
		slog.Uint64("frames", s.pipe.frames))
	return nil
}

// logProgress emits one periodic progress line with pipeline counters,
// playlist window state, and process resource usage.
func (c *Controller) logProgress(s *session, logger *slog.Logger) {
	attrs := []any{
		slog.Uint64("packets", s.pipe.packets),
		slog.Uint64("frames", s.pipe.frames),
		slog.Uint64("copy_written", s.pass.written),
	}

	playlist := media.NormalizeOutputPath(c.cfg.OutputPath)
	if win, err := readPlaylistWindow(playlist); err == nil {
		attrs = append(attrs,
			slog.Int("segments", win.Segments),
			slog.Int("media_sequence", win.MediaSequence))
	}
	for _, r := range s.rends {
		attrs = append(attrs, slog.Uint64(r.spec.Name+"_encoded", r.encoded))
	}
	usage := c.sampler.Sample()
	attrs = append(attrs,
		slog.Float64("cpu_percent", usage.CPUPercent),
		slog.Uint64("rss_bytes", usage.RSSBytes))

	logger.Info("progress", attrs...)
}

// isTimeout matches libav's transient read-timeout errors.
func isTimeout(err error) bool {
	if errors.Is(err, astiav.ErrEagain) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout")
}
