package stream

import (
	"log/slog"

	"github.com/camstreamd/camstreamd/internal/media"
	"github.com/camstreamd/camstreamd/internal/observability"
)

// session owns every resource of one connection attempt. Nothing in it
// survives the attempt; reconnects build a fresh one.
type session struct {
	in    *input
	pass  *passthroughOutput
	rends []*renditionOutput
	pipe  *pipeline
}

// Output constructors, indirected so the degradation policy is testable
// without a linked source.
var (
	buildPassthrough = newPassthroughOutput
	buildRendition   = newRenditionOutput
)

// openOutputs builds the passthrough output and the rendition outputs
// from the attempt's config. A rendition that fails to initialize is
// logged and skipped; the attempt only fails when the passthrough output
// cannot be opened or when every rendition fails.
func (s *session) openOutputs(cfg Config, logger *slog.Logger) error {
	playlist := media.NormalizeOutputPath(cfg.OutputPath)

	pass, err := buildPassthrough(s.in, hlsSettings{
		playlist:       playlist,
		segmentSeconds: cfg.CopySegmentSeconds,
		keepMinutes:    cfg.CopyKeepMinutes,
	})
	if err != nil {
		return stageErr(StageOutputs, err)
	}
	s.pass = pass

	var lastErr error
	for _, spec := range cfg.Ladder {
		settings := hlsSettings{
			playlist:       media.VariantPlaylistPath(playlist, spec.Name),
			segmentSeconds: cfg.EncodeSegmentSeconds,
			keepMinutes:    cfg.EncodeKeepMinutes,
		}
		rend, err := buildRendition(s.in, spec, settings, cfg.Preset, cfg.Tune, cfg.Threads)
		if err != nil {
			lastErr = err
			observability.WithError(logger, err).Warn("rendition disabled",
				slog.String("rendition", spec.Name))
			continue
		}
		logger.Info("rendition output open",
			slog.String("rendition", spec.Name),
			slog.String("playlist", settings.playlist),
			slog.Int("width", spec.Width),
			slog.Int("height", spec.Height),
			slog.Int("bitrate", spec.Bitrate))
		s.rends = append(s.rends, rend)
	}
	if len(cfg.Ladder) > 0 && len(s.rends) == 0 {
		return stageErr(StageOutputs, lastErr)
	}

	s.pipe = newPipeline(s.in, s.pass, s.rends)
	return nil
}

// close tears the attempt down in reverse dependency order: outputs, then
// the decoder and source handle. Always runs, success or error.
func (s *session) close(logger *slog.Logger) {
	for _, r := range s.rends {
		if err := r.close(); err != nil {
			observability.WithError(logger, err).Warn("closing rendition output",
				slog.String("rendition", r.spec.Name))
		}
	}
	s.rends = nil
	if s.pass != nil {
		if err := s.pass.close(); err != nil {
			observability.WithError(logger, err).Warn("closing passthrough output")
		}
		s.pass = nil
	}
	if s.pipe != nil {
		s.pipe.free()
		s.pipe = nil
	}
	if s.in != nil {
		s.in.close()
		s.in = nil
	}
}
