package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/asticode/go-astiav"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/camstreamd/camstreamd/internal/config"
	"github.com/camstreamd/camstreamd/internal/observability"
	"github.com/camstreamd/camstreamd/internal/stream"
	"github.com/camstreamd/camstreamd/internal/version"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Stream one source to segmented HLS outputs",
	Long: `Acquire the configured source and publish it as HLS: a lossless
passthrough playlist plus one re-encoded playlist per rendition, all with
sliding-window segment retention.

The process runs until the source ends (finite sources), a fatal error
occurs with reconnection disabled, or SIGINT/SIGTERM requests a graceful
shutdown. The exit code tells the supervisor which stage failed:
0 clean, 2 acquisition, 3 decoder, 4 output setup, 5 run error.`,
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("source", "", "Source URL or file path")
	runCmd.Flags().String("output", "", "Output playlist path or directory")
	runCmd.Flags().Bool("force-tcp", false, "Force TCP transport for RTSP sources")
	runCmd.Flags().Duration("reconnect-delay", 0, "Delay between reconnect attempts (0 disables for finite sources)")
	runCmd.Flags().StringSlice("ladder", nil, "Rendition ladder entries, name:WxH:bitrate")

	mustBindPFlag("source.url", runCmd.Flags().Lookup("source"))
	mustBindPFlag("output.path", runCmd.Flags().Lookup("output"))
	mustBindPFlag("source.force_tcp", runCmd.Flags().Lookup("force-tcp"))
	mustBindPFlag("source.reconnect_delay", runCmd.Flags().Lookup("reconnect-delay"))
	mustBindPFlag("encode.ladder", runCmd.Flags().Lookup("ladder"))
}

func runStream(cmd *cobra.Command, args []string) error {
	defer func() {
		if logCloser != nil {
			_ = logCloser()
		}
	}()

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ladder, err := stream.ParseLadder(cfg.Encode.Ladder)
	if err != nil {
		return fmt.Errorf("parsing ladder: %w", err)
	}

	logger := slog.Default()
	bridgeLibavLogs(logger)

	controller := stream.New(stream.Config{
		Source:               stream.NewDescriptor(cfg.Source.URL, cfg.Source.ForceTCP),
		OutputPath:           cfg.Output.Path,
		Ladder:               ladder,
		CopySegmentSeconds:   cfg.Output.CopySegmentSeconds,
		CopyKeepMinutes:      cfg.Output.CopyKeepMinutes,
		EncodeSegmentSeconds: cfg.Encode.SegmentSeconds,
		EncodeKeepMinutes:    cfg.Encode.KeepMinutes,
		Preset:               cfg.Encode.Preset,
		Tune:                 cfg.Encode.Tune,
		Threads:              cfg.Encode.Threads,
		IOTimeout:            cfg.Source.IOTimeout,
		ReconnectDelay:       cfg.Source.ReconnectDelay,
		Logger:               logger,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		controller.RequestStop()
	}()

	logger.Info("starting camstreamd",
		slog.String("source", observability.RedactURL(cfg.Source.URL)),
		slog.String("output", cfg.Output.Path),
		slog.Int("renditions", len(ladder)),
		slog.String("version", version.Version),
	)

	if code := controller.Run(); code != stream.ExitOK {
		if logCloser != nil {
			_ = logCloser()
			logCloser = nil
		}
		os.Exit(code)
	}
	return nil
}

// bridgeLibavLogs forwards libav's own log lines into slog so every line
// this process emits is structured.
func bridgeLibavLogs(logger *slog.Logger) {
	astiav.SetLogLevel(astiav.LogLevelWarning)
	astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, format, msg string) {
		line := strings.TrimSpace(msg)
		if line == "" {
			return
		}
		libav := observability.WithComponent(logger, "libav")
		switch {
		case l <= astiav.LogLevelError:
			libav.Error(line)
		case l <= astiav.LogLevelWarning:
			libav.Warn(line)
		default:
			libav.Debug(line)
		}
	})
}
