package stream

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedController builds a Controller whose attempts are driven by a
// script instead of real I/O, with sleeps replaced by a counter.
func scriptedController(cfg Config, script []error) (*Controller, *int, *time.Duration) {
	c := New(cfg)

	calls := 0
	var slept time.Duration
	c.attempt = func(*slog.Logger) error {
		err := script[calls]
		if calls < len(script)-1 {
			calls++
		}
		return err
	}
	c.nap = func(d time.Duration) {
		slept += d
	}
	return c, &calls, &slept
}

func liveConfig(reconnect time.Duration) Config {
	return Config{
		Source:         NewDescriptor("rtsp://cam.local/ch0", true),
		OutputPath:     "/tmp/out",
		ReconnectDelay: reconnect,
	}
}

func TestController_CleanEndTerminatesZero(t *testing.T) {
	cfg := Config{Source: NewDescriptor("/var/media/clip.mp4", false)}
	c, calls, _ := scriptedController(cfg, []error{nil})

	assert.Equal(t, ExitOK, c.Run())
	assert.Equal(t, 0, *calls)
}

func TestController_FiniteSourceFailureNoReconnect(t *testing.T) {
	cfg := Config{Source: NewDescriptor("/var/media/clip.mp4", false)}
	c, _, slept := scriptedController(cfg, []error{
		stageErr(StageAcquire, errors.New("no such file")),
	})

	assert.Equal(t, ExitAcquire, c.Run())
	assert.Equal(t, time.Duration(0), *slept, "no reconnect wait for finite sources")
}

func TestController_ReconnectsUntilSuccess(t *testing.T) {
	c, calls, slept := scriptedController(liveConfig(time.Second), []error{
		stageErr(StageAcquire, errors.New("refused")),
		stageErr(StageRun, errors.New("broken pipe")),
		nil,
	})

	assert.Equal(t, ExitOK, c.Run())
	assert.Equal(t, 2, *calls)
	assert.Equal(t, 2*time.Second, *slept)
}

func TestController_LiveSourceForcesReconnectDelay(t *testing.T) {
	// Reconnect explicitly disabled, but the source is live: the
	// controller must still wait and retry rather than terminate.
	c, _, slept := scriptedController(liveConfig(0), []error{
		stageErr(StageRun, errors.New("dropped")),
		nil,
	})

	assert.Equal(t, ExitOK, c.Run())
	assert.Equal(t, defaultLiveReconnectDelay, *slept)
}

func TestController_StopWinsOverReconnect(t *testing.T) {
	c := New(liveConfig(time.Minute))

	attempts := 0
	c.attempt = func(*slog.Logger) error {
		attempts++
		return stageErr(StageRun, errors.New("dropped"))
	}
	c.nap = func(time.Duration) {
		// Stop lands mid reconnect-wait.
		c.RequestStop()
	}

	assert.Equal(t, ExitOK, c.Run())
	assert.Equal(t, 1, attempts, "no new attempt after stop")
}

func TestController_StopDuringAttemptExitsZero(t *testing.T) {
	c := New(liveConfig(time.Minute))
	c.attempt = func(*slog.Logger) error {
		c.RequestStop()
		return stageErr(StageRun, errors.New("interrupted read"))
	}

	// Even though the attempt surfaced an error, a requested stop is a
	// clean shutdown.
	assert.Equal(t, ExitOK, c.Run())
}

func TestController_ExitCodeReflectsFailureStage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"outputs", stageErr(StageOutputs, errors.New("disk full")), ExitOutputs},
		{"decoder", stageErr(StageDecoder, errors.New("no h264")), ExitDecoder},
		{"run", errors.New("unclassified"), ExitRun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Source: NewDescriptor("/var/media/clip.mp4", false)}
			c, _, _ := scriptedController(cfg, []error{tt.err})
			assert.Equal(t, tt.want, c.Run())
		})
	}
}

func TestController_SleepInterruptible(t *testing.T) {
	c := New(liveConfig(time.Second))
	var slept time.Duration
	c.nap = func(d time.Duration) { slept += d }

	require.True(t, c.sleepInterruptible(time.Second))
	assert.Equal(t, time.Second, slept)

	c.RequestStop()
	assert.False(t, c.sleepInterruptible(time.Second))
}
