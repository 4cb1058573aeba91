package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"mirrorctl/scrcpy"
	"mirrorctl/scrcpy/remotemsg"
)

type ReplayOptions struct {
	// Realtime waits between messages as long as the recorded event_time
	// gap, divided by Speed.
	Realtime bool
	Speed    float64
	Logger   *slog.Logger
}

// Replay sends a recording read from src to a remote listener on dst and
// returns the number of messages sent.
func Replay(ctx context.Context, src io.Reader, dst io.Writer, opts ReplayOptions) (int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	speed := opts.Speed
	if speed <= 0 {
		speed = 1
	}

	r := remotemsg.NewReader(src)
	var prev time.Time
	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, fmt.Errorf("reading recording: %w", err)
		}

		if opts.Realtime && !prev.IsZero() && !rec.Time.IsZero() {
			if gap := rec.Time.Sub(prev); gap > 0 {
				if err := sleepCtx(ctx, time.Duration(float64(gap)/speed)); err != nil {
					scrcpy.Destroy(rec.Command)
					return sent, err
				}
			}
		}
		if !rec.Time.IsZero() {
			prev = rec.Time
		}

		b, err := remotemsg.Encode(rec.Command, rec.Time)
		scrcpy.Destroy(rec.Command)
		if err != nil {
			return sent, err
		}
		if _, err := dst.Write(append(b, '\n')); err != nil {
			return sent, fmt.Errorf("sending message %d: %w", sent+1, err)
		}
		sent++
		logger.Debug("replayed", "n", sent, "type", rec.Command.Type().String())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
