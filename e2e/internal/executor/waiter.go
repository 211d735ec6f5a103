package executor

import (
	"context"
	"time"
)

// ScaledOffset converts scenario seconds into real elapsed time
func ScaledOffset(targetSeconds int, timeScale int) time.Duration {
	if timeScale < 1 {
		timeScale = 1 // Default to no scaling
	}
	return time.Duration(targetSeconds) * time.Second / time.Duration(timeScale)
}

// WaitUntil waits until targetSeconds (scenario time) after start, or until
// ctx is done
func WaitUntil(ctx context.Context, startTime time.Time, targetSeconds int, timeScale int) error {
	wait := time.Until(startTime.Add(ScaledOffset(targetSeconds, timeScale)))
	if wait <= 0 {
		return ctx.Err()
	}

	return sleepCtx(ctx, wait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetElapsed returns elapsed seconds since start
func GetElapsed(startTime time.Time) float64 {
	return time.Since(startTime).Seconds()
}
