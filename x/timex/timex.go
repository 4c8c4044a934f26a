package timex

import (
	"context"
	"time"
)

var boot = time.Now()

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// TicksMs returns monotonic milliseconds since process start.
func TicksMs() int64 { return time.Since(boot).Milliseconds() }

// Ms converts a millisecond count to a Duration.
func Ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed. d <= 0 still yields once to the scheduler.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		yield()
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
