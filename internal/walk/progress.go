package walk

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultProgressInterval is the default interval for progress updates.
const DefaultProgressInterval = 500 * time.Millisecond

// counter tracks emitted files and bytes for the progress hook.
type counter struct {
	files atomic.Int64
	bytes atomic.Int64
}

func (c *counter) add(size int64) {
	c.files.Add(1)
	c.bytes.Add(size)
}

// startProgressReporter invokes hook(files, bytes) on each tick until ctx is done.
func startProgressReporter(ctx context.Context, c *counter, hook func(int64, int64), interval time.Duration) {
	if hook == nil {
		return
	}

	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				hook(c.files.Load(), c.bytes.Load())
			case <-ctx.Done():
				return
			}
		}
	}()
}
