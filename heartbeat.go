package socketio

import (
	"context"
	"log/slog"
	"time"
)

// heartbeatLoop sends a heartbeat every interval until ctx is cancelled.
// A failed heartbeat is logged and the loop carries on; a dead transport
// is reported by the receive loop instead.
func (c *Client) heartbeatLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.conn.sendControl(ctx, CodeHeartbeat, ""); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.metrics.heartbeatFailed()
				c.logger.Warn("could not send heartbeat", slog.Any("error", err))
			}
		}
	}
}
