package bitcoin

import (
	"context"
	"time"
)

const defaultPollInterval = 10 * time.Second

// pollSubscriber notifies on a fixed interval instead of reacting to a zmq
// hashblock publish. Used whenever no ZMQAddr is configured, and as the
// always-available default when the binary isn't built with -tags zmq.
type pollSubscriber struct {
	interval time.Duration
}

func (p *pollSubscriber) subscribe(ctx context.Context) (<-chan struct{}, error) {
	interval := p.interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	notify := make(chan struct{}, 1)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case notify <- struct{}{}:
				default:
				}
			}
		}
	}()
	return notify, nil
}
