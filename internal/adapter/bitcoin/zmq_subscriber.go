//go:build zmq

package bitcoin

import (
	"context"
	"time"

	"github.com/pebbe/zmq4"
	"go.uber.org/zap"

	"github.com/hirosystems/chainhook/internal/clock"
)

// newSubscriber returns a zmq hashblock subscriber when addr is set,
// adapted from the teacher's cmd/utxo/follower-ingester/block_signal_zmq.go;
// otherwise it falls back to polling.
func newSubscriber(addr string, logger *zap.Logger) (subscriber, error) {
	if addr == "" {
		return &pollSubscriber{interval: defaultPollInterval}, nil
	}
	return &zmqSubscriber{addr: addr, logger: logger}, nil
}

type zmqSubscriber struct {
	addr   string
	logger *zap.Logger
}

func (z *zmqSubscriber) subscribe(ctx context.Context) (<-chan struct{}, error) {
	sock, err := newZMQSocket(z.addr, "hashblock")
	if err != nil {
		return nil, err
	}

	notify := make(chan struct{}, 1)
	go func() {
		defer sock.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgParts, err := sock.RecvMessageBytes(0)
			if err != nil {
				z.logger.Warn("zmq recv failed", zap.Error(err))
				if sleepErr := clock.SleepWithContext(ctx, time.Second); sleepErr != nil {
					return
				}
				continue
			}
			if len(msgParts) < 2 {
				z.logger.Warn("skip malformed zmq message", zap.Int("parts", len(msgParts)))
				continue
			}

			select {
			case notify <- struct{}{}:
			default:
			}
		}
	}()

	return notify, nil
}

func newZMQSocket(addr string, topics ...string) (*zmq4.Socket, error) {
	sock, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, err
	}

	for _, topic := range topics {
		if err := sock.SetSubscribe(topic); err != nil {
			sock.Close()
			return nil, err
		}
	}

	if err := sock.Connect(addr); err != nil {
		sock.Close()
		return nil, err
	}
	return sock, nil
}
