//go:build !zmq

package bitcoin

import "go.uber.org/zap"

// newSubscriber falls back to polling when the binary isn't built with
// -tags zmq; zmq_subscriber.go provides the hashblock-driven variant.
func newSubscriber(addr string, logger *zap.Logger) (subscriber, error) {
	if addr != "" {
		logger.Warn("zmq address configured but binary built without -tags zmq; falling back to polling")
	}
	return &pollSubscriber{interval: defaultPollInterval}, nil
}
