package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const defaultResponseBodyCap = 4 << 10 // 4KiB; only read to surface in error messages

// HTTPSinkConfig configures an HTTPSink.
type HTTPSinkConfig struct {
	URL                 string
	AuthorizationHeader string
	Timeout             time.Duration // per-attempt request timeout
	MaxElapsedTime      time.Duration // bound on total retry time before giving up
}

// HTTPSink delivers a payload as a JSON POST, retrying 5xx responses and
// transport errors with exponential backoff (spec.md §4.4). A 4xx response
// is treated as permanent user misconfiguration and is never retried.
type HTTPSink struct {
	cfg    HTTPSinkConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPSink constructs an HTTPSink. Defaults: 30s per-attempt timeout and
// 30s total retry time (MaxElapsedTime).
func NewHTTPSink(cfg HTTPSinkConfig, logger *zap.Logger) *HTTPSink {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxElapsedTime == 0 {
		cfg.MaxElapsedTime = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSink{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("http-sink"),
	}
}

// permanentHTTPError marks a response as a 4xx: backoff.Permanent wraps it
// so backoff.Retry stops immediately instead of retrying.
type permanentHTTPError struct {
	statusCode int
	body       string
}

func (e *permanentHTTPError) Error() string {
	return fmt.Sprintf("http sink: permanent failure, status %d: %s", e.statusCode, e.body)
}

// Deliver implements Sink.
func (s *HTTPSink) Deliver(ctx context.Context, payload ApplyRollbackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("http sink: encode payload: %w", err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = s.cfg.MaxElapsedTime
	policy := backoff.WithContext(eb, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := s.post(ctx, body)
		if err != nil {
			s.logger.Warn("delivery attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}

	err = backoff.Retry(operation, policy)
	if err != nil {
		return fmt.Errorf("http sink: deliver to %s: %w", s.cfg.URL, err)
	}
	return nil
}

func (s *HTTPSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("http sink: build request: %w", err))
	}
	req.Header.Set("content-type", "application/json")
	if s.cfg.AuthorizationHeader != "" {
		req.Header.Set("authorization", s.cfg.AuthorizationHeader)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err // transport error: retryable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, defaultResponseBodyCap))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return backoff.Permanent(&permanentHTTPError{statusCode: resp.StatusCode, body: string(respBody)})
	}
	return fmt.Errorf("http sink: status %d: %s", resp.StatusCode, respBody)
}
