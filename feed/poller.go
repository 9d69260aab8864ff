package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Poller re-reads the whole collection on an interval and emits only when the
// body changed since the last successful read.
type Poller struct {
	cfg      FirebaseConfig
	interval time.Duration
	client   *http.Client
	logger   *zap.Logger
}

func NewPoller(cfg FirebaseConfig, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		cfg:      cfg,
		interval: interval,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

func (p *Poller) Subscribe(ctx context.Context, handler Handler) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	body, err := p.fetch(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		last := p.emit(ctx, nil, body, handler)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				body, err := p.fetch(ctx)
				if err != nil {
					if ctx.Err() == nil {
						p.logger.Warn("Session poll failed", zap.Error(err))
					}
					continue
				}
				last = p.emit(ctx, last, body, handler)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (p *Poller) emit(ctx context.Context, last, body []byte, handler Handler) []byte {
	if last != nil && bytes.Equal(last, body) {
		return last
	}
	snapshot, err := DecodeSnapshot(body, p.logger)
	if err != nil {
		p.logger.Warn("Session collection has unexpected shape", zap.Error(err))
		return last
	}
	handler(ctx, snapshot)
	return body
}

func (p *Poller) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.collectionURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read poll response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll error %s: %s", resp.Status, string(bytes.TrimSpace(body)))
	}
	return body, nil
}
