package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cart-recovery-service/models"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type SlackSender struct {
	webhookURL string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

type SlackOption func(*SlackSender)

// WithRateLimit caps outgoing posts; rate.Inf disables the cap.
func WithRateLimit(r rate.Limit, burst int) SlackOption {
	return func(s *SlackSender) {
		s.limiter = rate.NewLimiter(r, burst)
	}
}

func WithHTTPClient(c *http.Client) SlackOption {
	return func(s *SlackSender) {
		s.httpClient = c
	}
}

func NewSlackSender(webhookURL string, timeout time.Duration, opts ...SlackOption) (*SlackSender, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("SLACK_WEBHOOK_URL not set")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	s := &SlackSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SlackSender) SendAlert(ctx context.Context, msg *models.SlackMessage) (SendResult, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to marshal slack message: %w", err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return SendResult{}, fmt.Errorf("slack rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return SendResult{}, fmt.Errorf("%w: slack error %s: %s", ErrNonSuccessStatus, resp.Status, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return SendResult{
		MessageID: "slack-" + uuid.NewString(),
		SentAt:    s.now(),
	}, nil
}
