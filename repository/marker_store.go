package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// MarkerStore persists notifications.abandoned_cart for a session upstream.
// It is the only write the monitor ever performs on session records.
type MarkerStore interface {
	MarkAbandonedNotified(ctx context.Context, sessionID string, sentAt time.Time) error
}

type markerBody struct {
	AbandonedCart struct {
		SentAt string `json:"sent_at"`
	} `json:"abandoned_cart"`
}

// FirebaseMarkerStore PATCHes {base}/{path}/{id}/notifications.json.
type FirebaseMarkerStore struct {
	baseURL    string
	path       string
	authToken  string
	httpClient *http.Client
}

func NewFirebaseMarkerStore(baseURL, path, authToken string, timeout time.Duration) *FirebaseMarkerStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FirebaseMarkerStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       strings.Trim(path, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *FirebaseMarkerStore) endpoint(sessionID string) string {
	u := fmt.Sprintf("%s/%s/%s/notifications.json", s.baseURL, s.path, url.PathEscape(sessionID))
	if s.authToken != "" {
		u += "?auth=" + url.QueryEscape(s.authToken)
	}
	return u
}

func (s *FirebaseMarkerStore) MarkAbandonedNotified(ctx context.Context, sessionID string, sentAt time.Time) error {
	if sessionID == "" {
		return fmt.Errorf("empty session id")
	}

	var body markerBody
	body.AbandonedCart.SentAt = sentAt.UTC().Format(time.RFC3339)
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal marker: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.endpoint(sessionID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("marker write failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("marker write error %s: %s", resp.Status, string(respBody))
	}
	return nil
}

// Redis keys shared with the redis session feed.
const (
	RedisSessionsKey      = "checkout_sessions"
	RedisNotificationsKey = "checkout_sessions:notifications"
	RedisChangedChannel   = "checkout_sessions:changed"
)

// RedisMarkerStore keeps markers in a hash keyed by session id.
type RedisMarkerStore struct {
	client *redis.Client
	key    string
}

func NewRedisMarkerStore(client *redis.Client) *RedisMarkerStore {
	return &RedisMarkerStore{client: client, key: RedisNotificationsKey}
}

func (s *RedisMarkerStore) MarkAbandonedNotified(ctx context.Context, sessionID string, sentAt time.Time) error {
	if sessionID == "" {
		return fmt.Errorf("empty session id")
	}
	return s.client.HSet(ctx, s.key, sessionID, sentAt.UTC().Format(time.RFC3339)).Err()
}
