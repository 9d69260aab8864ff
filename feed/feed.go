package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"cart-recovery-service/models"

	"go.uber.org/zap"
)

var ErrStreamCancelled = errors.New("session stream cancelled by server")

// Handler receives the full checkout_sessions collection after every change.
// Invocations for one subscription never overlap.
type Handler func(ctx context.Context, snapshot models.Snapshot)

// SessionFeed delivers snapshots until the returned unsubscribe is called or
// ctx is done. Unsubscribe blocks until the delivery goroutine has exited.
type SessionFeed interface {
	Subscribe(ctx context.Context, handler Handler) (unsubscribe func(), err error)
}

// FirebaseConfig addresses a Realtime Database collection over REST.
type FirebaseConfig struct {
	BaseURL   string
	Path      string
	AuthToken string
}

func (c FirebaseConfig) collectionURL() string {
	u := strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.Path, "/") + ".json"
	if c.AuthToken != "" {
		u += "?auth=" + url.QueryEscape(c.AuthToken)
	}
	return u
}

// DecodeSnapshot turns a collection body ({id: record}) into a Snapshot in
// key order. Records that fail to decode are skipped and logged.
func DecodeSnapshot(raw []byte, logger *zap.Logger) (models.Snapshot, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return models.Snapshot{}, nil
	}

	records := map[string]json.RawMessage{}
	switch raw[0] {
	case '{':
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode sessions: %w", err)
		}
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode sessions: %w", err)
		}
		for i, rec := range list {
			records[strconv.Itoa(i)] = rec
		}
	default:
		return nil, fmt.Errorf("decode sessions: unexpected collection type %q", raw[0])
	}

	return decodeRecords(records, logger), nil
}

func decodeRecords(records map[string]json.RawMessage, logger *zap.Logger) models.Snapshot {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	snapshot := make(models.Snapshot, 0, len(ids))
	for _, id := range ids {
		rec := bytes.TrimSpace(records[id])
		if len(rec) == 0 || string(rec) == "null" {
			continue
		}
		var session models.CheckoutSession
		if err := json.Unmarshal(rec, &session); err != nil {
			logger.Warn("Skipping malformed session record", zap.String("session_id", id), zap.Error(err))
			continue
		}
		// Markers are written under the collection key, so the key is the id
		// even when the record carries its own "id" field.
		session.ID = id
		snapshot = append(snapshot, session)
	}
	return snapshot
}

func backoff(attempt int, step, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * step
	if d > max {
		d = max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
