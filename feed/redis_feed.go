package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"cart-recovery-service/models"
	"cart-recovery-service/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFeed reads sessions from a hash and reloads the whole collection on
// every message published to the change channel. Markers live in a separate
// hash and are merged into the records.
type RedisFeed struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisFeed(client *redis.Client, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{client: client, logger: logger}
}

func (f *RedisFeed) Subscribe(ctx context.Context, handler Handler) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	pubsub := f.client.Subscribe(ctx, repository.RedisChangedChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		cancel()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	snapshot, err := f.Load(ctx)
	if err != nil {
		pubsub.Close()
		cancel()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer pubsub.Close()

		handler(ctx, snapshot)

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				snapshot, err := f.Load(ctx)
				if err != nil {
					if ctx.Err() == nil {
						f.logger.Warn("Session reload failed", zap.Error(err))
					}
					continue
				}
				handler(ctx, snapshot)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

// Load reads every session and overlays the stored markers.
func (f *RedisFeed) Load(ctx context.Context) (models.Snapshot, error) {
	raw, err := f.client.HGetAll(ctx, repository.RedisSessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	markers, err := f.client.HGetAll(ctx, repository.RedisNotificationsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read markers: %w", err)
	}

	records := make(map[string]json.RawMessage, len(raw))
	for id, v := range raw {
		records[id] = json.RawMessage(v)
	}
	snapshot := decodeRecords(records, f.logger)

	for i := range snapshot {
		if sentAt, ok := markers[snapshot[i].ID]; ok {
			snapshot[i].Notifications.AbandonedCart = models.Marker{
				Set:    true,
				SentAt: models.NewTimestamp(models.ParseTimestamp(sentAt)),
			}
		}
	}
	return snapshot, nil
}
