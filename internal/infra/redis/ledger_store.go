package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const ledgerKey = "quiz:highscores"

// LedgerStore keeps the serialized high score list under a single Redis key.
// A zero TTL makes the key persistent.
type LedgerStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLedgerStore(client *redis.Client, ttl time.Duration) *LedgerStore {
	return &LedgerStore{client: client, ttl: ttl}
}

func (s *LedgerStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, ledgerKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *LedgerStore) Save(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, ledgerKey, data, s.ttl).Err()
}

func (s *LedgerStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, ledgerKey).Err()
}
