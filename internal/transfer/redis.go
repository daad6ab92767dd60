package transfer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/susu3304/debitbot/internal/ledger"
)

const keyPrefix = "transfer:"

// setUsed writes the used flag only when the hash exists.
var setUsed = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], "used", ARGV[1])
return 1
`)

// RedisStore keeps transfer codes as hashes that expire on their own after
// the code TTL.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ ledger.TransferCodes = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// DialRedis parses a redis:// URL and pings the server.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func key(code string) string {
	return keyPrefix + code
}

func (s *RedisStore) IssueTransferCode(ctx context.Context, code ledger.TransferCode) error {
	k := key(code.Code)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k,
			"chat_id", code.ChatID,
			"created_at", code.CreatedAt.UTC().Format(time.RFC3339Nano),
			"used", boolField(code.Used),
		)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store transfer code: %w", err)
	}
	return nil
}

func (s *RedisStore) LookupTransferCode(ctx context.Context, code string) (*ledger.TransferCode, error) {
	fields, err := s.client.HGetAll(ctx, key(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("load transfer code: %w", err)
	}
	if len(fields) == 0 {
		return nil, ledger.ErrTransferCodeNotFound
	}
	return decodeCode(code, fields)
}

func (s *RedisStore) MarkTransferCodeUsed(ctx context.Context, code string) error {
	return s.setUsed(ctx, code, true)
}

func (s *RedisStore) ReleaseTransferCode(ctx context.Context, code string) error {
	return s.setUsed(ctx, code, false)
}

func (s *RedisStore) setUsed(ctx context.Context, code string, used bool) error {
	n, err := setUsed.Run(ctx, s.client, []string{key(code)}, boolField(used)).Int()
	if errors.Is(err, redis.Nil) || (err == nil && n == 0) {
		return ledger.ErrTransferCodeNotFound
	}
	if err != nil {
		return fmt.Errorf("update transfer code: %w", err)
	}
	return nil
}

func decodeCode(code string, fields map[string]string) (*ledger.TransferCode, error) {
	created, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("decode transfer code %s: %w", code, err)
	}
	used, err := strconv.ParseBool(fields["used"])
	if err != nil {
		return nil, fmt.Errorf("decode transfer code %s: %w", code, err)
	}
	return &ledger.TransferCode{
		Code:      code,
		ChatID:    fields["chat_id"],
		CreatedAt: created,
		Used:      used,
	}, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
