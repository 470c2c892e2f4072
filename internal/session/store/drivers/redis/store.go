// Package redis implements store.SessionStore on a Redis server. Liveness
// is key existence: every entry is SET with a TTL equal to its token's
// remaining lifetime, so expired tokens disappear without a reaper.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quorumhq/sessiond/internal/session/domain"
	"github.com/quorumhq/sessiond/internal/session/store"
	"github.com/quorumhq/sessiond/pkg/tokenx"
)

const scanBatch = 100

// consumeAndReplace deletes the spent refresh key and writes the
// replacement entries in one atomic step. KEYS[1] old refresh key,
// KEYS[2] new refresh key, KEYS[3] new access key, KEYS[4] grace key.
// ARGV: refresh meta, access meta, refresh TTL ms, access TTL ms,
// grace payload, grace TTL ms (0 disables).
var consumeAndReplace = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[3])
redis.call("SET", KEYS[3], ARGV[2], "PX", ARGV[4])
if tonumber(ARGV[6]) > 0 then
	redis.call("SET", KEYS[4], ARGV[5], "PX", ARGV[6])
end
return 1
`)

// Store is a Redis-backed session store. Safe for concurrent use.
type Store struct {
	client  *redis.Client
	timeout time.Duration
}

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// Timeout bounds every store call. Zero means 3s.
	Timeout time.Duration
}

// New connects, pings and returns the store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	s := &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		timeout: opts.Timeout,
	}
	if err := s.Ping(ctx); err != nil {
		_ = s.client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// sessionKey layout: sess:{subject}:{kind}:{jti}. Subjects are ULIDs and
// jtis are UUIDs, neither contains a colon.
func sessionKey(subject string, kind tokenx.Kind, jti string) string {
	return "sess:" + subject + ":" + string(kind) + ":" + jti
}

func graceKey(subject, jti string) string {
	return "rotated:" + subject + ":" + jti
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

func (s *Store) Put(ctx context.Context, subject string, kind tokenx.Kind, meta domain.SessionMeta, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("redis: non-positive ttl for %s entry", kind)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("redis: marshal meta: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Set(ctx, sessionKey(subject, kind, meta.JTI), data, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Contains(ctx context.Context, subject string, kind tokenx.Kind, jti string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.client.Exists(ctx, sessionKey(subject, kind, jti)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

func (s *Store) Meta(ctx context.Context, subject string, kind tokenx.Kind, jti string) (domain.SessionMeta, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, sessionKey(subject, kind, jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionMeta{}, store.ErrNotFound
	}
	if err != nil {
		return domain.SessionMeta{}, unavailable(err)
	}

	var meta domain.SessionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.SessionMeta{}, fmt.Errorf("redis: unmarshal meta: %w", err)
	}
	return meta, nil
}

func (s *Store) Touch(ctx context.Context, subject string, kind tokenx.Kind, jti string, at time.Time) error {
	meta, err := s.Meta(ctx, subject, kind, jti)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	meta.LastSeen = at.UTC()

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("redis: marshal meta: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Set(ctx, sessionKey(subject, kind, jti), data, redis.KeepTTL).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, subject string, kind tokenx.Kind, jti string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.client.Del(ctx, sessionKey(subject, kind, jti)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

func (s *Store) DeleteSession(ctx context.Context, subject, sid string) error {
	metas, err := s.List(ctx, subject)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	for _, meta := range metas {
		if meta.SID != sid {
			continue
		}
		if err := s.client.Del(ctx, sessionKey(subject, meta.Kind, meta.JTI)).Err(); err != nil {
			return unavailable(err)
		}
	}
	return nil
}

func (s *Store) DeleteKind(ctx context.Context, subject string, kind tokenx.Kind) error {
	return s.deletePattern(ctx, "sess:"+subject+":"+string(kind)+":*")
}

func (s *Store) DeleteAll(ctx context.Context, subject string) error {
	if err := s.deletePattern(ctx, "sess:"+subject+":*"); err != nil {
		return err
	}
	// Grace records would resurrect a pair after a full invalidation.
	return s.deletePattern(ctx, "rotated:"+subject+":*")
}

func (s *Store) deletePattern(ctx context.Context, pattern string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return unavailable(err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return unavailable(err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *Store) List(ctx context.Context, subject string) ([]domain.SessionMeta, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		metas  []domain.SessionMeta
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "sess:"+subject+":*", scanBatch).Result()
		if err != nil {
			return nil, unavailable(err)
		}
		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue // expired between SCAN and GET
			}
			if err != nil {
				return nil, unavailable(err)
			}
			var meta domain.SessionMeta
			if err := json.Unmarshal(data, &meta); err != nil {
				return nil, fmt.Errorf("redis: unmarshal meta: %w", err)
			}
			metas = append(metas, meta)
		}
		cursor = next
		if cursor == 0 {
			return metas, nil
		}
	}
}

func (s *Store) ConsumeAndReplace(ctx context.Context, subject, oldJTI string, access, refresh store.Entry, grace *store.GracePair) (bool, error) {
	refreshData, err := json.Marshal(refresh.Meta)
	if err != nil {
		return false, fmt.Errorf("redis: marshal meta: %w", err)
	}
	accessData, err := json.Marshal(access.Meta)
	if err != nil {
		return false, fmt.Errorf("redis: marshal meta: %w", err)
	}

	gracePayload := []byte("{}")
	graceTTL := time.Duration(0)
	if grace != nil && grace.TTL > 0 {
		gracePayload, err = json.Marshal(grace.Pair)
		if err != nil {
			return false, fmt.Errorf("redis: marshal grace pair: %w", err)
		}
		graceTTL = grace.TTL
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys := []string{
		sessionKey(subject, tokenx.KindRefresh, oldJTI),
		sessionKey(subject, tokenx.KindRefresh, refresh.JTI),
		sessionKey(subject, tokenx.KindAccess, access.JTI),
		graceKey(subject, oldJTI),
	}
	res, err := consumeAndReplace.Run(ctx, s.client, keys,
		refreshData, accessData,
		refresh.TTL.Milliseconds(), access.TTL.Milliseconds(),
		gracePayload, graceTTL.Milliseconds(),
	).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return res == 1, nil
}

func (s *Store) ReplacementFor(ctx context.Context, subject, retiredJTI string) (domain.TokenPair, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, graceKey(subject, retiredJTI)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TokenPair{}, store.ErrNotFound
	}
	if err != nil {
		return domain.TokenPair{}, unavailable(err)
	}

	var pair domain.TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return domain.TokenPair{}, fmt.Errorf("redis: unmarshal grace pair: %w", err)
	}
	return pair, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
