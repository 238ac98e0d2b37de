package reservation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	rd "github.com/redis/go-redis/v9"
)

const (
	leaseKeyPrefix = "negolah:lease:"
	expiryIndexKey = "negolah:lease:expiry"
)

func leaseKey(k Key) string {
	return leaseKeyPrefix + k.String()
}

// RedisStore keeps leases in Redis. The lease record is a JSON value with a
// native TTL; the expiry index is a sorted set scored by expiry unix time.
// The record's TTL runs slightly past the indexed expiry so the sweeper
// normally sees the record before Redis drops it.
type RedisStore struct {
	client *rd.Client
	// ttlSlack is added on top of the lease TTL for the raw record.
	ttlSlack time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed lease store.
func NewRedisStore(client *rd.Client) *RedisStore {
	return &RedisStore{client: client, ttlSlack: 10 * time.Minute}
}

// Ping verifies connectivity, for readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Put(ctx context.Context, r *Reservation, ttl time.Duration) error {
	key := Key{BuyerID: r.BuyerID, ItemID: r.ItemID}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}

	set, err := s.client.SetNX(ctx, leaseKey(key), payload, ttl+s.ttlSlack).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !set {
		return ErrReservationExists
	}

	err = s.client.ZAdd(ctx, expiryIndexKey, rd.Z{
		Score:  float64(r.ExpiresAt.Unix()),
		Member: key.String(),
	}).Err()
	if err != nil {
		// Roll the record back so we never hold an unindexed lease.
		s.client.Del(ctx, leaseKey(key))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Reservation, error) {
	r, err := s.GetAny(ctx, key)
	if err != nil {
		return nil, err
	}
	if !r.ExpiresAt.After(time.Now()) {
		// The record may outlive its logical expiry by ttlSlack; treat it
		// as gone so no caller reuses an expired lease.
		return nil, ErrReservationNotFound
	}
	return r, nil
}

func (s *RedisStore) GetAny(ctx context.Context, key Key) (*Reservation, error) {
	raw, err := s.client.Get(ctx, leaseKey(key)).Bytes()
	if err == rd.Nil {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var r Reservation
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("unmarshal reservation %s: %w", key, err)
	}
	return &r, nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, leaseKey(key))
	pipe.ZRem(ctx, expiryIndexKey, key.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) ListByBuyer(ctx context.Context, buyerID string) ([]*Reservation, error) {
	var (
		out    []*Reservation
		cursor uint64
	)
	match := leaseKeyPrefix + buyerID + ":*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		for _, k := range keys {
			if k == expiryIndexKey {
				continue
			}
			r, err := s.Get(ctx, parseLeaseKey(k))
			if err == ErrReservationNotFound {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (s *RedisStore) ListAll(ctx context.Context, limit int) ([]*Reservation, error) {
	// Walk the expiry index from the closest expiry upward. Index order
	// tracks creation order because every lease gets the same TTL.
	lrange := &rd.ZRangeBy{
		Min: fmt.Sprintf("%d", time.Now().Unix()),
		Max: "+inf",
	}
	if limit > 0 {
		lrange.Count = int64(limit)
	}
	members, err := s.client.ZRangeByScore(ctx, expiryIndexKey, lrange).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	out := make([]*Reservation, 0, len(members))
	for _, m := range members {
		r, err := s.Get(ctx, parseMember(m))
		if err == ErrReservationNotFound {
			// Stale index entry; the sweeper will drop it.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) ExpiredKeys(ctx context.Context, now time.Time, limit int64) ([]Key, error) {
	members, err := s.client.ZRangeByScore(ctx, expiryIndexKey, &rd.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	keys := make([]Key, 0, len(members))
	for _, m := range members {
		keys = append(keys, parseMember(m))
	}
	return keys, nil
}

func (s *RedisStore) RemoveIndexEntry(ctx context.Context, key Key) error {
	if err := s.client.ZRem(ctx, expiryIndexKey, key.String()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func parseLeaseKey(raw string) Key {
	return parseMember(strings.TrimPrefix(raw, leaseKeyPrefix))
}

// parseMember splits "buyer:item". Buyer IDs may themselves contain colons
// (external identity providers do this), so split on the last separator.
func parseMember(m string) Key {
	i := strings.LastIndex(m, ":")
	if i < 0 {
		return Key{BuyerID: m}
	}
	return Key{BuyerID: m[:i], ItemID: m[i+1:]}
}
