package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"SwiftyBank/pkg/logger"
)

// CacheConfig 描述 Redis 会话缓存的连接参数。
type CacheConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// CachedStore 在底层存储之上叠加 Redis 读穿缓存。缓存不可用时
// 静默退回底层存储，会话读写永远不因缓存故障失败。
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
}

// NewCachedStore 创建带缓存的会话存储。
func NewCachedStore(inner Store, cfg CacheConfig) (*CachedStore, error) {
	if inner == nil {
		return nil, errors.New("底层会话存储不能为空")
	}
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl}, nil
}

func cacheKey(id string) string {
	return "swifty:session:" + id
}

// Get 实现 Store 接口。缓存命中直接返回，未命中读底层并回填。
func (c *CachedStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err == nil {
		var sess Session
		if unmarshalErr := json.Unmarshal(raw, &sess); unmarshalErr == nil {
			return &sess, nil
		}
		// 缓存损坏时删掉重建。
		_ = c.client.Del(ctx, cacheKey(id)).Err()
	} else if err != redis.Nil {
		logger.L().Warn("会话缓存读取失败", "session_id", id, "error", err)
	}

	sess, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.backfill(ctx, sess)
	return sess, nil
}

// Save 实现 Store 接口。先落底层存储，再刷新缓存。
func (c *CachedStore) Save(ctx context.Context, sess *Session) error {
	if err := c.inner.Save(ctx, sess); err != nil {
		return err
	}
	c.backfill(ctx, sess)
	return nil
}

// Touch 实现 Store 接口。活跃时间只更新底层，缓存靠 TTL 失效。
func (c *CachedStore) Touch(ctx context.Context, id string, at time.Time) error {
	return c.inner.Touch(ctx, id, at)
}

func (c *CachedStore) backfill(ctx context.Context, sess *Session) {
	raw, err := json.Marshal(sess)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(sess.ID), raw, c.ttl).Err(); err != nil {
		logger.L().Warn("会话缓存写入失败", "session_id", sess.ID, "error", err)
	}
}

// Close 关闭 Redis 连接。
func (c *CachedStore) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

var _ Store = (*CachedStore)(nil)
