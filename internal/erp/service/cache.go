package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 缓存键前缀
const (
	cacheKeyOrderList    = "orders:list:"
	cacheKeySupplierList = "suppliers:list:"
	cacheKeyMaterialList = "materials:list:"
	cacheKeyLowStock     = "materials:lowstock"
	cacheKeyStats        = "stats:"
)

const cacheTTL = 5 * time.Minute

// Cache 旁路缓存协作方。失效为尽力而为：写库成功后调用，
// 失败只记日志，绝不作为操作失败返回给调用方
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{})
	Invalidate(ctx context.Context, prefixes ...string)
}

// RedisCache 基于redis的旁路缓存
type RedisCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisCache(rdb *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, logger: logger}
}

// Get 读缓存并反序列化，未命中或出错返回false
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

// Set 写缓存，失败忽略
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, cacheTTL).Err(); err != nil {
		c.logger.Warn("缓存写入失败", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate 按前缀批量失效。SCAN逐批DEL，任何错误只记警告，
// 残留条目等TTL过期，属可接受的陈旧窗口
func (c *RedisCache) Invalidate(ctx context.Context, prefixes ...string) {
	for _, prefix := range prefixes {
		iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			c.logger.Warn("缓存失效扫描失败", zap.String("prefix", prefix), zap.Error(err))
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			c.logger.Warn("缓存失效删除失败", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}

// NoopCache 空实现，未配置redis时使用
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string, dest interface{}) bool { return false }
func (NoopCache) Set(ctx context.Context, key string, value interface{})     {}
func (NoopCache) Invalidate(ctx context.Context, prefixes ...string)         {}
