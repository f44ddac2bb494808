// 包 分析服务的 Redis 缓存适配器
package redis

import (
	"context"
	"time"

	"github.com/wyfcoding/portfoliorisk/internal/analytics/domain"
	"github.com/wyfcoding/portfoliorisk/pkg/cache"
)

// ResultCache 基于 Redis 的结果缓存实现
type ResultCache struct {
	cache *cache.RedisCache
}

// 编译期接口实现检查
var _ domain.ResultCache = (*ResultCache)(nil)

// NewResultCache 创建 Redis 结果缓存
func NewResultCache(c *cache.RedisCache) *ResultCache {
	return &ResultCache{cache: c}
}

// Get 按指纹读取缓存值
func (rc *ResultCache) Get(ctx context.Context, fingerprint string, dest any) (bool, error) {
	return rc.cache.GetJSON(ctx, fingerprint, dest)
}

// Set 按指纹写入缓存值
func (rc *ResultCache) Set(ctx context.Context, fingerprint string, value any, ttl time.Duration) error {
	return rc.cache.SetJSON(ctx, fingerprint, value, ttl)
}

// Delete 删除单个指纹
func (rc *ResultCache) Delete(ctx context.Context, fingerprint string) error {
	return rc.cache.Delete(ctx, fingerprint)
}

// DeletePrefix 删除前缀下的全部指纹
func (rc *ResultCache) DeletePrefix(ctx context.Context, prefix string) error {
	return rc.cache.DeleteByPrefix(ctx, prefix)
}
