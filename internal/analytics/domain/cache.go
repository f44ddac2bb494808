package domain

import (
	"context"
	"fmt"
	"time"
)

// ResultCache 计算结果缓存
// 所有方法必须支持并发调用；两个并发未命中者各自计算后写入是允许的
// （相同输入的确定性计算幂等，未固定种子的蒙特卡洛是例外）
type ResultCache interface {
	// Get 按指纹读取缓存值到 dest，返回是否命中
	Get(ctx context.Context, fingerprint string, dest any) (bool, error)
	// Set 按指纹写入缓存值，带过期时间
	Set(ctx context.Context, fingerprint string, value any, ttl time.Duration) error
	// Delete 删除单个指纹
	Delete(ctx context.Context, fingerprint string) error
	// DeletePrefix 删除指定前缀下的全部指纹（组合失效）
	DeletePrefix(ctx context.Context, prefix string) error
}

// CacheError 缓存后端故障
// 非致命：记录日志后降级为直接计算，绝不向调用方传播
type CacheError struct {
	Op  string // 出错的缓存操作
	Err error  // 底层错误
}

// Error 实现 error 接口
func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s failed: %v", e.Op, e.Err)
}

// Unwrap 返回底层错误
func (e *CacheError) Unwrap() error {
	return e.Err
}

// NewCacheError 创建缓存错误
func NewCacheError(op string, err error) *CacheError {
	return &CacheError{Op: op, Err: err}
}
