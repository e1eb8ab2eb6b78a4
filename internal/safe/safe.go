// Package safe 统一外部调用的失败处理：错误在调用点被记录并转换为显式的缺省结果
package safe

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Result 外部调用结果：成功值或失败原因
type Result[T any] struct {
	Value T
	Err   error
}

// OK 调用是否成功
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Get 返回值与是否成功
func (r Result[T]) Get() (T, bool) {
	return r.Value, r.Err == nil
}

// Or 失败时返回 def
func (r Result[T]) Or(def T) T {
	if r.Err != nil {
		return def
	}
	return r.Value
}

// Call 执行 fn，错误与 panic 都被记录并转为失败结果，不向上传播
func Call[T any](logger *zap.Logger, op string, fn func() (T, error)) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("External call panicked", zap.String("op", op), zap.Any("panic", p))
			var zero T
			res = Result[T]{Value: zero, Err: errPanic}
		}
	}()

	v, err := fn()
	if err != nil {
		level := zap.WarnLevel
		if errors.Is(err, context.Canceled) {
			level = zap.DebugLevel
		}
		if ce := logger.Check(level, "External call failed"); ce != nil {
			ce.Write(zap.String("op", op), zap.Error(err))
		}
		var zero T
		return Result[T]{Value: zero, Err: err}
	}
	return Result[T]{Value: v}
}

var errPanic = errors.New("external call panicked")

// RetryConfig 重试参数
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetry 默认重试参数：最多 3 次重试，500ms 起指数退避
var DefaultRetry = RetryConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     10 * time.Second,
}

// Retry 以指数退避重试 fn，直到成功、次数用尽或 ctx 取消
// 返回 Permanent 包装的错误会立即停止
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = 0

	return backoff.Retry(fn, backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx))
}

// Permanent 标记不可重试的错误
func Permanent(err error) error {
	return backoff.Permanent(err)
}
