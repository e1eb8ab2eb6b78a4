// Package llm 对话模型客户端，统一为单一的 Completer 接口
package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/langchou/carva/internal/config"
)

// 生成参数
const (
	maxTokens   = 1000
	temperature = 0.7
)

// Prompt 一次请求的输入
type Prompt struct {
	System string
	User   string
}

// Completer 对话模型
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// ErrEmptyReply 模型没有返回文本
var ErrEmptyReply = errors.New("empty reply")

// Select 选择提供方：优先使用配置的默认提供方，缺少密钥时按 openai、anthropic、gemini 顺序回退
// 没有可用密钥时返回空字符串
func Select(cfg *config.Config) string {
	keys := map[string]string{
		config.ProviderOpenAI:    cfg.OpenAIAPIKey,
		config.ProviderAnthropic: cfg.AnthropicAPIKey,
		config.ProviderGemini:    cfg.GeminiAPIKey,
	}
	if keys[cfg.LLMProvider] != "" {
		return cfg.LLMProvider
	}
	for _, p := range []string{config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGemini} {
		if keys[p] != "" {
			return p
		}
	}
	return ""
}

// New 按配置创建客户端；没有可用提供方时返回 nil, nil
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Completer, error) {
	provider := Select(cfg)
	if provider != cfg.LLMProvider && provider != "" {
		logger.Warn("Default LLM provider has no API key, falling back",
			zap.String("default", cfg.LLMProvider),
			zap.String("provider", provider),
		)
	}

	switch provider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case config.ProviderAnthropic:
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	case config.ProviderGemini:
		c, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return c, nil
	}

	logger.Warn("No LLM provider configured, natural language disabled")
	return nil, nil
}
