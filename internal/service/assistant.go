package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/langchou/carva/internal/api/llm"
	"github.com/langchou/carva/internal/intent"
	"github.com/langchou/carva/internal/models"
	"github.com/langchou/carva/internal/safe"
)

// SystemPrompt 助手的系统提示词
const SystemPrompt = `You are a helpful Smart Car Virtual Assistant. Your role is to help users interact with their connected vehicles through natural conversation.

You can help users with:
- Checking vehicle status (fuel/battery level, odometer, location, tire pressure)
- Locking and unlocking their vehicle
- Listing their connected vehicles
- Answering questions about their vehicle data

When a user makes a request, you must respond with a JSON object containing:
- "message": A friendly response message to show the user
- "action": One of the following actions (or "none" if no action needed):
  - "get_status" - Get comprehensive vehicle status
  - "get_location" - Get vehicle location
  - "get_fuel" - Get fuel level
  - "get_battery" - Get battery level (for EVs)
  - "get_odometer" - Get odometer reading
  - "get_tire_pressure" - Get tire pressure
  - "lock" - Lock the vehicle
  - "unlock" - Unlock the vehicle
  - "list_vehicles" - List all connected vehicles
  - "help" - Show help information
  - "none" - No action needed (just conversation)
- "parameters": Any parameters needed for the action (usually empty object {})
- "confidence": A number between 0 and 1 indicating how confident you are in understanding the request

Always respond with valid JSON. Be friendly and helpful. If you're unsure what the user wants, ask for clarification with action "none".

Important safety notes:
- Always confirm before unlocking a vehicle
- Provide clear, accurate information about vehicle status
- If an action fails, explain what happened in a user-friendly way

Current context will be provided in the user message, including vehicle information if available.`

// Assistant 处理自由文本消息
type Assistant struct {
	logger     *zap.Logger
	completer  llm.Completer
	dispatcher *Dispatcher
}

// NewAssistant 创建助手，completer 为 nil 表示未配置模型
func NewAssistant(logger *zap.Logger, completer llm.Completer, dispatcher *Dispatcher) *Assistant {
	return &Assistant{
		logger:     logger.Named("assistant"),
		completer:  completer,
		dispatcher: dispatcher,
	}
}

// Enabled 是否配置了模型
func (a *Assistant) Enabled() bool {
	return a.completer != nil
}

// BuildPrompt 构造请求
func BuildPrompt(text string, vehicles []*models.Vehicle, snap *models.TelemetrySnapshot) llm.Prompt {
	return llm.Prompt{
		System: SystemPrompt,
		User:   "Context:\n" + BuildContext(vehicles, snap) + "\n\nUser message: " + text,
	}
}

// Handle 理解用户消息并执行对应动作
func (a *Assistant) Handle(ctx context.Context, user *models.User, text string) string {
	if !a.Enabled() {
		return MsgLLMNotConfigured
	}

	vehicles := a.dispatcher.Vehicles(ctx, user)

	var snap *models.TelemetrySnapshot
	if v := Primary(vehicles); a.dispatcher.Usable(ctx, v) {
		snap = a.dispatcher.Snapshot(ctx, v)
	}

	reply, ok := safe.Call(a.logger, "complete", func() (string, error) {
		return a.completer.Complete(ctx, BuildPrompt(text, vehicles, snap))
	}).Get()
	if !ok || strings.TrimSpace(reply) == "" {
		return MsgLLMTrouble
	}

	in := intent.Parse(reply)
	a.logger.Debug("Parsed intent",
		zap.Int64("telegram_id", user.TelegramID),
		zap.Stringer("action", in.Action),
		zap.Float64("confidence", in.Confidence),
	)

	result := a.dispatcher.Execute(ctx, in, vehicles)
	if result == "" {
		return in.Message
	}
	return in.Message + "\n\n" + result
}
