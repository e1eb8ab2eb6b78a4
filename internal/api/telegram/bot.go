// Package telegram Telegram 长轮询传输层：每个会话一个顺序处理的 worker
package telegram

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/langchou/carva/internal/models"
	"github.com/langchou/carva/internal/safe"
	"github.com/langchou/carva/internal/service"
)

const (
	workerBuffer = 32
	workerIdle   = 5 * time.Minute
)

// API Telegram Bot API 的最小子集，*tgbotapi.BotAPI 满足该接口
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Handler 处理一条消息并返回回复
type Handler interface {
	Handle(ctx context.Context, msg service.Message) []service.Reply
}

// Bot Telegram 机器人
type Bot struct {
	api         API
	handler     Handler
	logger      *zap.Logger
	pollTimeout time.Duration
	retry       safe.RetryConfig
	idle        time.Duration

	mu      sync.Mutex
	workers map[int64]chan service.Message
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewAPI 用 token 创建 Bot API 客户端
func NewAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 90 * time.Second})
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	return api, nil
}

// New 创建机器人
func New(api API, handler Handler, logger *zap.Logger, pollTimeout time.Duration) *Bot {
	return &Bot{
		api:         api,
		handler:     handler,
		logger:      logger.Named("telegram"),
		pollTimeout: pollTimeout,
		retry:       safe.DefaultRetry,
		idle:        workerIdle,
		workers:     make(map[int64]chan service.Message),
	}
}

// Running 是否正在轮询
func (b *Bot) Running() bool {
	return b.running.Load()
}

// Run 开始长轮询，直到 ctx 取消；返回前等待所有 worker 处理完毕
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout.Seconds())
	updates := b.api.GetUpdatesChan(u)

	b.running.Store(true)
	b.logger.Info("Telegram bot polling started")

	defer func() {
		b.running.Store(false)
		b.api.StopReceivingUpdates()
		b.stopWorkers()
		b.logger.Info("Telegram bot stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return errors.New("updates channel closed")
			}
			if msg, chatID, ok := toMessage(update); ok {
				b.dispatch(ctx, chatID, msg)
			}
		}
	}
}

func toMessage(update tgbotapi.Update) (service.Message, int64, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil || m.Text == "" {
		return service.Message{}, 0, false
	}
	return service.Message{
		TelegramID: m.From.ID,
		Profile: models.UserProfile{
			Username:  m.From.UserName,
			FirstName: m.From.FirstName,
			LastName:  m.From.LastName,
		},
		Text:       m.Text,
	}, m.Chat.ID, true
}

// dispatch 交给会话 worker，保证同一会话按顺序处理
func (b *Bot) dispatch(ctx context.Context, chatID int64, msg service.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.workers[chatID]
	if !ok {
		ch = make(chan service.Message, workerBuffer)
		b.workers[chatID] = ch
		b.wg.Add(1)
		go b.work(ctx, chatID, ch)
	}
	ch <- msg
}

func (b *Bot) work(ctx context.Context, chatID int64, ch chan service.Message) {
	defer b.wg.Done()

	timer := time.NewTimer(b.idle)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			// 关闭后缓冲中的消息直接丢弃，直到通道关闭
			if ctx.Err() != nil {
				b.logger.Debug("Dropping message after shutdown", zap.Int64("chat_id", chatID))
				continue
			}
			b.handle(ctx, chatID, msg)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(b.idle)

		case <-timer.C:
			// 空闲退出；dispatch 持锁期间不退出
			if len(ch) == 0 && b.mu.TryLock() {
				if len(ch) == 0 && b.workers[chatID] == ch {
					delete(b.workers, chatID)
					b.mu.Unlock()
					return
				}
				b.mu.Unlock()
			}
			timer.Reset(b.idle)
		}
	}
}

func (b *Bot) handle(ctx context.Context, chatID int64, msg service.Message) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("Message handler panicked", zap.Int64("chat_id", chatID), zap.Any("panic", p))
		}
	}()

	for _, reply := range b.handler.Handle(ctx, msg) {
		if err := b.send(ctx, chatID, reply); err != nil {
			b.logger.Warn("Failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
	}
}

func (b *Bot) stopWorkers() {
	b.mu.Lock()
	for chatID, ch := range b.workers {
		close(ch)
		delete(b.workers, chatID)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

// Notify 主动发送消息，私聊中 chat id 与用户 id 相同
func (b *Bot) Notify(ctx context.Context, telegramID int64, text string) error {
	return b.send(ctx, telegramID, service.Reply{Text: text})
}

// send 带退避重试；Markdown 解析失败时以纯文本重发
func (b *Bot) send(ctx context.Context, chatID int64, reply service.Reply) error {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if reply.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}

	return safe.Retry(ctx, b.retry, func() error {
		_, err := b.api.Send(msg)
		if err == nil {
			return nil
		}

		var apiErr *tgbotapi.Error
		if !errors.As(err, &apiErr) {
			return err
		}
		switch {
		case apiErr.Code == http.StatusBadRequest && msg.ParseMode != "":
			b.logger.Debug("Markdown rejected, sending as plain text", zap.String("reason", apiErr.Message))
			msg.ParseMode = ""
			return err
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= 500:
			return err
		}
		return safe.Permanent(err)
	})
}
