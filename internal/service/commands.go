package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/langchou/carva/internal/models"
	"github.com/langchou/carva/internal/safe"
)

// Message 一条入站消息
type Message struct {
	TelegramID int64
	Profile    models.UserProfile
	Text       string
}

// Reply 一条待发送的回复
type Reply struct {
	Text     string
	Markdown bool
}

func plain(text string) Reply    { return Reply{Text: text} }
func markdown(text string) Reply { return Reply{Text: text, Markdown: true} }

// LiveTokens 签发实时事件订阅令牌
type LiveTokens interface {
	Mint(telegramID int64) (string, error)
}

// Commands 会话命令路由
type Commands struct {
	logger     *zap.Logger
	users      UserStore
	auth       Authorizer
	dispatcher *Dispatcher
	assistant  *Assistant
	live       LiveTokens
}

// NewCommands 创建命令路由，live 为 nil 时 /live 不可用
func NewCommands(logger *zap.Logger, users UserStore, auth Authorizer, dispatcher *Dispatcher, assistant *Assistant, live LiveTokens) *Commands {
	return &Commands{
		logger:     logger.Named("commands"),
		users:      users,
		auth:       auth,
		dispatcher: dispatcher,
		assistant:  assistant,
		live:       live,
	}
}

// ParseCommand 拆出命令名，"/status@carva_bot now" -> "status"
func ParseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), true
}

// Handle 处理一条消息，按顺序返回全部回复
func (c *Commands) Handle(ctx context.Context, msg Message) []Reply {
	cmd, isCommand := ParseCommand(msg.Text)
	if isCommand {
		c.logger.Info("Command received", zap.Int64("telegram_id", msg.TelegramID), zap.String("command", cmd))
	}

	if isCommand && cmd == "help" {
		return []Reply{markdown(MsgHelp)}
	}

	user, ok := safe.Call(c.logger, "get or create user", func() (*models.User, error) {
		return c.users.GetOrCreate(ctx, msg.TelegramID, msg.Profile)
	}).Get()
	if !ok || user == nil {
		return []Reply{plain(MsgAccountSetupFailed)}
	}

	if !isCommand {
		return []Reply{markdown(c.assistant.Handle(ctx, user, msg.Text))}
	}

	switch cmd {
	case "start":
		return []Reply{plain(MsgWelcome)}
	case "connect":
		return []Reply{plain(ConnectMessage(c.auth.AuthURL(strconv.FormatInt(user.TelegramID, 10))))}
	case "vehicles":
		return []Reply{plain(FormatVehicleList(c.dispatcher.Vehicles(ctx, user)))}
	case "status":
		return c.status(ctx, user)
	case "live":
		return []Reply{plain(c.liveToken(user))}
	}
	return []Reply{plain(MsgHelpHint)}
}

func (c *Commands) status(ctx context.Context, user *models.User) []Reply {
	v := Primary(c.dispatcher.Vehicles(ctx, user))
	if v == nil {
		return []Reply{plain(MsgNoVehiclesYet)}
	}
	if !c.dispatcher.Usable(ctx, v) {
		return []Reply{plain("Unable to access " + v.DisplayName() + ". Please reconnect using /connect.")}
	}

	replies := []Reply{plain("Fetching status for " + v.DisplayName() + "...")}
	snap := c.dispatcher.Snapshot(ctx, v)
	if snap == nil {
		return append(replies, plain("Unable to retrieve vehicle data. Please try again later or reconnect using /connect."))
	}
	return append(replies, markdown(FormatSummary(v, snap)))
}

// liveToken 令牌只通过 Telegram 会话发放，持有者才能订阅该用户的事件
func (c *Commands) liveToken(user *models.User) string {
	if c.live == nil {
		return MsgLiveUnavailable
	}
	token, ok := safe.Call(c.logger, "mint live token", func() (string, error) {
		return c.live.Mint(user.TelegramID)
	}).Get()
	if !ok {
		return MsgLiveUnavailable
	}
	return LiveTokenMessage(token)
}
