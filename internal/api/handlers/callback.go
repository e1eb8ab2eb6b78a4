package handlers

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/carva/internal/service"
)

const callbackTemplateName = "callback.html"

var callbackTemplate = template.Must(template.New(callbackTemplateName).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Smart Car VA - {{.Status}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            color: #fff;
        }
        .container { text-align: center; padding: 2rem; max-width: 400px; }
        .status-icon { font-size: 4rem; margin-bottom: 1rem; }
        .status-text { font-size: 1.5rem; font-weight: 600; color: {{.Color}}; margin-bottom: 0.5rem; }
        .message { font-size: 1rem; color: #a0aec0; margin-bottom: 2rem; line-height: 1.5; }
        .instruction { font-size: 0.9rem; color: #718096; padding: 1rem; background: rgba(255,255,255,0.05); border-radius: 8px; }
        .telegram-link { color: #0088cc; text-decoration: none; }
        .telegram-link:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <div class="container">
        <div class="status-icon">{{.Icon}}</div>
        <div class="status-text">{{.Status}}</div>
        <div class="message">{{.Message}}</div>
        <div class="instruction">
            You can close this window and return to
            <a href="https://t.me/" class="telegram-link">Telegram</a>
            to continue using Smart Car Assistant.
        </div>
    </div>
</body>
</html>
`))

// callbackPage 回调页面数据
type callbackPage struct {
	Status  string
	Icon    string
	Color   template.CSS
	Message string
}

func newCallbackPage(success bool, message string) callbackPage {
	if success {
		return callbackPage{Status: "Success", Icon: "✅", Color: "#22c55e", Message: message}
	}
	return callbackPage{Status: "Error", Icon: "❌", Color: "#ef4444", Message: message}
}

// Callback Smartcar OAuth 回调
// GET /callback?code=&state=&error=&error_description=
// 面向浏览器跳转，成功与失败都返回 200 页面
func (h *Handler) Callback(c *gin.Context) {
	res := h.reconciler.Reconcile(c.Request.Context(), service.CallbackParams{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	})

	if !res.Success {
		h.logger.Info("OAuth callback rejected",
			zap.String("reason", string(res.Reason)),
			zap.Int64("telegram_id", res.TelegramID),
		)
	}

	c.HTML(http.StatusOK, callbackTemplateName, newCallbackPage(res.Success, res.Message))
}

// AuthURL 生成授权链接
// GET /auth/smartcar?telegram_id=
func (h *Handler) AuthURL(c *gin.Context) {
	telegramID, err := strconv.ParseInt(c.Query("telegram_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid telegram_id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_url":    h.auth.AuthURL(strconv.FormatInt(telegramID, 10)),
		"telegram_id": telegramID,
	})
}
