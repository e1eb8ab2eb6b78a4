package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/carva/internal/service"
	"github.com/langchou/carva/pkg/ws"
)

type fakeReconciler struct {
	got    service.CallbackParams
	result *service.ReconcileResult
}

func (f *fakeReconciler) Reconcile(_ context.Context, p service.CallbackParams) *service.ReconcileResult {
	f.got = p
	return f.result
}

type fakeAuth struct{}

func (fakeAuth) AuthURL(state string) string {
	return "https://connect.example/oauth/authorize?state=" + state
}

func newRouter(t *testing.T, rec *fakeReconciler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(zap.NewNop(), nil)
	go hub.Run(ctx)

	r := gin.New()
	NewHandler(zap.NewNop(), rec, fakeAuth{}, hub, func() bool { return true }, "development").RegisterRoutes(r)
	return r
}

func do(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestCallback(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		rec := &fakeReconciler{result: &service.ReconcileResult{Success: true, Message: "1 vehicle(s) connected!"}}
		w := do(newRouter(t, rec), "/callback?code=abc&state=42")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "1 vehicle(s) connected!")
		assert.Contains(t, w.Body.String(), "Success")
		assert.Equal(t, service.CallbackParams{Code: "abc", State: "42"}, rec.got)
	})

	t.Run("failure still renders 200", func(t *testing.T) {
		rec := &fakeReconciler{result: &service.ReconcileResult{
			Reason:  service.RejectUpstreamError,
			Message: "Authorization failed: <denied>",
		}}
		w := do(newRouter(t, rec), "/callback?error=access_denied&error_description=%3Cdenied%3E")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Error")
		assert.Contains(t, w.Body.String(), "Authorization failed: &lt;denied&gt;")
		assert.Equal(t, "access_denied", rec.got.Error)
		assert.Equal(t, "<denied>", rec.got.ErrorDescription)
	})
}

func TestAuthURL(t *testing.T) {
	r := newRouter(t, &fakeReconciler{})

	w := do(r, "/auth/smartcar?telegram_id=42")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		AuthURL    string `json:"auth_url"`
		TelegramID int64  `json:"telegram_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "https://connect.example/oauth/authorize?state=42", body.AuthURL)
	assert.Equal(t, int64(42), body.TelegramID)

	assert.Equal(t, http.StatusBadRequest, do(r, "/auth/smartcar?telegram_id=abc").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, "/auth/smartcar").Code)
}

func TestHealthAndRoot(t *testing.T) {
	r := newRouter(t, &fakeReconciler{})

	w := do(r, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, true, health["bot_running"])
	assert.Equal(t, "development", health["environment"])
	assert.Equal(t, float64(0), health["ws_clients"])

	w = do(r, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Smart Car Virtual Assistant")
}
