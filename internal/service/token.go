package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/carva/internal/models"
	"github.com/langchou/carva/internal/safe"
	"github.com/langchou/carva/internal/state"
)

// RefreshBuffer 过期前多久视为需要刷新
const RefreshBuffer = 5 * time.Minute

// NeedsRefresh 凭证是否需要刷新
// 没有过期时间的凭证总是视为已过期
func NeedsRefresh(cred *models.Credential, now time.Time) bool {
	if cred == nil || cred.Expiration == nil {
		return true
	}
	return !now.Add(RefreshBuffer).Before(*cred.Expiration)
}

// TokenService 凭证生命周期
type TokenService struct {
	logger   *zap.Logger
	auth     Authorizer
	vehicles VehicleStore
	states   *state.Manager
	now      func() time.Time
}

// NewTokenService 创建凭证服务
func NewTokenService(logger *zap.Logger, auth Authorizer, vehicles VehicleStore, states *state.Manager) *TokenService {
	if states == nil {
		states = state.NewManager(nil)
	}
	return &TokenService{
		logger:   logger.Named("token"),
		auth:     auth,
		vehicles: vehicles,
		states:   states,
		now:      time.Now,
	}
}

// EnsureValid 确保车辆持有可用凭证，必要时刷新并持久化
// 返回 false 表示车辆当前不可用
func (s *TokenService) EnsureValid(ctx context.Context, v *models.Vehicle) bool {
	if v == nil || v.Credential == nil {
		return false
	}
	if !NeedsRefresh(v.Credential, s.now()) {
		return true
	}
	if v.Credential.RefreshToken == "" {
		return false
	}

	refresh := safe.Call(s.logger, "refresh token", func() (*models.Credential, error) {
		return s.auth.Refresh(ctx, v.Credential.RefreshToken)
	})
	cred, ok := refresh.Get()
	if !ok || cred == nil || cred.AccessToken == "" {
		s.transition(ctx, v, state.EventFail)
		return false
	}

	if cred.RefreshToken == "" {
		cred.RefreshToken = v.Credential.RefreshToken
	}

	// 持久化失败时仍使用新凭证，下次调用会再次刷新
	safe.Call(s.logger, "store refreshed credential", func() (*models.Vehicle, error) {
		return s.vehicles.SetCredential(ctx, v.ID, *cred)
	})

	v.Credential = cred
	s.states.For(v).Trigger(ctx, state.EventConnect)
	v.Status = models.VehicleStatusActive

	s.logger.Info("Credential refreshed", zap.String("vehicle_id", v.ID))
	return !NeedsRefresh(cred, s.now())
}

// transition 触发状态事件并持久化新状态
func (s *TokenService) transition(ctx context.Context, v *models.Vehicle, event string) {
	machine := s.states.For(v)
	if !machine.Can(event) {
		return
	}

	next, err := machine.Trigger(ctx, event)
	if err != nil {
		s.logger.Warn("Status transition failed", zap.String("vehicle_id", v.ID), zap.String("event", event), zap.Error(err))
		return
	}
	if next == v.Status {
		return
	}

	res := safe.Call(s.logger, "update vehicle status", func() (*models.Vehicle, error) {
		return s.vehicles.UpdateStatus(ctx, v.ID, next)
	})
	if res.OK() {
		v.Status = next
	}
}
