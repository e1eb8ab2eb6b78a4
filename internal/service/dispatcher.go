package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/langchou/carva/internal/intent"
	"github.com/langchou/carva/internal/models"
	"github.com/langchou/carva/internal/safe"
)

// Telemetry 遥测聚合
type Telemetry interface {
	FetchAll(ctx context.Context, cred *models.Credential, vehicleID string) (*models.TelemetrySnapshot, error)
}

// Dispatcher 将意图映射到车辆操作并生成回复文本
type Dispatcher struct {
	logger    *zap.Logger
	vehicles  VehicleStore
	api       VehicleAPI
	tokens    *TokenService
	telemetry Telemetry
}

// NewDispatcher 创建意图分发器
func NewDispatcher(logger *zap.Logger, vehicles VehicleStore, api VehicleAPI, tokens *TokenService, telemetry Telemetry) *Dispatcher {
	return &Dispatcher{
		logger:    logger.Named("dispatcher"),
		vehicles:  vehicles,
		api:       api,
		tokens:    tokens,
		telemetry: telemetry,
	}
}

// Vehicles 列出用户车辆，失败视为空列表
func (d *Dispatcher) Vehicles(ctx context.Context, user *models.User) []*models.Vehicle {
	return safe.Call(d.logger, "list user vehicles", func() ([]*models.Vehicle, error) {
		return d.vehicles.ListByUserID(ctx, user.ID)
	}).Or(nil)
}

// Primary 用户的主车辆（按创建顺序第一辆）
func Primary(vehicles []*models.Vehicle) *models.Vehicle {
	if len(vehicles) == 0 {
		return nil
	}
	return vehicles[0]
}

// Usable 确保车辆凭证可用
func (d *Dispatcher) Usable(ctx context.Context, v *models.Vehicle) bool {
	return v != nil && d.tokens.EnsureValid(ctx, v)
}

// Snapshot 获取车辆遥测，失败返回 nil
func (d *Dispatcher) Snapshot(ctx context.Context, v *models.Vehicle) *models.TelemetrySnapshot {
	snap, err := d.telemetry.FetchAll(ctx, v.Credential, v.SmartcarVehicleID)
	if err != nil {
		if !errors.Is(err, ErrNoTelemetry) {
			d.logger.Warn("Fetch telemetry failed", zap.String("vehicle_id", v.ID), zap.Error(err))
		}
		return nil
	}
	return snap
}

// Dispatch 执行意图，返回空字符串表示无输出
func (d *Dispatcher) Dispatch(ctx context.Context, user *models.User, in intent.Intent) string {
	if !in.Action.Valid() || in.Action == intent.ActionNone {
		return ""
	}
	return d.Execute(ctx, in, d.Vehicles(ctx, user))
}

// Execute 使用已加载的车辆列表执行意图
func (d *Dispatcher) Execute(ctx context.Context, in intent.Intent, vehicles []*models.Vehicle) string {
	if !in.Action.Valid() || in.Action == intent.ActionNone {
		return ""
	}

	switch in.Action {
	case intent.ActionListVehicles:
		return formatShortList(vehicles)
	case intent.ActionHelp:
		return MsgHelpHint
	}

	v := Primary(vehicles)
	if !d.Usable(ctx, v) {
		return MsgConnectFirst
	}

	switch in.Action {
	case intent.ActionStatus:
		snap := d.Snapshot(ctx, v)
		if snap == nil {
			return MsgStatusUnavailable
		}
		return FormatSummary(v, snap)

	case intent.ActionLock:
		if d.control(ctx, "lock vehicle", v, d.api.Lock) {
			return "✅ " + v.DisplayName() + " has been locked."
		}
		return "❌ Failed to lock " + v.DisplayName() + "."

	case intent.ActionUnlock:
		if d.control(ctx, "unlock vehicle", v, d.api.Unlock) {
			return "🔓 " + v.DisplayName() + " has been unlocked."
		}
		return "❌ Failed to unlock " + v.DisplayName() + "."

	case intent.ActionLocation:
		return MsgLocationDisabled

	case intent.ActionTirePressure:
		return MsgTirePressureOff

	case intent.ActionFuel, intent.ActionBattery, intent.ActionOdometer:
		snap := d.Snapshot(ctx, v)
		if snap == nil {
			return MsgDataUnavailable
		}
		return formatField(fieldFor(in.Action), v, snap)
	}

	return ""
}

func (d *Dispatcher) control(ctx context.Context, op string, v *models.Vehicle, fn func(ctx context.Context, accessToken, vehicleID string) error) bool {
	res := safe.Call(d.logger, op, func() (struct{}, error) {
		return struct{}{}, fn(ctx, v.Credential.AccessToken, v.SmartcarVehicleID)
	})
	return res.OK()
}

func fieldFor(a intent.Action) string {
	switch a {
	case intent.ActionFuel:
		return ReadFuel
	case intent.ActionBattery:
		return ReadBattery
	case intent.ActionOdometer:
		return ReadOdometer
	}
	return ""
}
