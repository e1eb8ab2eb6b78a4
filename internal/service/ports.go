package service

import (
	"context"

	"github.com/langchou/carva/internal/models"
	"github.com/langchou/carva/internal/repository"
)

// UserStore 用户存储
type UserStore interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetOrCreate(ctx context.Context, telegramID int64, profile models.UserProfile) (*models.User, error)
}

// VehicleStore 车辆存储
type VehicleStore interface {
	Create(ctx context.Context, nv repository.NewVehicle) (*models.Vehicle, bool, error)
	GetBySmartcarID(ctx context.Context, smartcarID string) (*models.Vehicle, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.Vehicle, error)
	SetCredential(ctx context.Context, id string, cred models.Credential) (*models.Vehicle, error)
	UpdateStatus(ctx context.Context, id string, status models.VehicleStatus) (*models.Vehicle, error)
}

// Authorizer OAuth 授权
type Authorizer interface {
	AuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*models.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Credential, error)
}

// VehicleAPI 车辆数据与控制
type VehicleAPI interface {
	ListVehicleIDs(ctx context.Context, accessToken string) ([]string, error)
	Attributes(ctx context.Context, accessToken, vehicleID string) (*models.VehicleInfo, error)
	Odometer(ctx context.Context, accessToken, vehicleID string) (*models.Odometer, error)
	Fuel(ctx context.Context, accessToken, vehicleID string) (*models.Fuel, error)
	Battery(ctx context.Context, accessToken, vehicleID string) (*models.Battery, error)
	Location(ctx context.Context, accessToken, vehicleID string) (*models.Location, error)
	TirePressure(ctx context.Context, accessToken, vehicleID string) (*models.TirePressure, error)
	Lock(ctx context.Context, accessToken, vehicleID string) error
	Unlock(ctx context.Context, accessToken, vehicleID string) error
}

// VehicleProvider 车辆服务商 (Smartcar)
type VehicleProvider interface {
	Authorizer
	VehicleAPI
}

// EventPublisher 实时事件推送
type EventPublisher interface {
	Broadcast(eventType string, data any)
	SendToUser(telegramID int64, eventType string, data any)
}

// Notifier 主动向用户发送消息
type Notifier interface {
	Notify(ctx context.Context, telegramID int64, text string) error
}

// 事件类型
const (
	EventVehicleConnected = "vehicle_connected"
	EventVehicleUpdated   = "vehicle_updated"
	EventVehicleStatus    = "vehicle_status"
)

// VehicleEvent 推送给订阅者的车辆摘要，不含凭证与 Smartcar 标识
type VehicleEvent struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Status models.VehicleStatus `json:"status"`
}

func vehicleEvent(v *models.Vehicle) VehicleEvent {
	return VehicleEvent{ID: v.ID, Name: v.DisplayName(), Status: v.Status}
}

type nopPublisher struct{}

func (nopPublisher) Broadcast(string, any) {}
func (nopPublisher) SendToUser(int64, string, any) {}
