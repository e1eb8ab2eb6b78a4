package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/langchou/carva/internal/models"
	"github.com/langchou/carva/internal/safe"
)

// ErrNoTelemetry 所有读取项均失败
var ErrNoTelemetry = errors.New("no telemetry available")

// 遥测读取项
const (
	ReadOdometer     = "odometer"
	ReadFuel         = "fuel"
	ReadBattery      = "battery"
	ReadLocation     = "location"
	ReadTirePressure = "tire_pressure"
)

// DefaultReads 默认读取集合
var DefaultReads = []string{ReadOdometer, ReadFuel, ReadBattery, ReadLocation, ReadTirePressure}

// TelemetryService 并发读取车辆遥测并合并为快照
type TelemetryService struct {
	logger *zap.Logger
	api    VehicleAPI
	reads  []string
	now    func() time.Time
}

// NewTelemetryService 创建遥测服务，reads 为空时使用默认集合
func NewTelemetryService(logger *zap.Logger, api VehicleAPI, reads []string) *TelemetryService {
	if len(reads) == 0 {
		reads = DefaultReads
	}
	return &TelemetryService{
		logger: logger.Named("telemetry"),
		api:    api,
		reads:  reads,
		now:    time.Now,
	}
}

// FetchAll 执行全部读取，单项失败不影响其他项
// 全部失败时返回 ErrNoTelemetry
func (s *TelemetryService) FetchAll(ctx context.Context, cred *models.Credential, vehicleID string) (*models.TelemetrySnapshot, error) {
	if cred == nil || cred.AccessToken == "" {
		return nil, ErrNoTelemetry
	}
	token := cred.AccessToken
	snap := &models.TelemetrySnapshot{VehicleID: vehicleID}

	// 每个读取项只写入快照的独立字段
	var g errgroup.Group
	for _, read := range s.reads {
		switch read {
		case ReadOdometer:
			g.Go(func() error {
				snap.Odometer = readValue(s, read, func() (*models.Odometer, error) {
					return s.api.Odometer(ctx, token, vehicleID)
				})
				return nil
			})
		case ReadFuel:
			g.Go(func() error {
				snap.Fuel = readValue(s, read, func() (*models.Fuel, error) {
					return s.api.Fuel(ctx, token, vehicleID)
				})
				return nil
			})
		case ReadBattery:
			g.Go(func() error {
				snap.Battery = readValue(s, read, func() (*models.Battery, error) {
					return s.api.Battery(ctx, token, vehicleID)
				})
				return nil
			})
		case ReadLocation:
			g.Go(func() error {
				snap.Location = readValue(s, read, func() (*models.Location, error) {
					return s.api.Location(ctx, token, vehicleID)
				})
				return nil
			})
		case ReadTirePressure:
			g.Go(func() error {
				snap.TirePressure = readValue(s, read, func() (*models.TirePressure, error) {
					return s.api.TirePressure(ctx, token, vehicleID)
				})
				return nil
			})
		default:
			s.logger.Debug("Skipping unknown telemetry read", zap.String("read", read))
		}
	}
	_ = g.Wait()

	if snap.Empty() {
		s.logger.Warn("All telemetry reads failed", zap.String("vehicle_id", vehicleID))
		return nil, ErrNoTelemetry
	}

	snap.CapturedAt = s.now()
	return snap, nil
}

// readValue 单项读取，失败返回 nil
func readValue[T any](s *TelemetryService, read string, fn func() (*T, error)) *T {
	v, ok := safe.Call(s.logger, "read "+read, fn).Get()
	if !ok {
		return nil
	}
	return v
}
