package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/langchou/carva/internal/models"
	"github.com/langchou/carva/internal/repository"
	"github.com/langchou/carva/internal/safe"
)

// CallbackParams OAuth 回调参数
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// RejectReason 回调被拒绝的原因
type RejectReason string

const (
	RejectUpstreamError  RejectReason = "upstream_error"
	RejectMissingCode    RejectReason = "missing_code"
	RejectMissingState   RejectReason = "missing_state"
	RejectInvalidState   RejectReason = "invalid_state"
	RejectUnknownUser    RejectReason = "unknown_user"
	RejectExchangeFailed RejectReason = "exchange_failed"
	RejectNoVehicles     RejectReason = "no_vehicles"
	RejectStoreFailed    RejectReason = "store_failed"
)

var rejectMessages = map[RejectReason]string{
	RejectMissingCode:    "No authorization code received.",
	RejectMissingState:   "Invalid state parameter. Please try connecting again.",
	RejectInvalidState:   "Invalid state parameter.",
	RejectUnknownUser:    "User not found. Please start the bot with /start first.",
	RejectExchangeFailed: "Failed to exchange authorization code. Please try again.",
	RejectNoVehicles:     "No vehicles found on your account.",
	RejectStoreFailed:    "Failed to save your vehicles. Please try again.",
}

// ReconcileResult 回调处理结果
type ReconcileResult struct {
	Success    bool
	Reason     RejectReason
	Message    string
	TelegramID int64
	Created    int
	Updated    int
	Failed     int
	Vehicles   []*models.Vehicle
}

func reject(reason RejectReason, message string) *ReconcileResult {
	if message == "" {
		message = rejectMessages[reason]
	}
	return &ReconcileResult{Reason: reason, Message: message}
}

// Reconciler 处理 Smartcar OAuth 回调：换取凭证并写入车辆
type Reconciler struct {
	logger   *zap.Logger
	provider VehicleProvider
	users    UserStore
	vehicles VehicleStore
	events   EventPublisher
	notifier Notifier
}

// NewReconciler 创建回调处理器，events 与 notifier 可为 nil
func NewReconciler(logger *zap.Logger, provider VehicleProvider, users UserStore, vehicles VehicleStore, events EventPublisher, notifier Notifier) *Reconciler {
	if events == nil {
		events = nopPublisher{}
	}
	return &Reconciler{
		logger:   logger.Named("reconciler"),
		provider: provider,
		users:    users,
		vehicles: vehicles,
		events:   events,
		notifier: notifier,
	}
}

// Reconcile 处理一次回调
// 同一 code/state 重复处理只会更新已有车辆，不会产生重复记录
func (r *Reconciler) Reconcile(ctx context.Context, p CallbackParams) *ReconcileResult {
	if p.Error != "" {
		r.logger.Error("Smartcar OAuth error", zap.String("error", p.Error), zap.String("description", p.ErrorDescription))
		desc := p.ErrorDescription
		if desc == "" {
			desc = p.Error
		}
		return reject(RejectUpstreamError, "Authorization failed: "+desc)
	}
	if p.Code == "" {
		return reject(RejectMissingCode, "")
	}
	if p.State == "" {
		return reject(RejectMissingState, "")
	}

	telegramID, err := strconv.ParseInt(strings.TrimSpace(p.State), 10, 64)
	if err != nil {
		r.logger.Error("Invalid state parameter", zap.String("state", p.State))
		return reject(RejectInvalidState, "")
	}

	user, ok := safe.Call(r.logger, "find user", func() (*models.User, error) {
		return r.users.GetByTelegramID(ctx, telegramID)
	}).Get()
	if !ok || user == nil || user.ID == "" {
		r.logger.Error("User not found", zap.Int64("telegram_id", telegramID))
		res := reject(RejectUnknownUser, "")
		res.TelegramID = telegramID
		return res
	}

	cred, ok := safe.Call(r.logger, "exchange code", func() (*models.Credential, error) {
		return r.provider.ExchangeCode(ctx, p.Code)
	}).Get()
	if !ok || cred == nil || cred.AccessToken == "" {
		res := reject(RejectExchangeFailed, "")
		res.TelegramID = telegramID
		return res
	}

	ids := safe.Call(r.logger, "list vehicles", func() ([]string, error) {
		return r.provider.ListVehicleIDs(ctx, cred.AccessToken)
	}).Or(nil)
	if len(ids) == 0 {
		res := reject(RejectNoVehicles, "")
		res.TelegramID = telegramID
		return res
	}

	res := &ReconcileResult{TelegramID: telegramID}
	var errs error
	for _, id := range ids {
		v, created, err := r.reconcileVehicle(ctx, user, id, *cred)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("vehicle %s: %w", id, err))
			res.Failed++
			continue
		}

		res.Vehicles = append(res.Vehicles, v)
		event := EventVehicleUpdated
		if created {
			res.Created++
			event = EventVehicleConnected
			r.logger.Info("Added vehicle", zap.String("smartcar_vehicle_id", id))
		} else {
			res.Updated++
			r.logger.Info("Updated vehicle", zap.String("smartcar_vehicle_id", id))
		}
		r.events.SendToUser(telegramID, event, vehicleEvent(v))
	}
	if errs != nil {
		r.logger.Warn("Some vehicles could not be stored",
			zap.Int64("telegram_id", telegramID),
			zap.Int("failed", res.Failed),
			zap.Errors("errors", multierr.Errors(errs)),
		)
	}

	if res.Created+res.Updated == 0 {
		res.Reason = RejectStoreFailed
		res.Message = rejectMessages[RejectStoreFailed]
		return res
	}

	res.Success = true
	res.Message = successMessage(res.Created, res.Updated)
	r.notify(ctx, telegramID, res)
	return res
}

// reconcileVehicle 已存在则覆盖凭证，否则创建
func (r *Reconciler) reconcileVehicle(ctx context.Context, user *models.User, smartcarID string, cred models.Credential) (*models.Vehicle, bool, error) {
	existing, err := r.vehicles.GetBySmartcarID(ctx, smartcarID)
	switch {
	case err == nil && existing != nil:
		v, err := r.vehicles.SetCredential(ctx, existing.ID, cred)
		if err != nil {
			return nil, false, fmt.Errorf("set credential: %w", err)
		}
		return v, false, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		// 查询失败时仍尝试写入，唯一约束保证不重复
		r.logger.Warn("Lookup vehicle failed", zap.String("smartcar_vehicle_id", smartcarID), zap.Error(err))
	}

	// 描述信息获取失败不影响创建
	info := safe.Call(r.logger, "get vehicle attributes", func() (*models.VehicleInfo, error) {
		return r.provider.Attributes(ctx, cred.AccessToken, smartcarID)
	}).Or(nil)

	v, created, err := r.vehicles.Create(ctx, repository.NewVehicle{
		UserID:            user.ID,
		SmartcarVehicleID: smartcarID,
		Info:              info,
		Credential:        &cred,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create vehicle: %w", err)
	}
	return v, created, nil
}

func (r *Reconciler) notify(ctx context.Context, telegramID int64, res *ReconcileResult) {
	if r.notifier == nil {
		return
	}
	text := "✅ " + res.Message + "\n\nUse /vehicles to see your cars or /status to check on them."
	if err := r.notifier.Notify(ctx, telegramID, text); err != nil {
		r.logger.Warn("Failed to notify user", zap.Int64("telegram_id", telegramID), zap.Error(err))
	}
}

// successMessage 例如 "1 vehicle(s) connected and 2 vehicle(s) updated!"
func successMessage(created, updated int) string {
	var parts []string
	if created > 0 {
		parts = append(parts, fmt.Sprintf("%d vehicle(s) connected", created))
	}
	if updated > 0 {
		parts = append(parts, fmt.Sprintf("%d vehicle(s) updated", updated))
	}
	return strings.Join(parts, " and ") + "!"
}
