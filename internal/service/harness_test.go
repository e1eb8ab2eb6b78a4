package service

import (
	"go.uber.org/zap"

	"github.com/langchou/carva/internal/models"
	"github.com/langchou/carva/internal/state"
)

type harness struct {
	users      *fakeUsers
	vehicles   *fakeVehicles
	provider   *fakeProvider
	events     *fakePublisher
	tokens     *TokenService
	telemetry  *TelemetryService
	dispatcher *Dispatcher
}

func newHarness() *harness {
	logger := zap.NewNop()
	h := &harness{
		users:    newFakeUsers(42),
		vehicles: newFakeVehicles(),
		provider: newFakeProvider(),
		events:   &fakePublisher{},
	}
	states := state.NewManager(func(vehicleID string, from, to models.VehicleStatus) {
		h.events.Broadcast(EventVehicleStatus, vehicleID)
	})
	h.tokens = NewTokenService(logger, h.provider, h.vehicles, states)
	h.telemetry = NewTelemetryService(logger, h.provider, nil)
	h.dispatcher = NewDispatcher(logger, h.vehicles, h.provider, h.tokens, h.telemetry)
	return h
}

// addVehicle 给用户 42 添加一辆车
func (h *harness) addVehicle(cred *models.Credential) *models.Vehicle {
	status := models.VehicleStatusPending
	if cred != nil {
		status = models.VehicleStatusActive
	}
	return h.vehicles.add(&models.Vehicle{
		UserID:            "user-42",
		SmartcarVehicleID: "sc-1",
		Make:              ptr("Tesla"),
		Model:             ptr("Model 3"),
		Year:              ptr(2021),
		Credential:        cred,
		Status:            status,
	})
}

func (h *harness) user() *models.User {
	return h.users.users[42]
}
