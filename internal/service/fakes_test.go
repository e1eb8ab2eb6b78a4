package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/langchou/carva/internal/api/llm"
	"github.com/langchou/carva/internal/models"
	"github.com/langchou/carva/internal/repository"
)

var errFake = errors.New("fake failure")

type fakeUsers struct {
	mu        sync.Mutex
	users     map[int64]*models.User
	createErr error
}

func newFakeUsers(ids ...int64) *fakeUsers {
	f := &fakeUsers{users: make(map[int64]*models.User)}
	for _, id := range ids {
		f.users[id] = &models.User{ID: fmt.Sprintf("user-%d", id), TelegramID: id}
	}
	return f
}

func (f *fakeUsers) GetByTelegramID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetOrCreate(_ context.Context, id int64, _ models.UserProfile) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	u := &models.User{ID: fmt.Sprintf("user-%d", id), TelegramID: id}
	f.users[id] = u
	return u, nil
}

// fakeVehicles 内存实现，按 smartcar id 唯一
type fakeVehicles struct {
	mu        sync.Mutex
	seq       int
	byID      map[string]*models.Vehicle
	order     []string
	createErr map[string]error
	lookupErr error
	setCreds  int
}

func newFakeVehicles() *fakeVehicles {
	return &fakeVehicles{byID: make(map[string]*models.Vehicle), createErr: make(map[string]error)}
}

func (f *fakeVehicles) add(v *models.Vehicle) *models.Vehicle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if v.ID == "" {
		v.ID = fmt.Sprintf("veh-%d", f.seq)
	}
	f.byID[v.ID] = v
	f.order = append(f.order, v.ID)
	return clone(v)
}

func clone(v *models.Vehicle) *models.Vehicle {
	c := *v
	if v.Credential != nil {
		cred := *v.Credential
		c.Credential = &cred
	}
	return &c
}

func (f *fakeVehicles) Create(_ context.Context, nv repository.NewVehicle) (*models.Vehicle, bool, error) {
	f.mu.Lock()
	if err := f.createErr[nv.SmartcarVehicleID]; err != nil {
		f.mu.Unlock()
		return nil, false, err
	}
	for _, v := range f.byID {
		if v.SmartcarVehicleID == nv.SmartcarVehicleID {
			if nv.Credential != nil {
				cred := *nv.Credential
				v.Credential = &cred
				v.Status = models.VehicleStatusActive
			}
			f.mu.Unlock()
			return clone(v), false, nil
		}
	}
	f.mu.Unlock()

	v := &models.Vehicle{
		UserID:            nv.UserID,
		SmartcarVehicleID: nv.SmartcarVehicleID,
		Status:            models.VehicleStatusPending,
	}
	if nv.Info != nil {
		v.Make, v.Model, v.Year = nv.Info.Make, nv.Info.Model, nv.Info.Year
	}
	if nv.Credential != nil {
		cred := *nv.Credential
		v.Credential = &cred
		v.Status = models.VehicleStatusActive
	}
	return f.add(v), true, nil
}

func (f *fakeVehicles) GetBySmartcarID(_ context.Context, id string) (*models.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, v := range f.byID {
		if v.SmartcarVehicleID == id {
			return clone(v), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeVehicles) ListByUserID(_ context.Context, userID string) ([]*models.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Vehicle
	for _, id := range f.order {
		if v := f.byID[id]; v.UserID == userID {
			out = append(out, clone(v))
		}
	}
	return out, nil
}

func (f *fakeVehicles) SetCredential(_ context.Context, id string, cred models.Credential) (*models.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	f.setCreds++
	v.Credential = &cred
	v.Status = models.VehicleStatusActive
	return clone(v), nil
}

func (f *fakeVehicles) UpdateStatus(_ context.Context, id string, status models.VehicleStatus) (*models.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v.Status = status
	return clone(v), nil
}

func (f *fakeVehicles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func (f *fakeVehicles) get(id string) *models.Vehicle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.byID[id])
}

// fakeProvider 每个方法可单独注入失败
type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int

	exchange   func(code string) (*models.Credential, error)
	refresh    func(rt string) (*models.Credential, error)
	vehicleIDs []string
	listErr    error
	attrs      map[string]*models.VehicleInfo
	fail       map[string]bool // 方法名 -> 失败

	odometer *models.Odometer
	fuel     *models.Fuel
	battery  *models.Battery
	location *models.Location
	tires    *models.TirePressure
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls: make(map[string]int),
		fail:  make(map[string]bool),
		attrs: make(map[string]*models.VehicleInfo),
	}
}

func (f *fakeProvider) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if f.fail[name] {
		return fmt.Errorf("%s: %w", name, errFake)
	}
	return nil
}

func (f *fakeProvider) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://connect.example/oauth/authorize?state=" + state
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code string) (*models.Credential, error) {
	if err := f.record("exchange"); err != nil {
		return nil, err
	}
	if f.exchange != nil {
		return f.exchange(code)
	}
	return freshCredential("at-"+code, "rt-"+code), nil
}

func (f *fakeProvider) Refresh(_ context.Context, rt string) (*models.Credential, error) {
	if err := f.record("refresh"); err != nil {
		return nil, err
	}
	if f.refresh != nil {
		return f.refresh(rt)
	}
	return freshCredential("at-refreshed", "rt-refreshed"), nil
}

func (f *fakeProvider) ListVehicleIDs(context.Context, string) ([]string, error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	return f.vehicleIDs, f.listErr
}

func (f *fakeProvider) Attributes(_ context.Context, _, id string) (*models.VehicleInfo, error) {
	if err := f.record("attributes"); err != nil {
		return nil, err
	}
	if info, ok := f.attrs[id]; ok {
		return info, nil
	}
	return nil, errFake
}

func (f *fakeProvider) Odometer(context.Context, string, string) (*models.Odometer, error) {
	if err := f.record("odometer"); err != nil {
		return nil, err
	}
	return f.odometer, nil
}

func (f *fakeProvider) Fuel(context.Context, string, string) (*models.Fuel, error) {
	if err := f.record("fuel"); err != nil {
		return nil, err
	}
	return f.fuel, nil
}

func (f *fakeProvider) Battery(context.Context, string, string) (*models.Battery, error) {
	if err := f.record("battery"); err != nil {
		return nil, err
	}
	return f.battery, nil
}

func (f *fakeProvider) Location(context.Context, string, string) (*models.Location, error) {
	if err := f.record("location"); err != nil {
		return nil, err
	}
	return f.location, nil
}

func (f *fakeProvider) TirePressure(context.Context, string, string) (*models.TirePressure, error) {
	if err := f.record("tire_pressure"); err != nil {
		return nil, err
	}
	return f.tires, nil
}

func (f *fakeProvider) Lock(context.Context, string, string) error {
	return f.record("lock")
}

func (f *fakeProvider) Unlock(context.Context, string, string) error {
	return f.record("unlock")
}

type fakeCompleter struct {
	reply  string
	err    error
	prompt llm.Prompt
}

func (f *fakeCompleter) Complete(_ context.Context, p llm.Prompt) (string, error) {
	f.prompt = p
	return f.reply, f.err
}

type event struct {
	telegramID int64
	kind       string
}

type fakePublisher struct {
	mu       sync.Mutex
	events   []event
	payloads []any
}

func (f *fakePublisher) Broadcast(kind string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{kind: kind})
}

func (f *fakePublisher) SendToUser(id int64, kind string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{telegramID: id, kind: kind})
	f.payloads = append(f.payloads, data)
}

type fakeNotifier struct {
	sent map[int64][]string
}

func (f *fakeNotifier) Notify(_ context.Context, id int64, text string) error {
	if f.sent == nil {
		f.sent = make(map[int64][]string)
	}
	f.sent[id] = append(f.sent[id], text)
	return nil
}

func freshCredential(at, rt string) *models.Credential {
	exp := time.Now().Add(2 * time.Hour)
	return &models.Credential{AccessToken: at, RefreshToken: rt, Expiration: &exp}
}

func ptr[T any](v T) *T { return &v }
