package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/looplab/fsm"

	"github.com/langchou/carva/internal/models"
)

// 事件常量
const (
	EventConnect    = "connect"    // 凭证写入
	EventDisconnect = "disconnect" // 用户断开
	EventFail       = "fail"       // 凭证无法刷新
)

var allStates = []string{
	string(models.VehicleStatusPending),
	string(models.VehicleStatusActive),
	string(models.VehicleStatusDisconnected),
	string(models.VehicleStatusError),
}

// Machine 车辆连接状态机
type Machine struct {
	mu            sync.Mutex
	vehicleID     string
	fsm           *fsm.FSM
	onStateChange func(vehicleID string, from, to models.VehicleStatus)
}

// NewMachine 创建状态机
func NewMachine(vehicleID string, initial models.VehicleStatus, onStateChange func(vehicleID string, from, to models.VehicleStatus)) *Machine {
	if initial == "" {
		initial = models.VehicleStatusPending
	}

	m := &Machine{
		vehicleID:     vehicleID,
		onStateChange: onStateChange,
	}

	m.fsm = fsm.NewFSM(
		string(initial),
		fsm.Events{
			// 任意状态写入凭证后都变为 active
			{Name: EventConnect, Src: allStates, Dst: string(models.VehicleStatusActive)},

			{Name: EventDisconnect, Src: []string{
				string(models.VehicleStatusActive),
				string(models.VehicleStatusError),
			}, Dst: string(models.VehicleStatusDisconnected)},

			{Name: EventFail, Src: []string{
				string(models.VehicleStatusActive),
				string(models.VehicleStatusPending),
			}, Dst: string(models.VehicleStatusError)},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.vehicleID, models.VehicleStatus(e.Src), models.VehicleStatus(e.Dst))
				}
			},
		},
	)

	return m
}

// Current 获取当前状态
func (m *Machine) Current() models.VehicleStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.VehicleStatus(m.fsm.Current())
}

// Trigger 触发事件；目标状态与当前相同视为成功
func (m *Machine) Trigger(ctx context.Context, event string) (models.VehicleStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			return models.VehicleStatus(m.fsm.Current()), fmt.Errorf("trigger event %s: %w", event, err)
		}
	}
	return models.VehicleStatus(m.fsm.Current()), nil
}

// Can 检查事件是否可以触发
func (m *Machine) Can(event string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fsm.Can(event)
}

// Manager 状态机管理器
type Manager struct {
	mu       sync.Mutex
	machines map[string]*Machine
	onChange func(vehicleID string, from, to models.VehicleStatus)
}

// NewManager 创建管理器
func NewManager(onChange func(vehicleID string, from, to models.VehicleStatus)) *Manager {
	return &Manager{
		machines: make(map[string]*Machine),
		onChange: onChange,
	}
}

// For 获取车辆的状态机，并与持久化状态对齐
// 存储是状态的权威来源，内存状态不一致时以存储为准重建
func (m *Manager) For(v *models.Vehicle) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[v.ID]; ok && machine.Current() == v.Status {
		return machine
	}

	machine := NewMachine(v.ID, v.Status, m.onChange)
	m.machines[v.ID] = machine
	return machine
}

// Len 已跟踪的车辆数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.machines)
}
