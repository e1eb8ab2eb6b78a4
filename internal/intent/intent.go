// Package intent 定义助手可执行的动作集合，并把模型回复解析为结构化意图
package intent

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Action 助手动作，封闭枚举
type Action int

const (
	ActionNone Action = iota
	ActionStatus
	ActionLocation
	ActionFuel
	ActionBattery
	ActionOdometer
	ActionTirePressure
	ActionLock
	ActionUnlock
	ActionListVehicles
	ActionHelp
)

var actionNames = map[Action]string{
	ActionNone:         "none",
	ActionStatus:       "get_status",
	ActionLocation:     "get_location",
	ActionFuel:         "get_fuel",
	ActionBattery:      "get_battery",
	ActionOdometer:     "get_odometer",
	ActionTirePressure: "get_tire_pressure",
	ActionLock:         "lock",
	ActionUnlock:       "unlock",
	ActionListVehicles: "list_vehicles",
	ActionHelp:         "help",
}

var actionsByName = func() map[string]Action {
	m := make(map[string]Action, len(actionNames))
	for a, name := range actionNames {
		m[name] = a
	}
	return m
}()

// String 返回动作的线路名称
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "none"
}

// Valid 是否为已知动作
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// RequiresVehicle 是否需要已连接且凭证有效的车辆
func (a Action) RequiresVehicle() bool {
	switch a {
	case ActionStatus, ActionLocation, ActionFuel, ActionBattery, ActionOdometer,
		ActionTirePressure, ActionLock, ActionUnlock:
		return true
	}
	return false
}

// ParseAction 按名称查找动作（忽略大小写），未识别返回 ok=false
func ParseAction(name string) (Action, bool) {
	a, ok := actionsByName[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

// MarshalText 实现 encoding.TextMarshaler
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Intent 结构化意图
type Intent struct {
	Action     Action         `json:"action"`
	Message    string         `json:"message"`
	Parameters map[string]any `json:"parameters"`
	Confidence float64        `json:"confidence"`
	Raw        string         `json:"-"`
}

// FromCommand 斜杠命令直接生成的意图
func FromCommand(a Action) Intent {
	return Intent{Action: a, Parameters: map[string]any{}, Confidence: 1}
}

const (
	defaultConfidence  = 0.8
	fallbackConfidence = 0.5
	defaultMessage     = "I'm not sure how to respond to that."
)

// Parse 把模型回复解析为意图，从不失败
// 无法解码时原样返回文本，confidence=0.5；未知动作回退为 none
func Parse(raw string) Intent {
	fallback := Intent{
		Action:     ActionNone,
		Message:    raw,
		Parameters: map[string]any{},
		Confidence: fallbackConfidence,
		Raw:        raw,
	}

	var fields map[string]any
	if err := json.Unmarshal(stripFence(raw), &fields); err != nil || fields == nil {
		return fallback
	}

	in := Intent{
		Action:     ActionNone,
		Message:    defaultMessage,
		Parameters: map[string]any{},
		Confidence: defaultConfidence,
		Raw:        raw,
	}
	if msg, ok := fields["message"].(string); ok {
		in.Message = msg
	}
	if name, ok := fields["action"].(string); ok {
		if a, ok := ParseAction(name); ok {
			in.Action = a
		}
	}
	if params, ok := fields["parameters"].(map[string]any); ok {
		in.Parameters = params
	}
	switch c := fields["confidence"].(type) {
	case float64:
		in.Confidence = clamp(c)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(c), 64); err == nil {
			in.Confidence = clamp(f)
		}
	}
	return in
}

// stripFence 去掉 ```json ... ``` 代码块包裹
func stripFence(raw string) []byte {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return []byte(strings.TrimSpace(s))
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
