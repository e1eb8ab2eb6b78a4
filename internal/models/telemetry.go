package models

import "time"

// Location 车辆位置
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fuel 燃油信息，百分比为 0-100
type Fuel struct {
	PercentRemaining *float64 `json:"percent_remaining,omitempty"`
	AmountRemaining  *float64 `json:"amount_remaining,omitempty"` // 升
	RangeKm          *float64 `json:"range_km,omitempty"`
}

// Battery 电池信息，百分比为 0-100
type Battery struct {
	PercentRemaining *float64 `json:"percent_remaining,omitempty"`
	RangeKm          *float64 `json:"range_km,omitempty"`
}

// Odometer 里程表
type Odometer struct {
	DistanceKm float64 `json:"distance_km"`
}

// TirePressure 胎压 (kPa)
type TirePressure struct {
	FrontLeft  *float64 `json:"front_left,omitempty"`
	FrontRight *float64 `json:"front_right,omitempty"`
	BackLeft   *float64 `json:"back_left,omitempty"`
	BackRight  *float64 `json:"back_right,omitempty"`
}

// TelemetrySnapshot 某一时刻的车辆遥测数据，各字段独立可选
// 不持久化；所有字段均为空时不会被构造
type TelemetrySnapshot struct {
	VehicleID    string        `json:"vehicle_id"`
	Location     *Location     `json:"location,omitempty"`
	Fuel         *Fuel         `json:"fuel,omitempty"`
	Battery      *Battery      `json:"battery,omitempty"`
	Odometer     *Odometer     `json:"odometer,omitempty"`
	TirePressure *TirePressure `json:"tire_pressure,omitempty"`
	CapturedAt   time.Time     `json:"captured_at"`
}

// Empty 是否没有任何读数
func (s *TelemetrySnapshot) Empty() bool {
	return s.Location == nil && s.Fuel == nil && s.Battery == nil && s.Odometer == nil && s.TirePressure == nil
}
