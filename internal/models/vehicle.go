package models

import (
	"strconv"
	"strings"
	"time"
)

// VehicleStatus 车辆连接状态
type VehicleStatus string

const (
	VehicleStatusActive       VehicleStatus = "active"
	VehicleStatusDisconnected VehicleStatus = "disconnected"
	VehicleStatusPending      VehicleStatus = "pending"
	VehicleStatusError        VehicleStatus = "error"
)

// ParseVehicleStatus 解析状态字符串，未知值回退为 pending
func ParseVehicleStatus(s string) VehicleStatus {
	switch VehicleStatus(s) {
	case VehicleStatusActive, VehicleStatusDisconnected, VehicleStatusPending, VehicleStatusError:
		return VehicleStatus(s)
	}
	return VehicleStatusPending
}

// Credential Smartcar OAuth 凭证，归属于唯一一辆车
type Credential struct {
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	Expiration   *time.Time `json:"expiration,omitempty"`
}

// Vehicle 已连接车辆
type Vehicle struct {
	ID                string        `json:"id" db:"id"`
	UserID            string        `json:"user_id" db:"user_id"`
	SmartcarVehicleID string        `json:"smartcar_vehicle_id" db:"smartcar_vehicle_id"`
	Make              *string       `json:"make,omitempty" db:"make"`
	Model             *string       `json:"model,omitempty" db:"model"`
	Year              *int          `json:"year,omitempty" db:"year"`
	Credential        *Credential   `json:"credential,omitempty"`
	Status            VehicleStatus `json:"status" db:"status"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// DisplayName 可读名称，例如 "2020 Tesla Model 3"
func (v *Vehicle) DisplayName() string {
	var parts []string
	if v.Year != nil && *v.Year != 0 {
		parts = append(parts, strconv.Itoa(*v.Year))
	}
	if v.Make != nil && *v.Make != "" {
		parts = append(parts, *v.Make)
	}
	if v.Model != nil && *v.Model != "" {
		parts = append(parts, *v.Model)
	}
	if len(parts) == 0 {
		return "Unknown Vehicle"
	}
	return strings.Join(parts, " ")
}

// VehicleInfo 车辆描述信息（best-effort 获取）
type VehicleInfo struct {
	ID    string  `json:"id"`
	Make  *string `json:"make,omitempty"`
	Model *string `json:"model,omitempty"`
	Year  *int    `json:"year,omitempty"`
}
