package smartcar

import (
	"errors"
	"fmt"
)

// 授权范围
var Scopes = []string{
	"read_vehicle_info",
	"read_location",
	"read_odometer",
	"read_fuel",
	"read_battery",
	"read_tires",
	"control_security",
}

// vehiclesResponse GET /vehicles
type vehiclesResponse struct {
	Vehicles []string `json:"vehicles"`
	Paging   struct {
		Count  int `json:"count"`
		Offset int `json:"offset"`
	} `json:"paging"`
}

// attributesResponse GET /vehicles/{id}
type attributesResponse struct {
	ID    string `json:"id"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
}

// odometerResponse 里程，单位 km
type odometerResponse struct {
	Distance float64 `json:"distance"`
}

// fuelResponse 百分比为 0-1 小数
type fuelResponse struct {
	Range            *float64 `json:"range"`
	PercentRemaining *float64 `json:"percentRemaining"`
	AmountRemaining  *float64 `json:"amountRemaining"`
}

type batteryResponse struct {
	Range            *float64 `json:"range"`
	PercentRemaining *float64 `json:"percentRemaining"`
}

type locationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type tirePressureResponse struct {
	FrontLeft  *float64 `json:"frontLeft"`
	FrontRight *float64 `json:"frontRight"`
	BackLeft   *float64 `json:"backLeft"`
	BackRight  *float64 `json:"backRight"`
}

// securityRequest POST /security
type securityRequest struct {
	Action string `json:"action"`
}

type securityResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// APIError 非 2xx 响应
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Type       string `json:"type"`
	Desc       string `json:"description"`
	Body       string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Desc != "" {
		return fmt.Sprintf("smartcar api: status=%d type=%s: %s", e.StatusCode, e.Type, e.Desc)
	}
	return fmt.Sprintf("smartcar api: status=%d body=%s", e.StatusCode, e.Body)
}

// Is 使 401 与 ErrUnauthorized 匹配
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == 401
}

// 错误定义
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNoAccessToken = errors.New("no access token")
)
