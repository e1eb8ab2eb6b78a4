package service

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/langchou/carva/internal/models"
)

var printer = message.NewPrinter(language.English)

// statusMark 车辆列表中的状态标记
func statusMark(s models.VehicleStatus) string {
	if s == models.VehicleStatusActive {
		return "✅"
	}
	return "⚠️"
}

// FormatVehicleList /vehicles 输出
func FormatVehicleList(vehicles []*models.Vehicle) string {
	if len(vehicles) == 0 {
		return MsgNoVehiclesYet
	}

	lines := []string{"Your connected vehicles:\n"}
	for i, v := range vehicles {
		lines = append(lines, fmt.Sprintf("%d. %s %s (%s)", i+1, statusMark(v.Status), v.DisplayName(), v.Status))
	}
	return strings.Join(lines, "\n")
}

// formatShortList 对话中的车辆列表
func formatShortList(vehicles []*models.Vehicle) string {
	if len(vehicles) == 0 {
		return "You don't have any vehicles connected."
	}

	lines := []string{"Your vehicles:"}
	for _, v := range vehicles {
		lines = append(lines, fmt.Sprintf("- %s (%s)", v.DisplayName(), v.Status))
	}
	return strings.Join(lines, "\n")
}

// FormatSummary 车辆状态摘要 (Markdown)
func FormatSummary(v *models.Vehicle, snap *models.TelemetrySnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n\n", v.DisplayName())

	if snap.Fuel != nil && snap.Fuel.PercentRemaining != nil {
		fmt.Fprintf(&b, "Fuel: %.1f%%%s\n", *snap.Fuel.PercentRemaining, rangeSuffix(snap.Fuel.RangeKm))
	}
	if snap.Battery != nil && snap.Battery.PercentRemaining != nil {
		fmt.Fprintf(&b, "Battery: %.1f%%%s\n", *snap.Battery.PercentRemaining, rangeSuffix(snap.Battery.RangeKm))
	}
	if snap.Odometer != nil {
		fmt.Fprintf(&b, "Odometer: %s km\n", formatDistance(snap.Odometer.DistanceKm))
	}
	return b.String()
}

// formatField 单项读数，读数缺失时返回 "not available"
func formatField(action string, v *models.Vehicle, snap *models.TelemetrySnapshot) string {
	name := v.DisplayName()
	switch action {
	case ReadFuel:
		if snap.Fuel != nil && snap.Fuel.PercentRemaining != nil {
			return fmt.Sprintf("⛽ %s fuel: %.1f%%%s", name, *snap.Fuel.PercentRemaining, rangeSuffix(snap.Fuel.RangeKm))
		}
	case ReadBattery:
		if snap.Battery != nil && snap.Battery.PercentRemaining != nil {
			return fmt.Sprintf("🔋 %s battery: %.1f%%%s", name, *snap.Battery.PercentRemaining, rangeSuffix(snap.Battery.RangeKm))
		}
	case ReadOdometer:
		if snap.Odometer != nil {
			return fmt.Sprintf("🛣️ %s odometer: %s km", name, formatDistance(snap.Odometer.DistanceKm))
		}
	}
	return MsgDataNotAvailable
}

// BuildContext 提供给 LLM 的车辆上下文
func BuildContext(vehicles []*models.Vehicle, snap *models.TelemetrySnapshot) string {
	if len(vehicles) == 0 {
		return "No vehicles connected."
	}

	lines := []string{"Connected vehicles:"}
	for i, v := range vehicles {
		lines = append(lines, fmt.Sprintf("%d. %s (Status: %s)", i+1, v.DisplayName(), v.Status))
	}

	if snap == nil {
		return strings.Join(lines, "\n")
	}

	lines = append(lines, "\nCurrent vehicle data:")
	if snap.Fuel != nil && snap.Fuel.PercentRemaining != nil {
		lines = append(lines, fmt.Sprintf("- Fuel: %.1f%%", *snap.Fuel.PercentRemaining))
	}
	if snap.Battery != nil {
		if snap.Battery.PercentRemaining != nil {
			lines = append(lines, fmt.Sprintf("- Battery: %.1f%%", *snap.Battery.PercentRemaining))
		}
		if snap.Battery.RangeKm != nil {
			lines = append(lines, fmt.Sprintf("- Range: %.1f km", *snap.Battery.RangeKm))
		}
	}
	if snap.Odometer != nil {
		lines = append(lines, fmt.Sprintf("- Odometer: %.1f km", snap.Odometer.DistanceKm))
	}
	if snap.Location != nil {
		lines = append(lines, fmt.Sprintf("- Location: %.4f, %.4f", snap.Location.Latitude, snap.Location.Longitude))
	}
	if tp := snap.TirePressure; tp != nil {
		var pressures []string
		for _, p := range []struct {
			label string
			value *float64
		}{
			{"FL", tp.FrontLeft},
			{"FR", tp.FrontRight},
			{"RL", tp.BackLeft},
			{"RR", tp.BackRight},
		} {
			if p.value != nil && *p.value != 0 {
				pressures = append(pressures, fmt.Sprintf("%s: %.0f", p.label, *p.value))
			}
		}
		if len(pressures) > 0 {
			lines = append(lines, "- Tire Pressure (kPa): "+strings.Join(pressures, ", "))
		}
	}
	return strings.Join(lines, "\n")
}

func rangeSuffix(km *float64) string {
	if km == nil || *km == 0 {
		return ""
	}
	return fmt.Sprintf(" (%.0f km range)", *km)
}

// formatDistance 千分位，保留一位小数
func formatDistance(km float64) string {
	return printer.Sprintf("%.1f", km)
}
