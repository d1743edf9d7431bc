package classify

import (
	"strings"

	"enos-mapping-backend/internal/point"
)

// rule is one entry of a device-class classification table. A rule matches
// when every substring in match appears in the lowercased residual text.
type rule struct {
	match      []string
	category   string
	fragment   string
	confidence float64
	write      bool
}

const genericConfidence = 0.75

// categoryRules holds the per-class classification tables. The declaration
// order is load-bearing: rules are evaluated top to bottom and the first
// match wins. Supply/return/zone temperature rules must stay ahead of the
// bare temperature rule, status ahead of trip ahead of mode, and valve ahead
// of fan ahead of power. Do not reorder.
var categoryRules = map[point.DeviceClass][]rule{
	point.DeviceAHU: {
		{[]string{"supply", "temp"}, "supplyTemperature", "supply_air_temp", 0.95, false},
		{[]string{"return", "temp"}, "returnTemperature", "return_air_temp", 0.95, false},
		{[]string{"room", "temp"}, "zoneTemperature", "zone_air_temp", 0.94, false},
		{[]string{"zone", "temp"}, "zoneTemperature", "zone_air_temp", 0.94, false},
		{[]string{"space", "temp"}, "zoneTemperature", "zone_air_temp", 0.92, false},
		{[]string{"temp", "set"}, "temperatureSetpoint", "temp_setpoint", 0.92, true},
		{[]string{"temp"}, "temperature", "air_temp", 0.85, false},
		{[]string{"humid"}, "humidity", "air_humidity", 0.9, false},
		{[]string{"rh"}, "humidity", "air_humidity", 0.88, false},
		{[]string{"co2"}, "co2", "zone_co2", 0.92, false},
		{[]string{"press"}, "pressure", "supply_air_pressure", 0.88, false},
		{[]string{"valve"}, "valvePosition", "chw_valve_position", 0.92, false},
		{[]string{"damper"}, "damperPosition", "damper_position", 0.9, false},
		{[]string{"status"}, "status", "run_status", 0.92, false},
		{[]string{"run"}, "status", "run_status", 0.9, false},
		{[]string{"trip"}, "trip", "trip_alarm", 0.9, false},
		{[]string{"fault"}, "trip", "trip_alarm", 0.88, false},
		{[]string{"alarm"}, "trip", "trip_alarm", 0.88, false},
		{[]string{"mode"}, "mode", "operation_mode", 0.88, true},
		{[]string{"fan", "speed"}, "fanSpeed", "fan_speed", 0.9, false},
		{[]string{"freq"}, "fanSpeed", "fan_speed", 0.88, false},
		{[]string{"kw"}, "power", "active_power", 0.88, false},
		{[]string{"power"}, "power", "active_power", 0.88, false},
	},
	point.DeviceFCU: {
		{[]string{"supply", "temp"}, "supplyTemperature", "supply_air_temp", 0.95, false},
		{[]string{"return", "temp"}, "returnTemperature", "return_air_temp", 0.94, false},
		{[]string{"room", "temp"}, "zoneTemperature", "zone_air_temp", 0.94, false},
		{[]string{"zone", "temp"}, "zoneTemperature", "zone_air_temp", 0.94, false},
		{[]string{"space", "temp"}, "zoneTemperature", "zone_air_temp", 0.92, false},
		{[]string{"temp", "set"}, "temperatureSetpoint", "temp_setpoint", 0.92, true},
		{[]string{"setpoint"}, "temperatureSetpoint", "temp_setpoint", 0.9, true},
		{[]string{"temp"}, "temperature", "air_temp", 0.85, false},
		{[]string{"valve"}, "valvePosition", "chw_valve_position", 0.92, false},
		{[]string{"fan", "speed"}, "fanSpeed", "fan_speed", 0.9, false},
		{[]string{"speed"}, "fanSpeed", "fan_speed", 0.88, false},
		{[]string{"status"}, "status", "run_status", 0.92, false},
		{[]string{"run"}, "status", "run_status", 0.9, false},
		{[]string{"trip"}, "trip", "trip_alarm", 0.9, false},
		{[]string{"fault"}, "trip", "trip_alarm", 0.88, false},
		{[]string{"mode"}, "mode", "operation_mode", 0.88, true},
		{[]string{"kw"}, "power", "active_power", 0.86, false},
		{[]string{"power"}, "power", "active_power", 0.86, false},
	},
	point.DeviceCH: {
		{[]string{"chws"}, "supplyTemperature", "chws_temp", 0.95, false},
		{[]string{"supply", "temp"}, "supplyTemperature", "chws_temp", 0.94, false},
		{[]string{"leaving", "temp"}, "supplyTemperature", "chws_temp", 0.92, false},
		{[]string{"chwr"}, "returnTemperature", "chwr_temp", 0.95, false},
		{[]string{"return", "temp"}, "returnTemperature", "chwr_temp", 0.94, false},
		{[]string{"entering", "temp"}, "returnTemperature", "chwr_temp", 0.92, false},
		{[]string{"cond", "temp"}, "condenserTemperature", "cond_temp", 0.92, false},
		{[]string{"cws"}, "condenserTemperature", "cond_temp", 0.9, false},
		{[]string{"temp"}, "temperature", "water_temp", 0.85, false},
		{[]string{"flow"}, "flowRate", "chw_flow", 0.9, false},
		{[]string{"status"}, "status", "run_status", 0.92, false},
		{[]string{"run"}, "status", "run_status", 0.9, false},
		{[]string{"trip"}, "trip", "trip_alarm", 0.9, false},
		{[]string{"fault"}, "trip", "trip_alarm", 0.88, false},
		{[]string{"alarm"}, "trip", "trip_alarm", 0.88, false},
		{[]string{"mode"}, "mode", "operation_mode", 0.88, true},
		{[]string{"rla"}, "load", "percent_load", 0.9, false},
		{[]string{"load"}, "load", "percent_load", 0.9, false},
		{[]string{"cop"}, "efficiency", "cop", 0.88, false},
		{[]string{"kw"}, "power", "active_power", 0.9, false},
		{[]string{"power"}, "power", "active_power", 0.9, false},
		{[]string{"enable"}, "onOffCommand", "on_off_cmd", 0.9, true},
		{[]string{"cmd"}, "onOffCommand", "on_off_cmd", 0.9, true},
		{[]string{"start"}, "onOffCommand", "on_off_cmd", 0.88, true},
	},
	point.DevicePUMP: {
		{[]string{"status"}, "status", "run_status", 0.92, false},
		{[]string{"run"}, "status", "run_status", 0.9, false},
		{[]string{"trip"}, "trip", "trip_alarm", 0.9, false},
		{[]string{"fault"}, "trip", "trip_alarm", 0.88, false},
		{[]string{"speed"}, "speed", "speed_feedback", 0.9, false},
		{[]string{"freq"}, "speed", "speed_feedback", 0.88, false},
		{[]string{"hz"}, "speed", "speed_feedback", 0.86, false},
		{[]string{"press"}, "pressure", "discharge_pressure", 0.9, false},
		{[]string{"flow"}, "flowRate", "water_flow", 0.9, false},
		{[]string{"kw"}, "power", "active_power", 0.88, false},
		{[]string{"power"}, "power", "active_power", 0.88, false},
		{[]string{"enable"}, "onOffCommand", "on_off_cmd", 0.9, true},
		{[]string{"cmd"}, "onOffCommand", "on_off_cmd", 0.9, true},
	},
	point.DeviceCT: {
		{[]string{"leaving", "temp"}, "leavingTemperature", "leaving_water_temp", 0.93, false},
		{[]string{"outlet", "temp"}, "leavingTemperature", "leaving_water_temp", 0.92, false},
		{[]string{"entering", "temp"}, "enteringTemperature", "entering_water_temp", 0.93, false},
		{[]string{"inlet", "temp"}, "enteringTemperature", "entering_water_temp", 0.92, false},
		{[]string{"temp"}, "temperature", "water_temp", 0.85, false},
		{[]string{"fan", "speed"}, "fanSpeed", "fan_speed", 0.9, false},
		{[]string{"speed"}, "fanSpeed", "fan_speed", 0.88, false},
		{[]string{"freq"}, "fanSpeed", "fan_speed", 0.88, false},
		{[]string{"status"}, "status", "run_status", 0.92, false},
		{[]string{"run"}, "status", "run_status", 0.9, false},
		{[]string{"trip"}, "trip", "trip_alarm", 0.9, false},
		{[]string{"fault"}, "trip", "trip_alarm", 0.88, false},
		{[]string{"vib"}, "vibration", "vibration", 0.86, false},
		{[]string{"kw"}, "power", "active_power", 0.88, false},
		{[]string{"power"}, "power", "active_power", 0.88, false},
		{[]string{"cmd"}, "onOffCommand", "on_off_cmd", 0.9, true},
	},
	point.DeviceCHPL: {
		{[]string{"cooling", "load"}, "coolingLoad", "cooling_load", 0.92, false},
		{[]string{"load"}, "coolingLoad", "cooling_load", 0.9, false},
		{[]string{"supply", "temp"}, "supplyTemperature", "header_supply_temp", 0.93, false},
		{[]string{"header", "temp"}, "supplyTemperature", "header_supply_temp", 0.9, false},
		{[]string{"return", "temp"}, "returnTemperature", "header_return_temp", 0.93, false},
		{[]string{"temp"}, "temperature", "water_temp", 0.85, false},
		{[]string{"flow"}, "flowRate", "total_flow", 0.9, false},
		{[]string{"status"}, "status", "run_status", 0.9, false},
		{[]string{"run"}, "status", "run_status", 0.88, false},
		{[]string{"mode"}, "mode", "operation_mode", 0.88, true},
		{[]string{"demand"}, "power", "total_power", 0.88, false},
		{[]string{"kw"}, "power", "total_power", 0.9, false},
		{[]string{"power"}, "power", "total_power", 0.9, false},
		{[]string{"enable"}, "onOffCommand", "plant_enable", 0.9, true},
		{[]string{"cmd"}, "onOffCommand", "plant_enable", 0.9, true},
	},
}

func (r rule) matches(residual string) bool {
	for _, sub := range r.match {
		if !strings.Contains(residual, sub) {
			return false
		}
	}
	return true
}

// classifyCategory evaluates the class rule table against the lowercased
// residual text. The second return is false when no rule matched and the
// caller must fall back to the generic category.
func classifyCategory(class point.DeviceClass, residual string) (rule, bool) {
	for _, r := range categoryRules[class] {
		if r.matches(residual) {
			return r, true
		}
	}
	return rule{}, false
}
