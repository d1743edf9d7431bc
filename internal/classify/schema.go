package classify

import (
	"strings"

	"enos-mapping-backend/internal/point"
)

// schemaWhitelist enumerates, per device class, the accepted schema-path
// suffixes of the EnOS equipment model. A composed path whose suffix is not
// listed here is still returned to the caller but carries the
// invalidSchemaPath issue.
var schemaWhitelist = map[point.DeviceClass]map[string]struct{}{
	point.DeviceAHU: suffixSet(
		"raw_supply_air_temp",
		"raw_return_air_temp",
		"raw_zone_air_temp",
		"raw_air_temp",
		"raw_air_humidity",
		"raw_zone_co2",
		"raw_supply_air_pressure",
		"raw_chw_valve_position",
		"raw_damper_position",
		"raw_run_status",
		"raw_trip_alarm",
		"raw_fan_speed",
		"raw_active_power",
		"write_temp_setpoint",
		"write_operation_mode",
	),
	point.DeviceFCU: suffixSet(
		"raw_supply_air_temp",
		"raw_return_air_temp",
		"raw_zone_air_temp",
		"raw_air_temp",
		"raw_chw_valve_position",
		"raw_fan_speed",
		"raw_run_status",
		"raw_trip_alarm",
		"raw_active_power",
		"write_temp_setpoint",
		"write_operation_mode",
	),
	point.DeviceCH: suffixSet(
		"raw_chws_temp",
		"raw_chwr_temp",
		"raw_cond_temp",
		"raw_water_temp",
		"raw_chw_flow",
		"raw_run_status",
		"raw_trip_alarm",
		"raw_percent_load",
		"raw_cop",
		"raw_active_power",
		"write_operation_mode",
		"write_on_off_cmd",
	),
	point.DevicePUMP: suffixSet(
		"raw_run_status",
		"raw_trip_alarm",
		"raw_speed_feedback",
		"raw_discharge_pressure",
		"raw_water_flow",
		"raw_active_power",
		"write_on_off_cmd",
	),
	point.DeviceCT: suffixSet(
		"raw_leaving_water_temp",
		"raw_entering_water_temp",
		"raw_water_temp",
		"raw_fan_speed",
		"raw_run_status",
		"raw_trip_alarm",
		"raw_vibration",
		"raw_active_power",
		"write_on_off_cmd",
	),
	point.DeviceCHPL: suffixSet(
		"raw_cooling_load",
		"raw_header_supply_temp",
		"raw_header_return_temp",
		"raw_water_temp",
		"raw_total_flow",
		"raw_run_status",
		"raw_total_power",
		"write_operation_mode",
		"write_plant_enable",
	),
}

func suffixSet(suffixes ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(suffixes))
	for _, s := range suffixes {
		set[s] = struct{}{}
	}
	return set
}

// ComposePath builds the canonical schema path for a prefix and rule
// fragment. Command-type categories use the write segment, everything else
// the raw segment. The prefix is the device class, or the raw device-type
// token when the class is UNKNOWN.
func ComposePath(prefix, fragment string, write bool) string {
	segment := "raw"
	if write {
		segment = "write"
	}
	return prefix + "_" + segment + "_" + fragment
}

// PathValid reports whether a schema path is on the whitelist of the given
// device class. Paths of unknown classes are never valid.
func PathValid(class point.DeviceClass, schemaPath string) bool {
	suffixes, ok := schemaWhitelist[class]
	if !ok {
		return false
	}
	prefix := string(class) + "_"
	if !strings.HasPrefix(schemaPath, prefix) {
		return false
	}
	_, ok = suffixes[strings.TrimPrefix(schemaPath, prefix)]
	return ok
}
