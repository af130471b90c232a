// Package telemetry defines the satellite telemetry record and its
// pipe-separated wire encoding.
package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed reports an unparseable telemetry payload.
var ErrMalformed = errors.New("satlink: malformed telemetry payload")

// Telemetry is one sensor snapshot emitted by the satellite.
type Telemetry struct {
	TimestampNS  int64
	TemperatureC float64
	BatteryPct   float64
	AltitudeKM   float64
	PitchDeg     float64
	YawDeg       float64
	RollDeg      float64
}

// Encode renders the record as pipe-separated key=value fields in fixed
// order, floats with two decimal places:
//
//	ts=<ns>|temp=<v>|batt=<v>|alt=<v>|pitch=<v>|yaw=<v>|roll=<v>
func (t Telemetry) Encode() []byte {
	return []byte(fmt.Sprintf("ts=%d|temp=%.2f|batt=%.2f|alt=%.2f|pitch=%.2f|yaw=%.2f|roll=%.2f",
		t.TimestampNS, t.TemperatureC, t.BatteryPct, t.AltitudeKM, t.PitchDeg, t.YawDeg, t.RollDeg))
}

// Decode parses a telemetry payload. Unknown keys are skipped; a field with
// an unparseable value fails the whole payload.
func Decode(payload []byte) (Telemetry, error) {
	var t Telemetry
	for _, field := range strings.Split(string(payload), "|") {
		key, val, found := strings.Cut(field, "=")
		if !found {
			continue
		}

		var err error
		switch key {
		case "ts":
			t.TimestampNS, err = strconv.ParseInt(val, 10, 64)
		case "temp":
			t.TemperatureC, err = strconv.ParseFloat(val, 64)
		case "batt":
			t.BatteryPct, err = strconv.ParseFloat(val, 64)
		case "alt":
			t.AltitudeKM, err = strconv.ParseFloat(val, 64)
		case "pitch":
			t.PitchDeg, err = strconv.ParseFloat(val, 64)
		case "yaw":
			t.YawDeg, err = strconv.ParseFloat(val, 64)
		case "roll":
			t.RollDeg, err = strconv.ParseFloat(val, 64)
		}
		if err != nil {
			return Telemetry{}, fmt.Errorf("%w: field %q: %v", ErrMalformed, field, err)
		}
	}
	return t, nil
}

// CSVHeader is the column header for the ground-station telemetry log.
func CSVHeader() []string {
	return []string{"timestamp_ns", "temperature_c", "battery_pct", "orbit_altitude_km", "pitch_deg", "yaw_deg", "roll_deg"}
}

// CSVRow renders the record for the ground-station telemetry log.
func (t Telemetry) CSVRow() []string {
	return []string{
		strconv.FormatInt(t.TimestampNS, 10),
		strconv.FormatFloat(t.TemperatureC, 'f', 2, 64),
		strconv.FormatFloat(t.BatteryPct, 'f', 2, 64),
		strconv.FormatFloat(t.AltitudeKM, 'f', 2, 64),
		strconv.FormatFloat(t.PitchDeg, 'f', 2, 64),
		strconv.FormatFloat(t.YawDeg, 'f', 2, 64),
		strconv.FormatFloat(t.RollDeg, 'f', 2, 64),
	}
}
