package domain

import (
	"math"
	"strings"
)

// Operating modes reported by the apparatus.
const (
	ModeManual    = "Manual"
	ModeAutomatic = "Automático"
)

// Status is one decoded read of the device status endpoint.
//
// Pressure1 and Pressure2 carry the per-kidney pressure lines and are NaN
// when the firmware does not report them.
type Status struct {
	Temperature float64 `json:"temperature"`
	Flow        float64 `json:"flow"`
	Pressure    float64 `json:"pressure"`
	Pressure1   float64 `json:"-"`
	Pressure2   float64 `json:"-"`
	Bubble      bool    `json:"bubble"`
	PumpOn      bool    `json:"pumpOn"`
	CoolingOn   bool    `json:"coolingOn"`
	Mode        string  `json:"mode"`
	Connected   bool    `json:"connected"`
	Port        string  `json:"port,omitempty"`
}

// DefaultStatus is what an empty status body decodes to.
func DefaultStatus() Status {
	return Status{
		Pressure1: math.NaN(),
		Pressure2: math.NaN(),
		Mode:      ModeManual,
		Connected: true,
	}
}

// Manual reports whether operator commands are accepted.
func (s Status) Manual() bool { return s.Mode == ModeManual }

// KidneyPressure returns the pressure of line 1 or 2. Line 1 falls back to
// the legacy single pressure field; an unreported line 2 is NaN.
func (s Status) KidneyPressure(line int) float64 {
	switch line {
	case 1:
		if !math.IsNaN(s.Pressure1) {
			return s.Pressure1
		}
		return s.Pressure
	case 2:
		return s.Pressure2
	default:
		return math.NaN()
	}
}

// StatusFromFields decodes a loosely typed status document. Missing or
// non-numeric numbers become 0, missing booleans false, a missing mode
// Manual. A missing "connected" field counts as connected.
func StatusFromFields(fields map[string]any) Status {
	st := DefaultStatus()
	if len(fields) == 0 {
		return st
	}

	st.Temperature = numberOr(fields["temperature"], 0)
	st.Flow = numberOr(fields["flow"], 0)
	st.Pressure = numberOr(fields["pressure"], 0)
	st.Pressure1 = numberOr(fields["pressure1"], math.NaN())
	st.Pressure2 = numberOr(firstPresent(fields, "pressure2", "pressure_channel_2"), math.NaN())
	st.Bubble = truthy(fields["bubble"])
	st.PumpOn = truthy(fields["pumpOn"])
	st.CoolingOn = truthy(fields["coolingOn"])

	if m, ok := fields["mode"].(string); ok && m != "" {
		st.Mode = m
	}
	if c, ok := fields["connected"].(bool); ok {
		st.Connected = c
	}
	if p, ok := fields["port"].(string); ok {
		st.Port = p
	}
	return st
}

// ParseMode maps loose operator input onto a canonical mode.
func ParseMode(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual", "man":
		return ModeManual, true
	case "automático", "automatico", "automatic", "auto":
		return ModeAutomatic, true
	default:
		return "", false
	}
}

// ToggleMode returns the mode the mode switch moves to.
func ToggleMode(current string) string {
	if current == ModeAutomatic {
		return ModeManual
	}
	return ModeAutomatic
}

func firstPresent(fields map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func numberOr(v any, def float64) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0 && !math.IsNaN(b)
	case int:
		return b != 0
	case int64:
		return b != 0
	default:
		return false
	}
}
