package telemetry

import (
	"math"
	"strconv"
)

// ResistanceUnit is the display unit of Resistance.
const ResistanceUnit = "mmHg·min/L"

// Resistance divides pressure (mmHg) by flow converted from ml/min to L/min.
// It reports false, never an error, when pressure is not finite or flow is
// not positive. A non-finite flow counts as zero.
func Resistance(flowMLPerMin, pressureMMHg float64) (float64, bool) {
	if math.IsNaN(flowMLPerMin) || math.IsInf(flowMLPerMin, 0) {
		flowMLPerMin = 0
	}
	if math.IsNaN(pressureMMHg) || math.IsInf(pressureMMHg, 0) {
		return 0, false
	}
	flowLPerMin := flowMLPerMin / 1000
	if flowLPerMin <= 0 {
		return 0, false
	}
	return pressureMMHg / flowLPerMin, true
}

// Resistance computes the metric from the latest flow sample and the latest
// sample of the selected pressure channel.
func (w *Window) Resistance(flowChannel, pressureChannel string) (float64, bool) {
	flow := 0.0
	if s, ok := w.Latest(flowChannel); ok {
		flow = s.Value
	}
	pressure := NoData
	if s, ok := w.Latest(pressureChannel); ok {
		pressure = s.Value
	}
	return Resistance(flow, pressure)
}

// FormatResistance renders the metric with one decimal, or "--" when unavailable.
func FormatResistance(v float64, ok bool) string {
	if !ok {
		return "--"
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + " " + ResistanceUnit
}
