package telemetry

import (
	"math"
	"testing"
)

func TestResistance(t *testing.T) {
	cases := []struct {
		name     string
		flow     float64
		pressure float64
		want     float64
		ok       bool
	}{
		{name: "nominal", flow: 200, pressure: 120, want: 600, ok: true},
		{name: "dashboard scenario", flow: 150, pressure: 90, want: 600, ok: true},
		{name: "zero flow", flow: 0, pressure: 120},
		{name: "negative flow", flow: -10, pressure: 120},
		{name: "missing pressure", flow: 200, pressure: NoData},
		{name: "missing flow", flow: math.NaN(), pressure: 120},
		{name: "infinite pressure", flow: 200, pressure: math.Inf(1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Resistance(tc.flow, tc.pressure)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v (value %v)", tc.ok, ok, got)
			}
			if ok && math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if !ok && got != 0 {
				t.Fatalf("unavailable resistance should carry no value, got %v", got)
			}
		})
	}
}

func TestWindowResistanceUsesSelectedChannel(t *testing.T) {
	w := NewWindow(10)
	w.Append("flow", 0, 200)
	w.Append("pressure:kidney1", 0, 120)
	w.Append("pressure:kidney2", 0, 60)

	if got, ok := w.Resistance("flow", "pressure:kidney1"); !ok || math.Abs(got-600) > 1e-9 {
		t.Fatalf("expected 600 on kidney1, got %v ok=%v", got, ok)
	}
	if got, ok := w.Resistance("flow", "pressure:kidney2"); !ok || math.Abs(got-300) > 1e-9 {
		t.Fatalf("expected 300 on kidney2, got %v ok=%v", got, ok)
	}
	if _, ok := w.Resistance("flow", "pressure:unknown"); ok {
		t.Fatalf("expected unavailable for an unknown pressure channel")
	}
	if _, ok := w.Resistance("missing-flow", "pressure:kidney1"); ok {
		t.Fatalf("absent flow should count as zero")
	}
}

func TestFormatResistance(t *testing.T) {
	if got := FormatResistance(600, true); got != "600.0 mmHg·min/L" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatResistance(0, false); got != "--" {
		t.Fatalf("expected placeholder, got %q", got)
	}
}
