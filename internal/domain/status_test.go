package domain

import (
	"encoding/json"
	"math"
	"testing"
)

func TestStatusFromFieldsDefaults(t *testing.T) {
	st := StatusFromFields(nil)
	if st.Mode != ModeManual {
		t.Fatalf("expected default mode Manual, got %q", st.Mode)
	}
	if !st.Connected {
		t.Fatalf("expected missing connected field to count as connected")
	}
	if st.Temperature != 0 || st.Flow != 0 || st.Pressure != 0 {
		t.Fatalf("expected numeric defaults of 0, got %+v", st)
	}
	if !math.IsNaN(st.Pressure1) || !math.IsNaN(st.Pressure2) {
		t.Fatalf("expected kidney lines to be absent")
	}
}

func TestStatusFromFieldsPermissive(t *testing.T) {
	var fields map[string]any
	body := `{"temperature":"warm","flow":150,"pressure":null,"bubble":1,"pumpOn":"yes","mode":"","connected":"no"}`
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	st := StatusFromFields(fields)
	if st.Temperature != 0 {
		t.Fatalf("non-numeric temperature should default to 0, got %v", st.Temperature)
	}
	if st.Flow != 150 {
		t.Fatalf("expected flow 150, got %v", st.Flow)
	}
	if st.Pressure != 0 {
		t.Fatalf("null pressure should default to 0, got %v", st.Pressure)
	}
	if !st.Bubble {
		t.Fatalf("numeric 1 should read as bubble detected")
	}
	if st.PumpOn {
		t.Fatalf("string pumpOn should not read as true")
	}
	if st.Mode != ModeManual {
		t.Fatalf("empty mode should default to Manual, got %q", st.Mode)
	}
	if !st.Connected {
		t.Fatalf("non-boolean connected should fall back to connected")
	}
}

func TestKidneyPressure(t *testing.T) {
	st := StatusFromFields(map[string]any{"pressure": 90.0})
	if got := st.KidneyPressure(1); got != 90 {
		t.Fatalf("line 1 should fall back to pressure, got %v", got)
	}
	if got := st.KidneyPressure(2); !math.IsNaN(got) {
		t.Fatalf("line 2 should be absent, got %v", got)
	}

	st = StatusFromFields(map[string]any{"pressure": 90.0, "pressure1": 80.0, "pressure_channel_2": 70.0})
	if got := st.KidneyPressure(1); got != 80 {
		t.Fatalf("expected line 1 = 80, got %v", got)
	}
	if got := st.KidneyPressure(2); got != 70 {
		t.Fatalf("expected line 2 = 70, got %v", got)
	}
}

func TestParseAndToggleMode(t *testing.T) {
	cases := map[string]string{
		"manual":     ModeManual,
		"MAN":        ModeManual,
		"Automático": ModeAutomatic,
		"auto":       ModeAutomatic,
	}
	for in, want := range cases {
		got, ok := ParseMode(in)
		if !ok || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseMode("turbo"); ok {
		t.Fatalf("expected unknown mode to be rejected")
	}
	if ToggleMode(ModeManual) != ModeAutomatic || ToggleMode(ModeAutomatic) != ModeManual {
		t.Fatalf("toggle should flip between Manual and Automático")
	}
}
