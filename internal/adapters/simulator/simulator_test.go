package simulator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ghalamif/perfwatch/internal/domain"
)

func TestSimulatorStartsSafe(t *testing.T) {
	s := New(Config{})
	st, err := s.ReadStatus(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if st.Mode != domain.ModeManual || st.PumpOn || st.Flow != 0 {
		t.Fatalf("expected manual mode with pump off, got %+v", st)
	}
	if !st.Connected {
		t.Fatalf("simulator should report connected")
	}
	if !math.IsNaN(st.Pressure2) {
		t.Fatalf("second kidney disabled, expected NaN pressure2")
	}
}

func TestSimulatorPumpFollowsMode(t *testing.T) {
	ctx := context.Background()
	s := New(Config{SecondKidney: true})

	if err := s.SetPump(ctx, true); err != nil {
		t.Fatalf("pump: %v", err)
	}
	st, _ := s.ReadStatus(ctx)
	if !st.PumpOn || st.Flow <= 0 || st.Pressure1 <= 0 || math.IsNaN(st.Pressure2) {
		t.Fatalf("expected running pump with both pressures, got %+v", st)
	}

	if err := s.SetMode(ctx, "auto"); err != nil {
		t.Fatalf("mode: %v", err)
	}
	_ = s.SetPump(ctx, false)
	st, _ = s.ReadStatus(ctx)
	if !st.PumpOn || st.Mode != domain.ModeAutomatic {
		t.Fatalf("pump change must be ignored in Automático, got %+v", st)
	}

	_ = s.EmergencyStop(ctx)
	st, _ = s.ReadStatus(ctx)
	if st.PumpOn {
		t.Fatalf("emergency stop must stop the pump in any mode")
	}

	if err := s.SetMode(ctx, "turbo"); err == nil {
		t.Fatalf("expected unknown mode error")
	}
}

func TestSimulatorFailNext(t *testing.T) {
	s := New(Config{})
	s.FailNext(2)
	for i := 0; i < 2; i++ {
		if _, err := s.ReadStatus(context.Background()); !errors.Is(err, ErrInjected) {
			t.Fatalf("read %d: expected injected failure, got %v", i, err)
		}
	}
	if _, err := s.ReadStatus(context.Background()); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}

func TestSimulatorIsDeterministic(t *testing.T) {
	a, b := New(Config{}), New(Config{})
	for i := 0; i < 5; i++ {
		sa, _ := a.ReadStatus(context.Background())
		sb, _ := b.ReadStatus(context.Background())
		if sa.Temperature != sb.Temperature {
			t.Fatalf("read %d: %v != %v", i, sa.Temperature, sb.Temperature)
		}
	}
}
