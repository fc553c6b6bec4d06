package dashboard

import (
	"fmt"
	"time"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/telemetry"
)

// Temperature indicator classes.
const (
	TemperatureOK   = "ok"
	TemperatureWarn = "warn"
)

// State is everything the update cycle owns besides the telemetry window.
type State struct {
	Seq              int64
	Connected        bool
	HasStatus        bool
	Status           domain.Status
	SelectedPressure string
	Resistance       float64
	ResistanceOK     bool
	LastError        string
	LastUpdate       time.Time
}

// Controls says which operator controls are usable.
type Controls struct {
	Pump           bool `json:"pump"`
	EmergencyStop  bool `json:"emergencyStop"`
	Cooling        bool `json:"cooling"`
	CoolingVisible bool `json:"coolingVisible"`
	Mode           bool `json:"mode"`
}

// Indicators are the display strings of the panel.
type Indicators struct {
	Connection       string `json:"connection"`
	Mode             string `json:"mode"`
	Temperature      string `json:"temperature"`
	TemperatureClass string `json:"temperatureClass"`
	Flow             string `json:"flow"`
	Pressure         string `json:"pressure"`
	Bubble           string `json:"bubble"`
	Pump             string `json:"pump"`
	CoolingAction    string `json:"coolingAction"`
	Resistance       string `json:"resistance"`
}

// View is the read-only model handed to a renderer every cycle.
type View struct {
	Connected        bool                          `json:"connected"`
	Mode             string                        `json:"mode"`
	SelectedPressure string                        `json:"selectedPressure"`
	Resistance       *float64                      `json:"resistance"`
	Indicators       Indicators                    `json:"indicators"`
	Controls         Controls                      `json:"controls"`
	Series           map[string][]telemetry.Sample `json:"series"`
	UpdatedAt        time.Time                     `json:"updatedAt,omitempty"`
}

// ClassifyTemperature returns "ok" inside the closed band, "warn" otherwise.
func ClassifyTemperature(temp, lo, hi float64) string {
	if temp >= lo && temp <= hi {
		return TemperatureOK
	}
	return TemperatureWarn
}

func controlsFor(st State, lockWhenDisconnected bool) Controls {
	manual := st.Status.Manual()
	usable := manual && !(lockWhenDisconnected && !st.Connected)
	return Controls{
		Pump:           usable,
		EmergencyStop:  usable,
		Cooling:        usable,
		CoolingVisible: manual,
		Mode:           true,
	}
}

func indicatorsFor(st State, cfg Config) Indicators {
	s := st.Status
	ind := Indicators{
		Connection:       "Desconectado",
		Mode:             "Modo: " + s.Mode,
		Temperature:      fmt.Sprintf("%.1f °C", s.Temperature),
		TemperatureClass: ClassifyTemperature(s.Temperature, cfg.TemperatureMin, cfg.TemperatureMax),
		Flow:             fmt.Sprintf("%g ml/min", s.Flow),
		Pressure:         fmt.Sprintf("%g mmHg", s.Pressure),
		Bubble:           "No",
		Pump:             "OFF",
		CoolingAction:    "Activar refrigeración",
		Resistance:       telemetry.FormatResistance(st.Resistance, st.ResistanceOK),
	}
	if st.Connected {
		ind.Connection = "Conectado"
	}
	if s.Bubble {
		ind.Bubble = "Sí"
	}
	if s.PumpOn {
		ind.Pump = "ON"
	}
	if s.CoolingOn {
		ind.CoolingAction = "Desactivar refrigeración"
	}
	return ind
}
