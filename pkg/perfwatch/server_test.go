package perfwatch

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"

	"github.com/ghalamif/perfwatch/internal/adapters/simulator"
	"github.com/ghalamif/perfwatch/internal/dashboard"
)

func newTestServer(t *testing.T) (*viewServer, *dashboard.Dashboard, *simulator.Source) {
	t.Helper()
	sim := simulator.New(simulator.Config{SecondKidney: true})
	obs, reg := testObs(t)
	dash, err := dashboard.New(dashboard.Config{}, sim, sim, obs)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	return newViewServer(dash, reg), dash, sim
}

func serveRequest(s *viewServer, method, uri, body string) *fasthttp.RequestCtx {
	rc := &fasthttp.RequestCtx{}
	rc.Request.Header.SetMethod(method)
	rc.Request.SetRequestURI(uri)
	if body != "" {
		rc.Request.SetBodyString(body)
	}
	s.Handler(rc)
	return rc
}

func TestServerView(t *testing.T) {
	s, dash, sim := newTestServer(t)
	ctx := context.Background()
	_ = sim.SetPump(ctx, true)
	for i := 0; i < 3; i++ {
		if err := dash.Cycle(ctx); err != nil {
			t.Fatalf("cycle: %v", err)
		}
	}

	rc := serveRequest(s, "GET", "/api/view", "")
	if rc.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected 200, got %d", rc.Response.StatusCode())
	}
	var view struct {
		Connected  bool                         `json:"connected"`
		Mode       string                       `json:"mode"`
		Resistance *float64                     `json:"resistance"`
		Series     map[string][]json.RawMessage `json:"series"`
		Controls   struct {
			Pump bool `json:"pump"`
		} `json:"controls"`
	}
	if err := json.Unmarshal(rc.Response.Body(), &view); err != nil {
		t.Fatalf("decode view: %v (%s)", err, rc.Response.Body())
	}
	if !view.Connected || view.Mode != ModeManual || !view.Controls.Pump {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Resistance == nil || *view.Resistance <= 0 {
		t.Fatalf("expected a resistance value, got %v", view.Resistance)
	}
	if n := len(view.Series[ChannelFlow]); n != 3 {
		t.Fatalf("expected 3 flow samples, got %d", n)
	}
}

func TestServerSeries(t *testing.T) {
	s, dash, _ := newTestServer(t)
	_ = dash.Cycle(context.Background())

	rc := serveRequest(s, "GET", "/api/series/"+ChannelPressureKidney2, "")
	if rc.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected 200, got %d", rc.Response.StatusCode())
	}
	var series struct {
		Channel  string `json:"channel"`
		Capacity int    `json:"capacity"`
		Samples  []struct {
			Seq int64 `json:"seq"`
		} `json:"samples"`
	}
	if err := json.Unmarshal(rc.Response.Body(), &series); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if series.Channel != ChannelPressureKidney2 || series.Capacity != 50 || len(series.Samples) != 1 {
		t.Fatalf("unexpected series %+v", series)
	}

	rc = serveRequest(s, "GET", "/api/series/oxygen", "")
	if rc.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404 for unknown channel, got %d", rc.Response.StatusCode())
	}
}

func TestServerResistanceUnavailable(t *testing.T) {
	s, dash, _ := newTestServer(t)
	// pump off: zero flow
	_ = dash.Cycle(context.Background())

	rc := serveRequest(s, "GET", "/api/resistance", "")
	var resp struct {
		Value *float64 `json:"value"`
		Text  string   `json:"text"`
	}
	if err := json.Unmarshal(rc.Response.Body(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Value != nil || resp.Text != "--" {
		t.Fatalf("expected unavailable resistance, got %+v", resp)
	}
}

func TestServerSelectPressure(t *testing.T) {
	s, dash, _ := newTestServer(t)

	rc := serveRequest(s, "POST", "/api/select-pressure", `{"channel":"pressure:kidney2"}`)
	if rc.Response.StatusCode() != fasthttp.StatusNoContent {
		t.Fatalf("expected 204, got %d", rc.Response.StatusCode())
	}
	if got := dash.State().SelectedPressure; got != ChannelPressureKidney2 {
		t.Fatalf("selection not applied, got %s", got)
	}

	rc = serveRequest(s, "POST", "/api/select-pressure", `{"channel":"flow"}`)
	if rc.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("expected 400 for non-pressure channel, got %d", rc.Response.StatusCode())
	}
	rc = serveRequest(s, "POST", "/api/select-pressure", `{`)
	if rc.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", rc.Response.StatusCode())
	}
}

func TestServerCommands(t *testing.T) {
	s, dash, sim := newTestServer(t)
	ctx := context.Background()

	rc := serveRequest(s, "POST", "/api/commands/pump", "")
	if rc.Response.StatusCode() != fasthttp.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rc.Response.StatusCode(), rc.Response.Body())
	}
	st, _ := sim.ReadStatus(ctx)
	if !st.PumpOn {
		t.Fatalf("pump toggle did not reach the apparatus")
	}

	rc = serveRequest(s, "POST", "/api/commands/mode", `{"mode":"auto"}`)
	if rc.Response.StatusCode() != fasthttp.StatusNoContent {
		t.Fatalf("expected 204 for mode, got %d", rc.Response.StatusCode())
	}
	_ = dash.Cycle(ctx)

	rc = serveRequest(s, "POST", "/api/commands/emergency-stop", "")
	if rc.Response.StatusCode() != fasthttp.StatusConflict {
		t.Fatalf("expected 409 outside Manual, got %d", rc.Response.StatusCode())
	}
	if !strings.Contains(string(rc.Response.Body()), "locked") {
		t.Fatalf("expected lock reason in body, got %s", rc.Response.Body())
	}

	rc = serveRequest(s, "POST", "/api/commands/mode", `{"mode":"turbo"}`)
	if rc.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("expected 400 for invalid mode, got %d", rc.Response.StatusCode())
	}

	rc = serveRequest(s, "POST", "/api/commands/launch", "")
	if rc.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404 for unknown command, got %d", rc.Response.StatusCode())
	}

	rc = serveRequest(s, "POST", "/api/commands/pump", `{"on":`)
	if rc.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("expected 400 for bad payload, got %d", rc.Response.StatusCode())
	}
}

func TestServerHealthAndNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)
	if rc := serveRequest(s, "GET", "/healthz", ""); string(rc.Response.Body()) != "ok" {
		t.Fatalf("unexpected health body %q", rc.Response.Body())
	}
	if rc := serveRequest(s, "GET", "/nope", ""); rc.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", rc.Response.StatusCode())
	}
}
