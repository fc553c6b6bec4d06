package perfwatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/ghalamif/perfwatch/internal/dashboard"
	"github.com/ghalamif/perfwatch/internal/telemetry"
)

const commandTimeout = 5 * time.Second

// viewServer exposes the dashboard to renderers and operators.
type viewServer struct {
	dash    *dashboard.Dashboard
	metrics fasthttp.RequestHandler
}

func newViewServer(dash *dashboard.Dashboard, gatherer prometheus.Gatherer) *viewServer {
	return &viewServer{
		dash:    dash,
		metrics: fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
	}
}

type seriesResponse struct {
	Channel  string             `json:"channel"`
	Capacity int                `json:"capacity"`
	Samples  []telemetry.Sample `json:"samples"`
}

type resistanceResponse struct {
	Value    *float64 `json:"value"`
	Unit     string   `json:"unit"`
	Text     string   `json:"text"`
	Pressure string   `json:"pressure"`
}

type selectPressureRequest struct {
	Channel string `json:"channel"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *viewServer) Handler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/api/view" && method == fasthttp.MethodGet:
		writeJSON(ctx, fasthttp.StatusOK, s.dash.View())

	case strings.HasPrefix(path, "/api/series/") && method == fasthttp.MethodGet:
		s.handleSeries(ctx, path[len("/api/series/"):])

	case path == "/api/resistance" && method == fasthttp.MethodGet:
		s.handleResistance(ctx)

	case path == "/api/select-pressure" && method == fasthttp.MethodPost:
		s.handleSelectPressure(ctx)

	case strings.HasPrefix(path, "/api/commands/") && method == fasthttp.MethodPost:
		s.handleCommand(ctx, path[len("/api/commands/"):])

	case path == "/metrics":
		s.metrics(ctx)

	case path == "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.WriteString("ok")

	default:
		ctx.Error("NotFound", fasthttp.StatusNotFound)
	}
}

func (s *viewServer) handleSeries(ctx *fasthttp.RequestCtx, channel string) {
	w := s.dash.Window()
	for _, ch := range w.Channels() {
		if ch == channel {
			writeJSON(ctx, fasthttp.StatusOK, seriesResponse{
				Channel:  channel,
				Capacity: w.Capacity(),
				Samples:  w.Snapshot(channel),
			})
			return
		}
	}
	writeJSON(ctx, fasthttp.StatusNotFound, errorResponse{Error: "unknown channel " + channel})
}

func (s *viewServer) handleResistance(ctx *fasthttp.RequestCtx) {
	st := s.dash.State()
	resp := resistanceResponse{
		Unit:     telemetry.ResistanceUnit,
		Text:     telemetry.FormatResistance(st.Resistance, st.ResistanceOK),
		Pressure: st.SelectedPressure,
	}
	if st.ResistanceOK {
		v := st.Resistance
		resp.Value = &v
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *viewServer) handleSelectPressure(ctx *fasthttp.RequestCtx) {
	var req selectPressureRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if err := s.dash.SelectPressureChannel(req.Channel); err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *viewServer) handleCommand(ctx *fasthttp.RequestCtx, kind string) {
	var payload dashboard.CommandPayload
	if body := ctx.PostBody(); len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			writeJSON(ctx, fasthttp.StatusBadRequest, errorResponse{Error: "invalid payload: " + err.Error()})
			return
		}
	}

	cmdCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := s.dash.IssueCommand(cmdCtx, dashboard.CommandKind(kind), payload); err != nil {
		writeJSON(ctx, commandStatus(err), errorResponse{Error: err.Error()})
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrUnknownCommand):
		return fasthttp.StatusNotFound
	case errors.Is(err, dashboard.ErrInvalidMode):
		return fasthttp.StatusBadRequest
	case errors.Is(err, dashboard.ErrManualControlLocked):
		return fasthttp.StatusConflict
	case errors.Is(err, dashboard.ErrDisconnected):
		return fasthttp.StatusServiceUnavailable
	case errors.Is(err, dashboard.ErrCommandsUnavailable):
		return fasthttp.StatusNotImplemented
	default:
		return fasthttp.StatusBadGateway
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, code int, v any) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(code)
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
	}
}
