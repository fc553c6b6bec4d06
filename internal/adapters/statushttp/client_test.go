package statushttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/perfwatch/internal/domain"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

type backend struct {
	mu       sync.Mutex
	requests []recorded
	status   string
	code     int
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	b.mu.Lock()
	b.requests = append(b.requests, recorded{method: r.Method, path: r.URL.Path, body: body})
	status, code := b.status, b.code
	b.mu.Unlock()

	if code != 0 {
		w.WriteHeader(code)
		_, _ = w.Write([]byte("boom"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/api/status" {
		_, _ = w.Write([]byte(status))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func newClient(t *testing.T, b *backend) *Client {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", Timeout: time.Second})
}

func TestReadStatusDecodesPermissively(t *testing.T) {
	b := &backend{status: `{"temperature":5.2,"flow":150,"pressure":"n/a","pressure1":90,"pumpOn":true,"mode":"Manual","port":"/dev/ttyACM0"}`}
	c := newClient(t, b)

	st, err := c.ReadStatus(context.Background())
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if st.Temperature != 5.2 || st.Flow != 150 {
		t.Fatalf("unexpected numbers %+v", st)
	}
	if st.Pressure != 0 {
		t.Fatalf("non-numeric pressure should default to 0, got %v", st.Pressure)
	}
	if st.Pressure1 != 90 || !math.IsNaN(st.Pressure2) {
		t.Fatalf("unexpected kidney pressures %v/%v", st.Pressure1, st.Pressure2)
	}
	if !st.PumpOn || st.Mode != domain.ModeManual || !st.Connected || st.Port != "/dev/ttyACM0" {
		t.Fatalf("unexpected flags %+v", st)
	}
	if b.requests[0].method != http.MethodGet || b.requests[0].path != "/api/status" {
		t.Fatalf("unexpected request %+v", b.requests[0])
	}
}

func TestReadStatusRejectsNonObject(t *testing.T) {
	for _, body := range []string{`null`, `[1,2]`, `not json`} {
		c := newClient(t, &backend{status: body})
		if _, err := c.ReadStatus(context.Background()); err == nil {
			t.Fatalf("expected error for body %q", body)
		}
	}
}

func TestReadStatusNon2xx(t *testing.T) {
	c := newClient(t, &backend{code: http.StatusServiceUnavailable})
	_, err := c.ReadStatus(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected StatusError 503, got %v", err)
	}
}

func TestCommandsPostBodies(t *testing.T) {
	b := &backend{}
	c := newClient(t, b)
	ctx := context.Background()

	if err := c.SetPump(ctx, true); err != nil {
		t.Fatalf("pump: %v", err)
	}
	if err := c.SetMode(ctx, domain.ModeAutomatic); err != nil {
		t.Fatalf("mode: %v", err)
	}
	if err := c.SetCooling(ctx, false); err != nil {
		t.Fatalf("cooling: %v", err)
	}
	if err := c.EmergencyStop(ctx); err != nil {
		t.Fatalf("estop: %v", err)
	}

	want := []struct {
		path  string
		key   string
		value any
	}{
		{"/api/pump", "pumpOn", true},
		{"/api/mode", "mode", domain.ModeAutomatic},
		{"/api/cooling", "coolingOn", false},
		{"/api/emergency-stop", "", nil},
	}
	if len(b.requests) != len(want) {
		t.Fatalf("expected %d requests, got %d", len(want), len(b.requests))
	}
	for i, w := range want {
		got := b.requests[i]
		if got.method != http.MethodPost || got.path != w.path {
			t.Fatalf("request %d: got %s %s", i, got.method, got.path)
		}
		if w.key == "" {
			if got.body != nil {
				t.Fatalf("emergency stop should have no body, got %v", got.body)
			}
			continue
		}
		if got.body[w.key] != w.value {
			t.Fatalf("request %d: expected %s=%v, got %v", i, w.key, w.value, got.body)
		}
	}
}

func TestCommandNon2xxIsError(t *testing.T) {
	c := newClient(t, &backend{code: http.StatusBadRequest})
	if err := c.SetPump(context.Background(), true); err == nil {
		t.Fatalf("expected error on 400")
	}
}

func TestCancelledContextSkipsRequest(t *testing.T) {
	b := &backend{status: `{}`}
	c := newClient(t, b)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ReadStatus(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(b.requests) != 0 {
		t.Fatalf("no request should be sent")
	}
}
