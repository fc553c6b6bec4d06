// Package statushttp talks to the perfusion backend's REST surface: it
// reads /api/status and posts control commands.
package statushttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
)

var ErrNotObject = errors.New("statushttp: status body is not a JSON object")

type Config struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:5000"
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
}

// StatusError reports a non-2xx answer from the backend.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("statushttp: %s returned %d", e.Path, e.Code)
	}
	return fmt.Sprintf("statushttp: %s returned %d: %s", e.Path, e.Code, e.Body)
}

type Client struct {
	base    string
	timeout time.Duration
	http    *fasthttp.Client
}

func New(cfg Config) *Client {
	cfg.ApplyDefaults()
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http: &fasthttp.Client{
			Name:                "perfwatch",
			MaxConnsPerHost:     4,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
}

func (c *Client) ReadStatus(ctx context.Context) (domain.Status, error) {
	body, err := c.do(ctx, fasthttp.MethodGet, "/api/status", nil)
	if err != nil {
		return domain.Status{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return domain.Status{}, fmt.Errorf("decode status: %w", err)
	}
	// a literal null decodes into a nil map
	if fields == nil {
		return domain.Status{}, ErrNotObject
	}
	return domain.StatusFromFields(fields), nil
}

func (c *Client) SetPump(ctx context.Context, on bool) error {
	return c.post(ctx, "/api/pump", map[string]any{"pumpOn": on})
}

func (c *Client) SetMode(ctx context.Context, mode string) error {
	return c.post(ctx, "/api/mode", map[string]any{"mode": mode})
}

func (c *Client) SetCooling(ctx context.Context, on bool) error {
	return c.post(ctx, "/api/cooling", map[string]any{"coolingOn": on})
}

func (c *Client) EmergencyStop(ctx context.Context) error {
	return c.post(ctx, "/api/emergency-stop", nil)
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) error {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = b
	}
	_, err := c.do(ctx, fasthttp.MethodPost, path, body)
	return err
}

// do runs one request. The deadline is the earlier of the client timeout
// and the context deadline.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if method == fasthttp.MethodPost {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	code := resp.StatusCode()
	if code < 200 || code > 299 {
		return nil, &StatusError{Path: path, Code: code, Body: strings.TrimSpace(string(resp.Body()))}
	}
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

var (
	_ ports.StatusSource = (*Client)(nil)
	_ ports.CommandSink  = (*Client)(nil)
)
