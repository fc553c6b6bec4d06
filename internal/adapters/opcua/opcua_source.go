package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
)

var ErrCommandNotMapped = errors.New("opcua: no node configured for command")

// Config captures the runtime details required to open an OPC UA session
// against the perfusion controller.
type Config struct {
	Endpoint        string       `yaml:"endpoint"`
	Username        string       `yaml:"username"`
	Password        string       `yaml:"password"`
	SecurityMode    string       `yaml:"security_mode"`
	SecurityPolicy  string       `yaml:"security_policy"`
	ApplicationName string       `yaml:"application_name"`
	Nodes           []NodeConfig `yaml:"nodes"`
	Commands        CommandNodes `yaml:"commands"`
}

// NodeConfig maps one status field (temperature, flow, pumpOn, mode, ...)
// onto a node.
type NodeConfig struct {
	Field  string `yaml:"field"`
	NodeID string `yaml:"node_id"`
}

// CommandNodes are the writable nodes behind the operator controls. Empty
// entries leave the command unsupported.
type CommandNodes struct {
	Pump          string `yaml:"pump"`
	Mode          string `yaml:"mode"`
	Cooling       string `yaml:"cooling"`
	EmergencyStop string `yaml:"emergency_stop"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "perfwatch"
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	seen := make(map[string]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Field == "" || n.NodeID == "" {
			return fmt.Errorf("node %q: field and node_id are required", n.NodeID)
		}
		if _, dup := seen[n.Field]; dup {
			return fmt.Errorf("field %q mapped twice", n.Field)
		}
		seen[n.Field] = struct{}{}
		if _, err := ua.ParseNodeID(n.NodeID); err != nil {
			return fmt.Errorf("parse node id %q: %w", n.NodeID, err)
		}
	}
	for _, id := range []string{c.Commands.Pump, c.Commands.Mode, c.Commands.Cooling, c.Commands.EmergencyStop} {
		if id == "" {
			continue
		}
		if _, err := ua.ParseNodeID(id); err != nil {
			return fmt.Errorf("parse command node id %q: %w", id, err)
		}
	}
	return nil
}

// nodeClient is the part of *opcua.Client the source uses.
type nodeClient interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
	Write(ctx context.Context, req *ua.WriteRequest) (*ua.WriteResponse, error)
	Close(ctx context.Context) error
}

type dialFunc func(ctx context.Context, cfg Config) (nodeClient, error)

// Source reads the status fields with one Read request per poll and writes
// operator commands to the mapped nodes. The session is opened lazily and
// dropped after any failure so the next call reconnects.
type Source struct {
	cfg  Config
	ids  []*ua.NodeID
	dial dialFunc

	mu     sync.Mutex
	client nodeClient
}

func NewSource(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ids := make([]*ua.NodeID, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		ids[i] = ua.MustParseNodeID(n.NodeID)
	}
	return &Source{cfg: cfg, ids: ids, dial: dialClient}, nil
}

func dialClient(ctx context.Context, cfg Config) (nodeClient, error) {
	client, err := opcua.NewClient(cfg.Endpoint, buildClientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("opcua connect: %w", err)
	}
	return client, nil
}

func (s *Source) ReadStatus(ctx context.Context) (domain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.connectLocked(ctx)
	if err != nil {
		return domain.Status{}, err
	}

	req := &ua.ReadRequest{
		MaxAge:             0,
		TimestampsToReturn: ua.TimestampsToReturnNeither,
		NodesToRead:        make([]*ua.ReadValueID, len(s.ids)),
	}
	for i, id := range s.ids {
		req.NodesToRead[i] = &ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue}
	}

	resp, err := client.Read(ctx, req)
	if err != nil {
		s.resetLocked(ctx)
		return domain.Status{}, fmt.Errorf("opcua read: %w", err)
	}
	if len(resp.Results) != len(s.ids) {
		return domain.Status{}, fmt.Errorf("opcua read: %d results for %d nodes", len(resp.Results), len(s.ids))
	}
	return domain.StatusFromFields(fieldsFromResults(s.cfg.Nodes, resp.Results)), nil
}

func (s *Source) SetPump(ctx context.Context, on bool) error {
	return s.write(ctx, s.cfg.Commands.Pump, on)
}

func (s *Source) SetMode(ctx context.Context, mode string) error {
	return s.write(ctx, s.cfg.Commands.Mode, mode)
}

func (s *Source) SetCooling(ctx context.Context, on bool) error {
	return s.write(ctx, s.cfg.Commands.Cooling, on)
}

func (s *Source) EmergencyStop(ctx context.Context) error {
	return s.write(ctx, s.cfg.Commands.EmergencyStop, true)
}

func (s *Source) write(ctx context.Context, node string, value any) error {
	if node == "" {
		return ErrCommandNotMapped
	}
	v, err := ua.NewVariant(value)
	if err != nil {
		return fmt.Errorf("opcua variant: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.connectLocked(ctx)
	if err != nil {
		return err
	}
	req := &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{{
			NodeID:      ua.MustParseNodeID(node),
			AttributeID: ua.AttributeIDValue,
			Value: &ua.DataValue{
				EncodingMask: ua.DataValueValue,
				Value:        v,
			},
		}},
	}
	resp, err := client.Write(ctx, req)
	if err != nil {
		s.resetLocked(ctx)
		return fmt.Errorf("opcua write %s: %w", node, err)
	}
	if len(resp.Results) == 0 {
		return fmt.Errorf("opcua write %s: empty result", node)
	}
	if resp.Results[0] != ua.StatusOK {
		return fmt.Errorf("opcua write %s: %s", node, resp.Results[0])
	}
	return nil
}

func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close(ctx)
	s.client = nil
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Source) connectLocked(ctx context.Context) (nodeClient, error) {
	if s.client != nil {
		return s.client, nil
	}
	client, err := s.dial(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

func (s *Source) resetLocked(ctx context.Context) {
	if s.client != nil {
		_ = s.client.Close(ctx)
		s.client = nil
	}
}

// fieldsFromResults turns read results into the loose status document.
// Bad status codes and unsupported types leave the field missing.
func fieldsFromResults(nodes []NodeConfig, results []*ua.DataValue) map[string]any {
	fields := make(map[string]any, len(nodes))
	for i, res := range results {
		if res == nil || res.Status != ua.StatusOK || i >= len(nodes) {
			continue
		}
		if v, ok := variantToField(res.Value); ok {
			fields[nodes[i].Field] = v
		}
	}
	return fields
}

func variantToField(v *ua.Variant) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch val := v.Value().(type) {
	case bool:
		return val, true
	case string:
		return val, true
	}
	return variantToFloat(v)
}

func buildClientOptions(cfg Config) []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(cfg.SecurityPolicy)),
		opcua.ApplicationName(cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(cfg.Username, cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var (
	_ ports.StatusSource = (*Source)(nil)
	_ ports.CommandSink  = (*Source)(nil)
)
