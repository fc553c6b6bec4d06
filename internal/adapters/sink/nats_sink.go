package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
)

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSSink publishes each reading as JSON on <subject>.<channel>, with
// ':' in channel names mapped to '.' so kidney lines become subtokens.
type NATSSink struct {
	pub     Publisher
	subject string
	closer  func()
}

func NewNATSSink(pub Publisher, subject string) *NATSSink {
	return &NATSSink{pub: pub, subject: strings.TrimSuffix(subject, ".")}
}

// DialNATSSink connects to url and returns a sink owning the connection.
func DialNATSSink(url, subject, clientName string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name(clientName), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	s := NewNATSSink(nc, subject)
	s.closer = nc.Close
	return s, nil
}

func (n *NATSSink) Name() string { return "nats" }

func (n *NATSSink) Subject(channel string) string {
	return n.subject + "." + strings.ReplaceAll(channel, ":", ".")
}

func (n *NATSSink) WriteBatch(ctx context.Context, readings []*domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	for _, r := range readings {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal reading: %w", err)
		}
		if err := n.pub.Publish(n.Subject(r.Channel), b); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
	}
	return n.pub.FlushWithContext(ctx)
}

func (n *NATSSink) Close() {
	if n.closer != nil {
		n.closer()
	}
}

var _ ports.Sink = (*NATSSink)(nil)
