package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghalamif/perfwatch/internal/domain"
	"github.com/ghalamif/perfwatch/internal/ports"
)

// CommandKind names an operator command.
type CommandKind string

const (
	CommandPump          CommandKind = "pump"
	CommandMode          CommandKind = "mode"
	CommandCooling       CommandKind = "cooling"
	CommandEmergencyStop CommandKind = "emergency-stop"
)

var (
	ErrUnknownCommand      = errors.New("perfwatch: unknown command")
	ErrManualControlLocked = errors.New("perfwatch: manual control locked outside Manual mode")
	ErrCommandsUnavailable = errors.New("perfwatch: no command sink configured")
	ErrInvalidMode         = errors.New("perfwatch: invalid mode")
)

// CommandPayload carries an optional explicit target. When a field is left
// empty the command toggles the current state instead.
type CommandPayload struct {
	On   *bool  `json:"on,omitempty"`
	Mode string `json:"mode,omitempty"`
}

type commandSpec struct {
	// gated commands are refused outside Manual mode.
	gated bool
	send  func(ctx context.Context, sink ports.CommandSink, current domain.Status, p CommandPayload) error
}

var commandTable = map[CommandKind]commandSpec{
	CommandPump: {
		gated: true,
		send: func(ctx context.Context, sink ports.CommandSink, current domain.Status, p CommandPayload) error {
			return sink.SetPump(ctx, target(p.On, !current.PumpOn))
		},
	},
	CommandCooling: {
		gated: true,
		send: func(ctx context.Context, sink ports.CommandSink, current domain.Status, p CommandPayload) error {
			return sink.SetCooling(ctx, target(p.On, !current.CoolingOn))
		},
	},
	CommandEmergencyStop: {
		gated: true,
		send: func(ctx context.Context, sink ports.CommandSink, _ domain.Status, _ CommandPayload) error {
			return sink.EmergencyStop(ctx)
		},
	},
	CommandMode: {
		send: func(ctx context.Context, sink ports.CommandSink, current domain.Status, p CommandPayload) error {
			next := domain.ToggleMode(current.Mode)
			if p.Mode != "" {
				m, ok := domain.ParseMode(p.Mode)
				if !ok {
					return fmt.Errorf("%w: %q", ErrInvalidMode, p.Mode)
				}
				next = m
			}
			return sink.SetMode(ctx, next)
		},
	},
}

// CommandKinds lists the dispatchable commands.
func CommandKinds() []CommandKind {
	return []CommandKind{CommandPump, CommandMode, CommandCooling, CommandEmergencyStop}
}

func target(explicit *bool, toggled bool) bool {
	if explicit != nil {
		return *explicit
	}
	return toggled
}

// IssueCommand re-reads the device status, derives the command target from
// it and sends the command. Pump, cooling and emergency stop are refused
// outside Manual mode; the mode switch is always accepted. Failures are
// logged and returned, never retried. The dashboard only reflects the
// outcome after the next update cycle.
func (d *Dashboard) IssueCommand(ctx context.Context, kind CommandKind, payload CommandPayload) error {
	spec, ok := commandTable[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}
	if d.commands == nil {
		return ErrCommandsUnavailable
	}

	current, fresh := d.currentStatus(ctx)
	if spec.gated {
		if !current.Manual() {
			d.obs.IncCounter("perfwatch_commands_refused_total", 1)
			return fmt.Errorf("%s: %w (mode %s)", kind, ErrManualControlLocked, current.Mode)
		}
		if d.cfg.LockWhenDisconnected && !fresh {
			d.obs.IncCounter("perfwatch_commands_refused_total", 1)
			return fmt.Errorf("%s: %w", kind, ErrDisconnected)
		}
	}

	if err := spec.send(ctx, d.commands, current, payload); err != nil {
		d.obs.IncCounter("perfwatch_commands_failed_total", 1)
		d.obs.LogError("command_failed", err, ports.Field{Key: "command", Value: string(kind)})
		return fmt.Errorf("%s command: %w", kind, err)
	}

	d.obs.IncCounter("perfwatch_commands_issued_total", 1)
	d.obs.LogInfo("command_issued",
		ports.Field{Key: "command", Value: string(kind)},
		ports.Field{Key: "session", Value: d.session})
	return nil
}

// currentStatus reads the device status for a command. When the read fails
// the last status seen by the update cycle is used and fresh is false.
func (d *Dashboard) currentStatus(ctx context.Context) (domain.Status, bool) {
	readCtx, cancel := context.WithTimeout(ctx, d.cfg.ReadTimeout)
	defer cancel()
	st, err := d.source.ReadStatus(readCtx)
	if err != nil {
		d.obs.LogError("command_status_read_failed", err)
		return d.State().Status, false
	}
	return st, st.Connected
}
