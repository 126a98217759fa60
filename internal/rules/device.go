package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-switch/internal/facts"
	"github.com/khanhnv2901/seca-switch/internal/pager"
	consts "github.com/khanhnv2901/seca-switch/internal/shared/constants"
)

// Device is the view of one switch shared by every rule of a run. Interface
// and VLAN tables are read once and reused.
type Device struct {
	exec       pager.Executor
	configIdle time.Duration

	interfaces []facts.InterfaceState
	vlans      []facts.VLAN
	cache      map[string]string

	// headerRows belongs to the rule being evaluated; zero means the default.
	headerRows int
}

// DeviceOptions configures a Device.
type DeviceOptions struct {
	// ConfigIdleTimeout is the idle window for running-config filters, which
	// devices answer slowly.
	ConfigIdleTimeout time.Duration
}

// NewDevice wraps exec for a single audit run.
func NewDevice(exec pager.Executor, opts DeviceOptions) *Device {
	if opts.ConfigIdleTimeout <= 0 {
		opts.ConfigIdleTimeout = consts.SlowIdleTimeout
	}
	return &Device{
		exec:       exec,
		configIdle: opts.ConfigIdleTimeout,
		cache:      make(map[string]string),
	}
}

// Run executes command with the reader's default idle window.
func (d *Device) Run(ctx context.Context, command string) (string, error) {
	return d.run(ctx, command, 0)
}

// RunConfig executes a running-config filter.
func (d *Device) RunConfig(ctx context.Context, command string) (string, error) {
	return d.run(ctx, command, d.configIdle)
}

// RunCached executes command once per run and replays the answer afterwards.
func (d *Device) RunCached(ctx context.Context, command string) (string, error) {
	if text, ok := d.cache[command]; ok {
		return text, nil
	}
	text, err := d.Run(ctx, command)
	if err != nil {
		return text, err
	}
	d.cache[command] = text
	return text, nil
}

func (d *Device) run(ctx context.Context, command string, idle time.Duration) (string, error) {
	resp, err := d.exec.Execute(ctx, pager.Request{Command: command, IdleTimeout: idle})
	if err != nil {
		return resp.Text, fmt.Errorf("%s: %w", command, err)
	}
	return resp.Text, nil
}

// Unmatched reports whether a filtered running-config answer matched
// nothing: it is shorter than the header rows of the rule being evaluated.
func (d *Device) Unmatched(text string) bool {
	rows := d.headerRows
	if rows <= 0 {
		rows = headerRows
	}
	return facts.LineCount(text) < rows
}

// Interfaces returns every interface and its link state. A table with rows
// the extractor cannot read is a mismatch, not an empty device.
func (d *Device) Interfaces(ctx context.Context) ([]facts.InterfaceState, error) {
	if d.interfaces != nil {
		return d.interfaces, nil
	}
	text, err := d.Run(ctx, "show interfaces status")
	if err != nil {
		return nil, err
	}
	ifaces := facts.Interfaces(text)
	if len(ifaces) == 0 && facts.LineCount(text) > headerRows {
		return nil, mismatch("interface status rows", text)
	}
	d.interfaces = ifaces
	return d.interfaces, nil
}

// ConnectedInterfaces returns the interfaces whose state is "connected".
func (d *Device) ConnectedInterfaces(ctx context.Context) ([]facts.InterfaceState, error) {
	ifaces, err := d.Interfaces(ctx)
	if err != nil {
		return nil, err
	}
	return facts.Connected(ifaces), nil
}

// VLANs returns the active VLANs. Like Interfaces, unreadable rows are a
// mismatch.
func (d *Device) VLANs(ctx context.Context) ([]facts.VLAN, error) {
	if d.vlans != nil {
		return d.vlans, nil
	}
	text, err := d.Run(ctx, "show vlan brief")
	if err != nil {
		return nil, err
	}
	vlans := facts.VLANs(text)
	if len(vlans) == 0 && facts.LineCount(text) > headerRows {
		return nil, mismatch("active VLAN rows", text)
	}
	d.vlans = vlans
	return d.vlans, nil
}
