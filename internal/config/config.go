// Package config holds the typed, validated configuration for seca-switch.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/khanhnv2901/seca-switch/internal/compliance"
	"github.com/khanhnv2901/seca-switch/internal/pager"
	"github.com/khanhnv2901/seca-switch/internal/rules"
	consts "github.com/khanhnv2901/seca-switch/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
	"github.com/khanhnv2901/seca-switch/internal/transport"
)

// EnvPrefix prefixes environment overrides, e.g. SECA_SWITCH_RESULTS_DIR.
const EnvPrefix = "SECA_SWITCH"

const (
	defaultTelnetPort = 23
	defaultSSHPort    = 22
)

var dottedQuad = regexp.MustCompile(`^((25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// Config is the root of the configuration file.
type Config struct {
	ResultsDir    string   `mapstructure:"results_dir"`
	Framework     string   `mapstructure:"framework"`
	HashAlgorithm string   `mapstructure:"hash_algorithm"`
	Defaults      Defaults `mapstructure:"defaults"`
	Fleet         Fleet    `mapstructure:"fleet"`
	Devices       []Device `mapstructure:"devices"`
}

// Defaults are session tunables shared by every device.
type Defaults struct {
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ConfigIdleTimeout time.Duration `mapstructure:"config_idle_timeout"`
	MaxContinuations  int           `mapstructure:"max_continuations"`
	RuleTimeout       time.Duration `mapstructure:"rule_timeout"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	LoginTimeout      time.Duration `mapstructure:"login_timeout"`
	DialAttempts      int           `mapstructure:"dial_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	KnownHostsFile    string        `mapstructure:"known_hosts"`
}

// Fleet configures multi-device runs.
type Fleet struct {
	Concurrency int           `mapstructure:"concurrency"`
	Rate        float64       `mapstructure:"rate"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Device is one switch to audit.
type Device struct {
	Name           string `mapstructure:"name"`
	IP             string `mapstructure:"ip"`
	Port           int    `mapstructure:"port"`
	Protocol       string `mapstructure:"protocol"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	LinePassword   string `mapstructure:"line_password"`
	EnablePassword string `mapstructure:"enable_password"`
}

// ValidationError names the offending field of one device.
type ValidationError struct {
	Device string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("device %s: %s: %s", e.Device, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return sharedErrors.ErrValidation
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("results_dir", "")
	v.SetDefault("hash_algorithm", "sha256")
	v.SetDefault("framework", compliance.DefaultFramework)
	v.SetDefault("defaults.idle_timeout", consts.DefaultIdleTimeout)
	v.SetDefault("defaults.config_idle_timeout", consts.SlowIdleTimeout)
	v.SetDefault("defaults.max_continuations", consts.DefaultMaxContinuations)
	v.SetDefault("defaults.rule_timeout", consts.DefaultRuleTimeout)
	v.SetDefault("defaults.dial_timeout", consts.DefaultDialTimeout)
	v.SetDefault("defaults.login_timeout", consts.DefaultLoginTimeout)
	v.SetDefault("defaults.dial_attempts", consts.DefaultDialAttempts)
	v.SetDefault("defaults.retry_delay", consts.DefaultRetryDelay)
	v.SetDefault("fleet.concurrency", consts.DefaultFleetConcurrency)
	v.SetDefault("fleet.rate", consts.DefaultFleetRate)
}

// Load decodes and validates the configuration held by v. Environment
// variables prefixed with EnvPrefix override file values.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every device and the shared settings.
func (c *Config) Validate() error {
	var errs []error
	if c.Framework != "" && compliance.GetFramework(c.Framework) == nil {
		errs = append(errs, &ValidationError{Field: "framework", Reason: fmt.Sprintf("unknown framework %q", c.Framework)})
	}
	switch c.HashAlgorithm {
	case "", "sha256", "sha512":
	default:
		errs = append(errs, &ValidationError{Field: "hash_algorithm", Reason: fmt.Sprintf("unsupported algorithm %q", c.HashAlgorithm)})
	}
	if c.Fleet.Concurrency < 0 {
		errs = append(errs, &ValidationError{Field: "fleet.concurrency", Reason: "must not be negative"})
	}
	if c.Fleet.Rate < 0 {
		errs = append(errs, &ValidationError{Field: "fleet.rate", Reason: "must not be negative"})
	}

	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		label := d.Label()
		if seen[label] {
			errs = append(errs, &ValidationError{Device: label, Field: "name", Reason: "duplicate device"})
		}
		seen[label] = true
	}
	return errors.Join(errs...)
}

// Device returns the device called name. With an empty name it returns the
// only configured device.
func (c *Config) Device(name string) (Device, error) {
	if name == "" {
		switch len(c.Devices) {
		case 0:
			return Device{}, fmt.Errorf("%w: no devices configured", sharedErrors.ErrMissingRequired)
		case 1:
			return c.Devices[0], nil
		}
		return Device{}, fmt.Errorf("%w: %d devices configured, choose one with --device", sharedErrors.ErrInvalidInput, len(c.Devices))
	}
	for _, d := range c.Devices {
		if d.Name == name || d.IP == name {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: device %q is not configured", sharedErrors.ErrInvalidInput, name)
}

// ReaderOptions returns the pagination reader options.
func (c *Config) ReaderOptions() pager.Options {
	return pager.Options{
		IdleTimeout:      c.Defaults.IdleTimeout,
		MaxContinuations: c.Defaults.MaxContinuations,
	}
}

// DeviceOptions returns the per-run device options used by rules.
func (c *Config) DeviceOptions() rules.DeviceOptions {
	return rules.DeviceOptions{ConfigIdleTimeout: c.Defaults.ConfigIdleTimeout}
}

// Targets converts every device into a transport target.
func (c *Config) Targets() []transport.Target {
	out := make([]transport.Target, 0, len(c.Devices))
	for _, d := range c.Devices {
		out = append(out, d.Target(c.Defaults))
	}
	return out
}

// Label identifies the device in logs and reports.
func (d Device) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.IP
}

// Validate applies the per-device checks: dotted-quad address, port range,
// protocol, and the credentials the protocol needs.
func (d Device) Validate() error {
	label := d.Label()
	switch {
	case d.IP == "":
		return &ValidationError{Device: label, Field: "ip", Reason: "is required"}
	case !dottedQuad.MatchString(d.IP):
		return &ValidationError{Device: label, Field: "ip", Reason: fmt.Sprintf("%q is not a valid IPv4 address", d.IP)}
	case d.Port < 0 || d.Port > 65535:
		return &ValidationError{Device: label, Field: "port", Reason: fmt.Sprintf("%d is out of range 0-65535", d.Port)}
	case d.Protocol == "":
		return &ValidationError{Device: label, Field: "protocol", Reason: "is required"}
	}

	protocol, err := transport.ParseProtocol(d.Protocol)
	if err != nil {
		return &ValidationError{Device: label, Field: "protocol", Reason: err.Error()}
	}
	switch protocol {
	case transport.ProtocolSSH:
		if d.Username == "" {
			return &ValidationError{Device: label, Field: "username", Reason: "is required for ssh"}
		}
		if d.Password == "" {
			return &ValidationError{Device: label, Field: "password", Reason: "is required for ssh"}
		}
	case transport.ProtocolTelnet:
		if d.LinePassword == "" {
			return &ValidationError{Device: label, Field: "line_password", Reason: "is required for telnet"}
		}
	}
	return nil
}

// Target converts a validated device into a transport target. A zero port
// selects the protocol's well-known port.
func (d Device) Target(defaults Defaults) transport.Target {
	protocol, _ := transport.ParseProtocol(d.Protocol)
	port := d.Port
	if port == 0 {
		port = defaultTelnetPort
		if protocol == transport.ProtocolSSH {
			port = defaultSSHPort
		}
	}
	return transport.Target{
		Name:     d.Name,
		Host:     d.IP,
		Port:     port,
		Protocol: protocol,
		Credentials: transport.Credentials{
			Username:       d.Username,
			Password:       d.Password,
			LinePassword:   d.LinePassword,
			EnablePassword: d.EnablePassword,
		},
		DialTimeout:    defaults.DialTimeout,
		LoginTimeout:   defaults.LoginTimeout,
		DialAttempts:   defaults.DialAttempts,
		RetryDelay:     defaults.RetryDelay,
		KnownHostsFile: defaults.KnownHostsFile,
	}
}
