package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
)

// Protocol selects the transport variant used to reach a device.
type Protocol string

const (
	ProtocolTelnet Protocol = "telnet"
	ProtocolSSH    Protocol = "ssh"
)

// ParseProtocol maps a configuration value onto a Protocol.
func ParseProtocol(value string) (Protocol, error) {
	switch Protocol(value) {
	case ProtocolTelnet:
		return ProtocolTelnet, nil
	case ProtocolSSH, "secure-shell":
		return ProtocolSSH, nil
	}
	return "", fmt.Errorf("%w: %q (use telnet or ssh)", sharedErrors.ErrUnsupportedScheme, value)
}

// PasswordPrompt is the literal the device prints before reading a secret.
const PasswordPrompt = "Password: "

// Credentials holds the secrets for both variants. Telnet uses LinePassword,
// SSH uses Username/Password; EnablePassword is optional for both.
type Credentials struct {
	Username       string
	Password       string
	LinePassword   string
	EnablePassword string
}

// Target describes how to reach and authenticate against one device.
type Target struct {
	Name           string
	Host           string
	Port           int
	Protocol       Protocol
	Credentials    Credentials
	DialTimeout    time.Duration
	LoginTimeout   time.Duration
	DialAttempts   int
	RetryDelay     time.Duration
	KnownHostsFile string
}

// Address returns host:port suitable for net.Dial.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Label identifies the target in logs and reports.
func (t Target) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Address()
}

// Transport is an authenticated-or-authenticating duplex byte stream to a device.
// Implementations are selected once by Connect and never re-inspected.
type Transport interface {
	// Write sends raw bytes to the device interpreter.
	Write(p []byte) error

	// ReceiveUntil accumulates bytes until match reports true or no byte has
	// arrived for idle. An idle expiry returns the bytes read so far together
	// with ErrReadTimeout.
	ReceiveUntil(ctx context.Context, match func([]byte) bool, idle time.Duration) ([]byte, error)

	// Discard drops bytes that arrived but were never consumed.
	Discard() int

	// Close tears down the connection and unblocks pending reads.
	Close() error

	Protocol() Protocol
}

// Session is the explicit per-audit connection handle.
type Session struct {
	transport     Transport
	target        Target
	mu            sync.Mutex
	authenticated bool
	closeOnce     sync.Once
	closeErr      error
}

func newSession(tr Transport, target Target) *Session {
	return &Session{transport: tr, target: target}
}

// Authenticated reports whether the login handshake completed.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Session) markAuthenticated() {
	s.mu.Lock()
	s.authenticated = true
	s.mu.Unlock()
}

// Target returns the target this session was opened against.
func (s *Session) Target() Target {
	return s.target
}

// Send writes bytes to the device. It refuses to write before the handshake.
func (s *Session) Send(p []byte) error {
	if !s.Authenticated() {
		return sharedErrors.ErrNotAuthenticated
	}
	return s.transport.Write(p)
}

// ReceiveUntil reads with idle-timeout semantics, see Transport.
func (s *Session) ReceiveUntil(ctx context.Context, match func([]byte) bool, idle time.Duration) ([]byte, error) {
	if !s.Authenticated() {
		return nil, sharedErrors.ErrNotAuthenticated
	}
	return s.transport.ReceiveUntil(ctx, match, idle)
}

// Discard drops unread bytes left over from an earlier command.
func (s *Session) Discard() int {
	return s.transport.Discard()
}

// Close closes the transport. It is safe to call more than once and from
// another goroutine while a read is pending.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.authenticated = false
		s.mu.Unlock()
		s.closeErr = s.transport.Close()
	})
	return s.closeErr
}

// ConnectionError signals that the device could not be reached.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{sharedErrors.ErrConnection, e.Err}
}

// AuthenticationError signals that the device rejected the credentials or
// never offered the expected login prompts.
type AuthenticationError struct {
	Address string
	Stage   string
	Reason  string
	Err     error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("authenticate to %s (%s): %s", e.Address, e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() []error {
	if e.Err == nil {
		return []error{sharedErrors.ErrAuthentication}
	}
	return []error{sharedErrors.ErrAuthentication, e.Err}
}
