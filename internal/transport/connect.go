package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"

	consts "github.com/khanhnv2901/seca-switch/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
)

// rejectionMarkers are device replies that mean a secret was not accepted.
var rejectionMarkers = []string{
	"% Bad passwords",
	"% Bad secrets",
	"% Access denied",
	"% Login invalid",
	"% Authentication failed",
}

// Connect dials target with the variant named by target.Protocol and runs the
// login handshake. The returned Session is authenticated; any failure is a
// *ConnectionError or *AuthenticationError and leaves nothing open.
func Connect(ctx context.Context, target Target, logger *zap.SugaredLogger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	target = withDefaults(target)

	dial, err := dialerFor(target, logger)
	if err != nil {
		return nil, err
	}

	var tr Transport
	var lastErr error
	attempt := 0
	err = retry.Do(func() error {
		attempt++
		t, derr := dial(ctx)
		if derr != nil {
			lastErr = derr
			logger.Debugf("dial %s attempt %d failed: %v", target.Address(), attempt, derr)
			return derr
		}
		tr = t
		return nil
	},
		retry.Attempts(uint(target.DialAttempts)),
		retry.Delay(target.RetryDelay),
		retry.MaxDelay(4*target.RetryDelay),
		retry.Context(ctx),
		retry.RetryIf(isRetryableDial),
	)
	if err != nil {
		if lastErr == nil {
			lastErr = &ConnectionError{Address: target.Address(), Err: err}
		}
		return nil, lastErr
	}

	session := newSession(tr, target)
	if err := handshake(ctx, tr, target); err != nil {
		tr.Close()
		return nil, err
	}
	session.markAuthenticated()

	logger.Infof("session established device=%s protocol=%s", target.Label(), target.Protocol)
	return session, nil
}

func withDefaults(target Target) Target {
	if target.DialTimeout <= 0 {
		target.DialTimeout = consts.DefaultDialTimeout
	}
	if target.LoginTimeout <= 0 {
		target.LoginTimeout = consts.DefaultLoginTimeout
	}
	if target.DialAttempts <= 0 {
		target.DialAttempts = consts.DefaultDialAttempts
	}
	if target.RetryDelay <= 0 {
		target.RetryDelay = consts.DefaultRetryDelay
	}
	return target
}

func dialerFor(target Target, logger *zap.SugaredLogger) (func(context.Context) (Transport, error), error) {
	switch target.Protocol {
	case ProtocolTelnet:
		return func(ctx context.Context) (Transport, error) {
			return dialTelnet(ctx, target)
		}, nil
	case ProtocolSSH:
		return func(ctx context.Context) (Transport, error) {
			return dialSSH(ctx, target, logger)
		}, nil
	}
	return nil, &ConnectionError{
		Address: target.Address(),
		Err:     fmt.Errorf("%w: %q", sharedErrors.ErrUnsupportedScheme, target.Protocol),
	}
}

// isRetryableDial retries only failures to reach the device. Rejected
// credentials are final.
func isRetryableDial(err error) bool {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// handshake drives the login/enable exchange. Telnet first answers the line
// password prompt; SSH is already authenticated and only drains the banner.
func handshake(ctx context.Context, tr Transport, target Target) error {
	addr := target.Address()
	creds := target.Credentials

	switch tr.Protocol() {
	case ProtocolTelnet:
		if _, err := expectPrompt(ctx, tr, target, "line", hasPasswordPrompt); err != nil {
			return err
		}
		if err := tr.Write([]byte(creds.LinePassword + "\n")); err != nil {
			return &ConnectionError{Address: addr, Err: err}
		}
		out, err := expectPrompt(ctx, tr, target, "line", hasAnyPrompt)
		if err != nil {
			return err
		}
		if rejected(out) || hasPasswordPrompt(out) {
			return &AuthenticationError{Address: addr, Stage: "line", Reason: "line password rejected"}
		}
	case ProtocolSSH:
		if _, err := expectPrompt(ctx, tr, target, "ssh", hasAnyPrompt); err != nil {
			return err
		}
	}

	if err := tr.Write([]byte("enable\n")); err != nil {
		return &ConnectionError{Address: addr, Err: err}
	}

	if creds.EnablePassword != "" {
		if _, err := expectPrompt(ctx, tr, target, "enable", hasPasswordPrompt); err != nil {
			return err
		}
		if err := tr.Write([]byte(creds.EnablePassword + "\n")); err != nil {
			return &ConnectionError{Address: addr, Err: err}
		}
	}

	out, err := expectPrompt(ctx, tr, target, "enable", hasAnyPrompt)
	if err != nil {
		return err
	}
	if rejected(out) || hasPasswordPrompt(out) {
		return &AuthenticationError{Address: addr, Stage: "enable", Reason: "privileged password rejected or required"}
	}
	return nil
}

func expectPrompt(ctx context.Context, tr Transport, target Target, stage string, match func([]byte) bool) ([]byte, error) {
	out, err := tr.ReceiveUntil(ctx, match, target.LoginTimeout)
	if err == nil {
		return out, nil
	}
	if rejected(out) {
		return out, &AuthenticationError{Address: target.Address(), Stage: stage, Reason: "credentials rejected"}
	}
	if errors.Is(err, sharedErrors.ErrReadTimeout) {
		return out, &AuthenticationError{Address: target.Address(), Stage: stage, Reason: "expected prompt not received", Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	return out, &ConnectionError{Address: target.Address(), Err: err}
}

func tail(buf []byte) string {
	return strings.TrimRight(string(buf), " \r\n\t")
}

func hasPasswordPrompt(buf []byte) bool {
	return strings.HasSuffix(string(buf), PasswordPrompt) || strings.HasSuffix(tail(buf), strings.TrimSpace(PasswordPrompt))
}

// hasAnyPrompt matches an exec prompt (">" or "#") or a password prompt.
func hasAnyPrompt(buf []byte) bool {
	t := tail(buf)
	return strings.HasSuffix(t, ">") || strings.HasSuffix(t, "#") || hasPasswordPrompt(buf)
}

func rejected(buf []byte) bool {
	text := string(buf)
	for _, marker := range rejectionMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
