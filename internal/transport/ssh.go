package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	ptyTerm   = "vt100"
	ptyHeight = 24
	ptyWidth  = 200
)

type sshTransport struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	*stream
	writeMu sync.Mutex
}

// dialSSH authenticates at connection time and opens one interactive shell
// channel. The device CLI keeps state (privilege level, pager) per shell, so
// every command of the audit is written to the same channel.
func dialSSH(ctx context.Context, target Target, logger *zap.SugaredLogger) (*sshTransport, error) {
	config, err := buildSSHConfig(target, logger)
	if err != nil {
		return nil, err
	}

	addr := target.Address()
	dialer := &net.Dialer{Timeout: target.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Address: addr, Err: err}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, &AuthenticationError{Address: addr, Stage: "ssh", Reason: "credentials rejected", Err: err}
		}
		return nil, &ConnectionError{Address: addr, Err: err}
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	t, err := openShell(client)
	if err != nil {
		client.Close()
		return nil, &ConnectionError{Address: addr, Err: err}
	}
	return t, nil
}

func buildSSHConfig(target Target, logger *zap.SugaredLogger) (*ssh.ClientConfig, error) {
	creds := target.Credentials
	if creds.Username == "" {
		return nil, &AuthenticationError{Address: target.Address(), Stage: "ssh", Reason: "username not configured"}
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if target.KnownHostsFile != "" {
		cb, err := knownhosts.New(target.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", target.KnownHostsFile, err)
		}
		hostKeyCallback = cb
	} else {
		logger.Warnf("host key verification disabled for %s (no known_hosts file configured)", target.Label())
	}

	password := creds.Password
	return &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			// Many switch images only offer keyboard-interactive.
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         target.DialTimeout,
	}, nil
}

func openShell(client *ssh.Client) (*sshTransport, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(ptyTerm, ptyHeight, ptyWidth, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	return &sshTransport{
		client:  client,
		session: session,
		stdin:   stdin,
		stream:  newStream(stdout),
	}, nil
}

func (t *sshTransport) Write(p []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.stdin.Write(p)
	return err
}

func (t *sshTransport) Close() error {
	t.stream.close()
	t.session.Close()
	return t.client.Close()
}

func (t *sshTransport) Protocol() Protocol {
	return ProtocolSSH
}
