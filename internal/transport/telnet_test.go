package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
)

func TestNegotiationFilter(t *testing.T) {
	raw := []byte{
		telnetIAC, telnetDO, 1, // DO ECHO
		'S', 'w',
		telnetIAC, telnetWILL, 3, // WILL SGA
		telnetIAC, telnetSB, 24, 1, telnetIAC, telnetSE, // subnegotiation
		'i', telnetIAC, telnetIAC, 't',
		telnetIAC, telnetWONT, 5,
		0x00, 'c', 'h',
	}

	var replies [][]byte
	f := &negotiationFilter{
		r: bytes.NewReader(raw),
		reply: func(p []byte) error {
			replies = append(replies, append([]byte(nil), p...))
			return nil
		},
	}

	out, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{'S', 'w', 'i', telnetIAC, 't', 'c', 'h'}
	if !bytes.Equal(out, want) {
		t.Fatalf("filtered data = %v, want %v", out, want)
	}

	wantReplies := [][]byte{
		{telnetIAC, telnetWONT, 1},
		{telnetIAC, telnetDONT, 3},
	}
	if len(replies) != len(wantReplies) {
		t.Fatalf("expected %d replies, got %d", len(wantReplies), len(replies))
	}
	for i := range wantReplies {
		if !bytes.Equal(replies[i], wantReplies[i]) {
			t.Errorf("reply %d = %v, want %v", i, replies[i], wantReplies[i])
		}
	}
}

// fakeTelnetDevice accepts one connection and runs script against it.
func fakeTelnetDevice(t *testing.T, script func(conn net.Conn, r *bufio.Reader)) Target {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn, bufio.NewReader(conn))
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return Target{
		Name:         "lab-switch",
		Host:         host,
		Port:         port,
		Protocol:     ProtocolTelnet,
		LoginTimeout: 500 * time.Millisecond,
		DialAttempts: 1,
	}
}

func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func TestConnectTelnetHandshake(t *testing.T) {
	received := make(chan []string, 1)
	target := fakeTelnetDevice(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte{telnetIAC, telnetDO, 1})
		conn.Write([]byte("\r\nUser Access Verification\r\n\r\nPassword: "))
		var got []string
		got = append(got, readLine(r))
		conn.Write([]byte("\r\nSwitch>"))
		got = append(got, readLine(r))
		conn.Write([]byte("enable\r\nPassword: "))
		got = append(got, readLine(r))
		conn.Write([]byte("\r\nSwitch#"))
		received <- got
		r.ReadString('\n')
	})
	target.Credentials = Credentials{LinePassword: "cisco", EnablePassword: "class"}

	session, err := Connect(context.Background(), target, nil)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer session.Close()

	if !session.Authenticated() {
		t.Fatal("expected authenticated session")
	}

	got := <-received
	// The IAC WONT reply precedes the first line.
	got[0] = strings.TrimPrefix(got[0], string([]byte{telnetIAC, telnetWONT, 1}))
	want := []string{"cisco", "enable", "class"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("device received %q at step %d, want %q", got[i], i, want[i])
		}
	}
}

func TestConnectTelnetBadLinePassword(t *testing.T) {
	target := fakeTelnetDevice(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte("Password: "))
		readLine(r)
		conn.Write([]byte("\r\n% Bad passwords\r\nPassword: "))
		r.ReadString('\n')
	})
	target.Credentials = Credentials{LinePassword: "wrong"}

	_, err := Connect(context.Background(), target, nil)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if authErr.Stage != "line" {
		t.Errorf("stage = %q, want line", authErr.Stage)
	}
	if !errors.Is(err, sharedErrors.ErrAuthentication) {
		t.Error("expected error to match ErrAuthentication")
	}
}

func TestConnectTelnetMissingEnablePassword(t *testing.T) {
	target := fakeTelnetDevice(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte("Password: "))
		readLine(r)
		conn.Write([]byte("\r\nSwitch>"))
		readLine(r)
		conn.Write([]byte("enable\r\nPassword: "))
		r.ReadString('\n')
	})
	target.Credentials = Credentials{LinePassword: "cisco"}

	_, err := Connect(context.Background(), target, nil)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if authErr.Stage != "enable" {
		t.Errorf("stage = %q, want enable", authErr.Stage)
	}
}

func TestConnectTelnetNoPrompt(t *testing.T) {
	target := fakeTelnetDevice(t, func(conn net.Conn, r *bufio.Reader) {
		conn.Write([]byte("garbage without prompt"))
		r.ReadString('\n')
	})
	target.Credentials = Credentials{LinePassword: "cisco"}

	_, err := Connect(context.Background(), target, nil)
	if !errors.Is(err, sharedErrors.ErrAuthentication) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	_, err = Connect(context.Background(), Target{
		Host:         host,
		Port:         port,
		Protocol:     ProtocolTelnet,
		DialAttempts: 2,
		RetryDelay:   10 * time.Millisecond,
		Credentials:  Credentials{LinePassword: "cisco"},
	}, nil)

	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if !errors.Is(err, sharedErrors.ErrConnection) {
		t.Error("expected error to match ErrConnection")
	}
}

func TestConnectUnsupportedProtocol(t *testing.T) {
	_, err := Connect(context.Background(), Target{Host: "127.0.0.1", Port: 23, Protocol: "rlogin"}, nil)
	if !errors.Is(err, sharedErrors.ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestSessionRefusesBeforeHandshake(t *testing.T) {
	s := newSession(&telnetTransport{}, Target{})
	if err := s.Send([]byte("show version\n")); !errors.Is(err, sharedErrors.ErrNotAuthenticated) {
		t.Fatalf("Send() error = %v, want ErrNotAuthenticated", err)
	}
	if _, err := s.ReceiveUntil(context.Background(), nil, time.Millisecond); !errors.Is(err, sharedErrors.ErrNotAuthenticated) {
		t.Fatalf("ReceiveUntil() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestParseProtocol(t *testing.T) {
	tests := []struct {
		in      string
		want    Protocol
		wantErr bool
	}{
		{"telnet", ProtocolTelnet, false},
		{"ssh", ProtocolSSH, false},
		{"secure-shell", ProtocolSSH, false},
		{"http", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProtocol(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProtocol(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseProtocol(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
