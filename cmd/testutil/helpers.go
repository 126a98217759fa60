package testutil

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	consts "github.com/khanhnv2901/seca-switch/internal/shared/constants"
	"github.com/khanhnv2901/seca-switch/internal/shared/security"
	"github.com/khanhnv2901/seca-switch/internal/transport"
)

// LabPassword is the line password the lab switch accepts.
const LabPassword = "cisco"

// ShowVersion is a realistic "show version" answer long enough to pass the
// post-login probe.
const ShowVersion = "Cisco IOS Software, C2960 Software (C2960-LANBASEK9-M), Version 15.0(2)SE\r\n" +
	"ROM: Bootstrap program is C2960 boot loader\r\n" +
	"Switch uptime is 2 weeks"

// TestEnv holds test environment configuration and cleanup functions.
type TestEnv struct {
	TmpDir       string
	ResultsDir   string
	cleanupFuncs []func()
	t            *testing.T
}

// NewTestEnv creates a new test environment with automatic cleanup.
// Usage:
//
//	env := testutil.NewTestEnv(t)
//	defer env.Cleanup()
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()
	resultsDir := filepath.Join(tmpDir, "results")
	if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
		t.Fatalf("Failed to create test results directory: %v", err)
	}

	return &TestEnv{
		TmpDir:       tmpDir,
		ResultsDir:   resultsDir,
		t:            t,
		cleanupFuncs: []func(){},
	}
}

// AddCleanup adds a cleanup function to be called when Cleanup() is called.
// Cleanup functions are called in reverse order (LIFO).
func (e *TestEnv) AddCleanup(fn func()) {
	e.cleanupFuncs = append([]func(){fn}, e.cleanupFuncs...)
}

// Cleanup runs all registered cleanup functions.
func (e *TestEnv) Cleanup() {
	for _, fn := range e.cleanupFuncs {
		fn()
	}
}

// WriteConfig writes a seca-switch configuration that points the results
// directory into the environment and lists targets as telnet devices.
func (e *TestEnv) WriteConfig(targets ...transport.Target) string {
	e.t.Helper()

	var b strings.Builder
	fmt.Fprintf(&b, "results_dir: %s\n", e.ResultsDir)
	b.WriteString("defaults:\n  idle_timeout: 50ms\n  config_idle_timeout: 50ms\n  login_timeout: 1s\n  dial_attempts: 1\n")
	b.WriteString("devices:\n")
	for _, target := range targets {
		fmt.Fprintf(&b, "  - name: %s\n    ip: %s\n    port: %d\n    protocol: telnet\n    line_password: %s\n",
			target.Name, target.Host, target.Port, target.Credentials.LinePassword)
	}
	return e.CreateFile("seca-switch.yaml", []byte(b.String()))
}

// CreateFile creates a file in the test environment with the given content.
// The file path is relative to the test's temporary directory.
func (e *TestEnv) CreateFile(relativePath string, content []byte) string {
	e.t.Helper()

	fullPath := resolveTmpPath(e.TmpDir, relativePath, e.t)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		e.t.Fatalf("Failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, content, consts.DefaultFilePerm); err != nil {
		e.t.Fatalf("Failed to create file %s: %v", fullPath, err)
	}

	return fullPath
}

// ReadFile reads a file from the test environment.
// The file path is relative to the test's temporary directory.
func (e *TestEnv) ReadFile(relativePath string) []byte {
	e.t.Helper()

	fullPath := resolveTmpPath(e.TmpDir, relativePath, e.t)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		e.t.Fatalf("Failed to read file %s: %v", fullPath, err)
	}

	return content
}

// FileExists checks if a file exists in the test environment.
func (e *TestEnv) FileExists(relativePath string) bool {
	fullPath := resolveTmpPath(e.TmpDir, relativePath, e.t)
	_, err := os.Stat(fullPath)
	return err == nil
}

// MustExist fails the test if the file does not exist.
func (e *TestEnv) MustExist(relativePath string) {
	e.t.Helper()
	if !e.FileExists(relativePath) {
		e.t.Fatalf("File %s should exist but does not", relativePath)
	}
}

func resolveTmpPath(baseDir, relativePath string, t *testing.T) string {
	t.Helper()
	path, err := security.ResolveWithin(baseDir, relativePath)
	if err != nil {
		t.Fatalf("invalid test path %s: %v", relativePath, err)
	}
	return path
}

// LabSwitch starts an in-process telnet switch that accepts LabPassword,
// enters privileged mode and answers each command from answers. Commands
// without an answer reply like a filter with no match: echo, blank line,
// prompt. Commands listed in hang are read but never answered. The listener
// serves one session and is closed when the test ends.
func LabSwitch(t *testing.T, name string, answers map[string]string, hang map[string]bool) transport.Target {
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
		r := bufio.NewReader(conn)

		conn.Write([]byte("\r\nUser Access Verification\r\n\r\nPassword: "))
		if line, _ := r.ReadString('\n'); strings.TrimSpace(line) != LabPassword {
			conn.Write([]byte("\r\n% Bad passwords\r\n\r\nPassword: "))
			r.ReadString('\n')
			return
		}
		conn.Write([]byte("\r\nSwitch>"))
		r.ReadString('\n')
		conn.Write([]byte("enable\r\nSwitch#"))

		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(line)
			if hang[cmd] {
				continue
			}
			conn.Write([]byte(cmd + "\r\n" + answers[cmd] + "\r\nSwitch#"))
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return transport.Target{
		Name:         name,
		Host:         host,
		Port:         port,
		Protocol:     transport.ProtocolTelnet,
		Credentials:  transport.Credentials{LinePassword: LabPassword},
		LoginTimeout: time.Second,
		DialAttempts: 1,
	}
}
