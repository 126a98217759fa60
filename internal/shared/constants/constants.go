package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultIdleTimeout is the quiescence window that ends one read round.
	DefaultIdleTimeout = 1 * time.Second
	// SlowIdleTimeout is used for running-config filters, which the device
	// computes before it starts printing.
	SlowIdleTimeout = 5 * time.Second
	// DefaultLoginTimeout bounds each wait for a password prompt during login.
	DefaultLoginTimeout = 10 * time.Second
	// DefaultDialTimeout bounds a single TCP dial attempt.
	DefaultDialTimeout = 10 * time.Second
	// DefaultMaxContinuations caps how many --More-- pages one command may consume.
	DefaultMaxContinuations = 50
	// DefaultRuleTimeout bounds a single rule evaluation, including all its commands.
	DefaultRuleTimeout = 2 * time.Minute
	// DefaultDialAttempts is how many times a refused TCP dial is attempted.
	DefaultDialAttempts = 3
	// DefaultRetryDelay is the initial backoff between dial attempts.
	DefaultRetryDelay = 1 * time.Second
)

const (
	// ProbeMinLines is the minimum "show version" answer, in lines, that proves
	// the session reached an interpreter after login.
	ProbeMinLines = 4
	// DefaultFleetConcurrency bounds how many devices are audited at once.
	DefaultFleetConcurrency = 4
	// DefaultFleetRate is the number of new sessions opened per second.
	DefaultFleetRate = 2
)
