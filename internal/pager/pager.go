// Package pager sends one command at a time to a half-duplex device CLI and
// collects the complete response across "--More--" pagination prompts.
package pager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	consts "github.com/khanhnv2901/seca-switch/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
)

const (
	// MorePrompt is the literal the device prints when it waits for a keypress
	// before emitting the next page.
	MorePrompt = "--More-- "
	// ContinueKey requests exactly one more page.
	ContinueKey = " "
	// AbortKey ends a pager early; any key other than space or return does.
	AbortKey = "q"
)

// Conn is the part of a transport session the reader needs.
type Conn interface {
	Authenticated() bool
	Send(p []byte) error
	ReceiveUntil(ctx context.Context, match func([]byte) bool, idle time.Duration) ([]byte, error)
	Discard() int
}

// Executor runs device commands. Rules depend on this, not on Reader.
type Executor interface {
	Execute(ctx context.Context, req Request) (Response, error)
}

// Request is one command to send. A zero IdleTimeout uses the reader default.
type Request struct {
	Command     string
	IdleTimeout time.Duration
}

// Response is the text produced by one command.
type Response struct {
	Command       string
	Text          string
	Continuations int
	// Truncated is set when the final read round ended on cancellation rather
	// than quiescence; Text holds what arrived before that.
	Truncated bool
}

// Lines splits the response on newlines, keeping empty lines so fixed-offset
// parsing matches the device framing.
func (r Response) Lines() []string {
	return strings.Split(r.Text, "\n")
}

// Options configures a Reader.
type Options struct {
	IdleTimeout      time.Duration
	MaxContinuations int
	Logger           *zap.SugaredLogger
}

// PaginationLimitError is returned when a device keeps asking for more pages
// after MaxContinuations continuations. Partial holds everything read.
type PaginationLimitError struct {
	Command string
	Limit   int
	Partial string
}

func (e *PaginationLimitError) Error() string {
	return fmt.Sprintf("command %q still paginating after %d continuations", e.Command, e.Limit)
}

func (e *PaginationLimitError) Unwrap() error {
	return sharedErrors.ErrPaginationLimit
}

// Reader is the paginated command reader for one session.
type Reader struct {
	conn             Conn
	idleTimeout      time.Duration
	maxContinuations int
	logger           *zap.SugaredLogger

	mu    sync.Mutex
	dirty bool
}

// NewReader creates a reader bound to conn.
func NewReader(conn Conn, opts Options) *Reader {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = consts.DefaultIdleTimeout
	}
	if opts.MaxContinuations < 0 {
		opts.MaxContinuations = 0
	} else if opts.MaxContinuations == 0 {
		opts.MaxContinuations = consts.DefaultMaxContinuations
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Reader{
		conn:             conn,
		idleTimeout:      opts.IdleTimeout,
		maxContinuations: opts.MaxContinuations,
		logger:           opts.Logger,
	}
}

// Execute sends req.Command and returns the full response. Calls are
// serialized: the device interprets one command at a time and a new command
// is never written while an earlier response is still being read.
//
// A read round ends when no byte arrives for the idle window. The timed-out
// text is the answer; commands are never retried.
func (r *Reader) Execute(ctx context.Context, req Request) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	resp := Response{Command: req.Command}
	if !r.conn.Authenticated() {
		return resp, sharedErrors.ErrNotAuthenticated
	}

	idle := req.IdleTimeout
	if idle <= 0 {
		idle = r.idleTimeout
	}

	if err := r.settle(ctx); err != nil {
		return resp, err
	}

	if err := r.conn.Send([]byte(req.Command + "\n")); err != nil {
		r.dirty = true
		return resp, fmt.Errorf("send %q: %w", req.Command, err)
	}

	var acc []byte
	for {
		chunk, err := r.conn.ReceiveUntil(ctx, nil, idle)
		acc = append(acc, chunk...)
		if err != nil && !errors.Is(err, sharedErrors.ErrReadTimeout) {
			r.dirty = true
			resp.Text = normalize(acc)
			resp.Truncated = true
			return resp, fmt.Errorf("read %q: %w", req.Command, err)
		}

		if !endsWithMore(acc) {
			break
		}
		if resp.Continuations >= r.maxContinuations {
			r.dirty = true
			resp.Text = normalize(acc)
			_ = r.conn.Send([]byte(AbortKey))
			r.logger.Warnf("command=%q exceeded %d continuations, aborting pager", req.Command, r.maxContinuations)
			return resp, &PaginationLimitError{
				Command: req.Command,
				Limit:   r.maxContinuations,
				Partial: resp.Text,
			}
		}
		if err := r.conn.Send([]byte(ContinueKey)); err != nil {
			r.dirty = true
			resp.Text = normalize(acc)
			return resp, fmt.Errorf("continue %q: %w", req.Command, err)
		}
		resp.Continuations++
	}

	resp.Text = normalize(acc)
	r.logger.Debugf("command=%q bytes=%d pages=%d", req.Command, len(acc), resp.Continuations+1)
	return resp, nil
}

// settle drops output left behind by an interrupted command so it is not read
// as the start of the next response.
func (r *Reader) settle(ctx context.Context) error {
	if r.dirty {
		if _, err := r.conn.ReceiveUntil(ctx, nil, r.idleTimeout); err != nil && !errors.Is(err, sharedErrors.ErrReadTimeout) {
			return fmt.Errorf("drain stale output: %w", err)
		}
		r.dirty = false
	}
	if n := r.conn.Discard(); n > 0 {
		r.logger.Debugf("discarded %d stale bytes before next command", n)
	}
	return nil
}

func endsWithMore(b []byte) bool {
	return strings.HasSuffix(string(b), MorePrompt)
}

// normalize converts device line endings to "\n" and drops stray carriage
// returns. Pagination fragments are kept verbatim.
func normalize(b []byte) string {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "")
}
