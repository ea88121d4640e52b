package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"brickforge/internal/host"
	"brickforge/internal/logging"
)

// Options configures a host launch.
type Options struct {
	// Binary is the host executable.
	Binary string
	// Script is the bridge script the host runs.
	Script string
	// LaunchArgs are placed between the binary and --python. Headless
	// workers pass ["-b", "--factory-startup"]; the UI-mode render driver
	// passes none.
	LaunchArgs []string
	// ScriptArgs follow the "--" separator and reach the bridge script.
	ScriptArgs []string
	Logger     *slog.Logger
}

// Client is one live host connection. It satisfies the narrow interfaces the
// device, headless, importer, pipeline and render packages define.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *slog.Logger

	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]chan response
	closed  chan struct{}

	waitOnce sync.Once
	waitErr  error
}

// Launch starts the host process and returns a connected client.
func Launch(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Binary) == "" {
		return nil, errors.New("host binary required")
	}
	if strings.TrimSpace(opts.Script) == "" {
		return nil, errors.New("bridge script required")
	}

	args := append([]string{}, opts.LaunchArgs...)
	args = append(args, "--python", opts.Script, "--")
	args = append(args, opts.ScriptArgs...)

	cmd := exec.CommandContext(ctx, opts.Binary, args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start host: %w", err)
	}

	client := newClient(stdin, stdout, opts.Logger)
	client.cmd = cmd
	go client.forwardStderr(stderr)
	return client, nil
}

// newClient wires a client onto an existing transport. Split from Launch so
// tests can drive the protocol without a child process.
func newClient(stdin io.WriteCloser, stdout io.Reader, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := &Client{
		stdin:   stdin,
		logger:  logging.NewComponentLogger(logger, "host"),
		pending: make(map[int64]chan response),
		closed:  make(chan struct{}),
	}
	go client.readLoop(stdout)
	return client
}

func (c *Client) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		frame, ok := decodeFrame(line)
		if !ok {
			if text := strings.TrimRight(string(line), "\r\n"); text != "" {
				c.logger.Info(text)
			}
			continue
		}
		if frame.Event != "" {
			c.handleEvent(frame)
			continue
		}
		c.mu.Lock()
		ch := c.pending[frame.ID]
		delete(c.pending, frame.ID)
		c.mu.Unlock()
		if ch != nil {
			ch <- frame
		}
	}
	close(c.closed)
	c.mu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.mu.Unlock()
}

func (c *Client) handleEvent(frame response) {
	msg := strings.TrimSpace(frame.Msg)
	if msg == "" {
		return
	}
	switch strings.ToLower(frame.Level) {
	case "error":
		c.logger.Error(msg)
	case "warn", "warning":
		c.logger.Warn(msg)
	case "debug":
		c.logger.Debug(msg)
	default:
		c.logger.Info(msg)
	}
}

func (c *Client) forwardStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if text := strings.TrimSpace(scanner.Text()); text != "" {
			c.logger.Warn(text)
		}
	}
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	select {
	case <-c.closed:
		return host.ErrClosed
	default:
	}

	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode %s params: %w", method, err)
		}
		raw = encoded
	}

	id := c.nextID.Add(1)
	ch := make(chan response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	payload, err := json.Marshal(request{ID: id, Method: method, Params: raw})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	payload = append(payload, '\n')
	if _, err := c.stdin.Write(payload); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("write %s request: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case <-c.closed:
		// The read loop may have drained the pending map before this call
		// registered its channel; without this arm such a call would wait
		// until ctx cancellation. A reply that raced the shutdown still wins.
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		select {
		case frame, ok := <-ch:
			if ok {
				return decodeResult(method, frame, result)
			}
		default:
		}
		return host.ErrClosed
	case frame, ok := <-ch:
		if !ok {
			return host.ErrClosed
		}
		return decodeResult(method, frame, result)
	}
}

func decodeResult(method string, frame response, result any) error {
	if !frame.OK {
		return frame.Error.toError()
	}
	if result != nil && len(frame.Result) > 0 {
		if err := json.Unmarshal(frame.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// Close terminates the host process. Safe to call after Quit.
func (c *Client) Close() error {
	_ = c.stdin.Close()
	if c.cmd == nil {
		return nil
	}
	c.waitOnce.Do(func() {
		c.waitErr = c.cmd.Wait()
	})
	return c.waitErr
}

// Kill force-terminates the host without waiting for a clean quit.
func (c *Client) Kill() {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}
