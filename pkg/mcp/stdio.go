package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
)

// stderrTailLimit caps how much child stderr is retained for error messages.
const stderrTailLimit = 8 * 1024

// ProcessOptions customizes how the child tool-service process starts.
type ProcessOptions struct {
	Args []string
	Env  map[string]string
	Dir  string
}

// ProcessTransport speaks the protocol to a child process over stdin/stdout
// pipes, one JSON frame per message.
type ProcessTransport struct {
	cmd     *exec.Cmd
	pending *pendingTracker
	cancel  context.CancelFunc

	writeMu sync.Mutex
	stdin   io.WriteCloser
	enc     *json.Encoder

	stderrMu sync.Mutex
	stderr   []byte

	failOnce sync.Once
	failErr  error
}

// NewProcessTransport launches the tool-service binary and wires its pipes.
// The returned transport owns the process; Close kills it.
func NewProcessTransport(ctx context.Context, command string, opts ProcessOptions) (*ProcessTransport, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("mcp: empty command")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(procCtx, command, opts.Args...) //nolint:gosec // command/args come from operator configuration
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	cmd.Env = append(os.Environ(), flattenEnv(opts.Env)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mcp: stdout pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mcp: stdin pipe: %w", err)
	}

	t := &ProcessTransport{
		cmd:     cmd,
		pending: newPendingTracker(),
		cancel:  cancel,
		stdin:   stdin,
	}
	cmd.Stderr = stderrTail{t}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("mcp: start tool service: %w", err)
	}

	t.enc = json.NewEncoder(stdin)
	t.enc.SetEscapeHTML(false)

	go t.readLoop(stdout)
	go t.waitLoop()
	return t, nil
}

// Call sends the request and blocks until the matching response arrives or
// ctx ends.
func (t *ProcessTransport) Call(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req.JSONRPC = jsonRPCVersion

	ch, err := t.pending.add(req.ID)
	if err != nil {
		return nil, err
	}
	if err := t.send(req); err != nil {
		t.pending.cancel(req.ID)
		return nil, err
	}

	select {
	case res := <-ch:
		return res.resp, res.err
	case <-ctx.Done():
		t.pending.cancel(req.ID)
		return nil, ctx.Err()
	}
}

// Close tears down the child process and wakes every pending call.
func (t *ProcessTransport) Close() error {
	t.fail(ErrTransportClosed)

	t.writeMu.Lock()
	if t.stdin != nil {
		_ = t.stdin.Close()
		t.stdin = nil
	}
	t.writeMu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		// Best-effort kill; the transport is already marked closed.
		_ = t.cmd.Process.Kill()
	}
	return nil
}

func (t *ProcessTransport) send(req *Request) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.stdin == nil {
		return ErrTransportClosed
	}
	if err := t.enc.Encode(req); err != nil {
		return fmt.Errorf("mcp: encode request: %w", err)
	}
	return nil
}

func (t *ProcessTransport) readLoop(stdout io.Reader) {
	dec := json.NewDecoder(bufio.NewReader(stdout))
	dec.UseNumber()
	for {
		var resp Response
		if err := dec.Decode(&resp); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				t.fail(ErrTransportClosed)
			} else {
				t.fail(fmt.Errorf("mcp: decode frame: %w", err))
			}
			return
		}
		if resp.ID == "" {
			// Notification frame; nothing is waiting on it.
			continue
		}
		t.pending.deliver(resp.ID, callResult{resp: &resp})
	}
}

func (t *ProcessTransport) waitLoop() {
	err := t.cmd.Wait()
	if err != nil {
		t.fail(fmt.Errorf("mcp: tool service exited: %w%s", err, t.stderrSuffix()))
		return
	}
	t.fail(ErrTransportClosed)
}

func (t *ProcessTransport) fail(err error) {
	t.failOnce.Do(func() {
		if err == nil {
			err = ErrTransportClosed
		}
		t.failErr = err
		t.pending.failAll(err)
	})
}

func (t *ProcessTransport) stderrSuffix() string {
	t.stderrMu.Lock()
	defer t.stderrMu.Unlock()
	tail := strings.TrimSpace(string(t.stderr))
	if tail == "" {
		return ""
	}
	return " - " + tail
}

// stderrTail appends child stderr into a bounded buffer.
type stderrTail struct {
	t *ProcessTransport
}

func (w stderrTail) Write(p []byte) (int, error) {
	w.t.stderrMu.Lock()
	defer w.t.stderrMu.Unlock()
	w.t.stderr = append(w.t.stderr, p...)
	if over := len(w.t.stderr) - stderrTailLimit; over > 0 {
		w.t.stderr = w.t.stderr[over:]
	}
	return len(p), nil
}

func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
