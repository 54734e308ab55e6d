package embedder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the lifecycle state of the worker process.
type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	default:
		return "not_started"
	}
}

// Config configures a Client.
type Config struct {
	Locate         LocatorFunc
	ReadyMarker    string
	StartupTimeout time.Duration
	RequestTimeout time.Duration
	ShutdownGrace  time.Duration // wait for a clean exit before killing
	Env            []string      // extra KEY=VALUE entries for the child
}

func (c *Config) setDefaults() {
	if c.Locate == nil {
		c.Locate = CommandLocator("", nil)
	}
	if c.ReadyMarker == "" {
		c.ReadyMarker = "EMBEDDER_READY"
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 120 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}
}

// Client supervises one embedding worker process. A single mutex
// serializes every operation; only one request is ever in flight on the
// pipe pair.
type Client struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	state  State
	proc   *process
	dims   int
	spawns int
}

// NewClient returns a client in the not-started state. No process is
// spawned until the first Embed.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	cfg.setDefaults()
	return &Client{
		cfg:    cfg,
		logger: logger.With().Str("component", "embedder").Logger(),
		state:  StateNotStarted,
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dimensions returns the vector size last reported by the worker, or 0.
func (c *Client) Dimensions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dims
}

// Spawns counts processes started by this client.
func (c *Client) Spawns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spawns
}

// Embed returns one vector per text, starting the worker if needed. Only
// StartupTimeout and RequestTimeout end the call early; ctx does not.
func (c *Client) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureReadyLocked(); err != nil {
		return nil, err
	}

	var resp response
	if err := c.sendLocked("embed", embedRequest{Texts: texts}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &ProcessError{Op: "embed", Err: fmt.Errorf("%w: %s", ErrWorkerReported, resp.Error)}
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, &ProcessError{Op: "embed", Err: fmt.Errorf("%w: %d vectors for %d texts",
			ErrMalformedResponse, len(resp.Embeddings), len(texts))}
	}

	c.dims = resp.Dimensions
	if c.dims == 0 {
		c.dims = len(resp.Embeddings[0])
	}
	return resp.Embeddings, nil
}

// HealthCheck pings the worker. It never starts a process and returns
// false on any failure.
func (c *Client) HealthCheck(_ context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady || c.proc == nil {
		return false
	}
	if !c.proc.alive() {
		c.resetLocked()
		return false
	}

	var resp response
	if err := c.sendLocked("ping", pingRequest{Ping: true}, &resp); err != nil {
		c.logger.Debug().Err(err).Msg("health check failed")
		return false
	}
	return resp.Pong
}

// Shutdown closes the worker's stdin, waits briefly for it to exit and
// kills it otherwise. Safe to call repeatedly.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.proc
	c.proc = nil
	c.state = StateNotStarted
	if p == nil {
		return nil
	}

	_ = p.stdin.Close()
	select {
	case <-p.exited:
	case <-time.After(c.cfg.ShutdownGrace):
		c.logger.Warn().Int("pid", p.pid()).Msg("embedding worker ignored EOF; killing")
	}
	p.kill()
	c.logger.Info().Int("pid", p.pid()).Msg("embedding worker stopped")
	return nil
}

func (c *Client) ensureReadyLocked() error {
	if c.state == StateReady && c.proc != nil {
		if c.proc.alive() {
			return nil
		}
		c.logger.Warn().Int("pid", c.proc.pid()).Msg("embedding worker died; respawning")
		c.resetLocked()
	}
	return c.startLocked()
}

// startLocked spawns the worker and waits up to StartupTimeout for its
// ready marker.
func (c *Client) startLocked() error {
	c.state = StateStarting

	command, args, err := c.cfg.Locate()
	if err != nil {
		c.state = StateNotStarted
		if !errors.Is(err, ErrWorkerNotFound) {
			err = fmt.Errorf("%w: %v", ErrWorkerNotFound, err)
		}
		return &ProcessError{Op: "start", Err: err}
	}

	p, err := spawn(command, args, c.cfg, c.logger)
	if err != nil {
		c.state = StateNotStarted
		return &ProcessError{Op: "start", Err: err}
	}
	c.logger.Info().Int("pid", p.pid()).Str("command", command).Msg("embedding worker spawned")

	timer := time.NewTimer(c.cfg.StartupTimeout)
	defer timer.Stop()

	select {
	case <-p.ready:
		c.proc = p
		c.state = StateReady
		c.spawns++
		c.logger.Info().Int("pid", p.pid()).Msg("embedding worker ready")
		return nil
	case <-p.exited:
		p.kill()
		c.state = StateNotStarted
		return &ProcessError{Op: "start", Err: fmt.Errorf("%w before ready", ErrProcessExited)}
	case <-timer.C:
		p.kill()
		c.state = StateNotStarted
		return &ProcessError{Op: "start", Err: fmt.Errorf("%w after %s", ErrStartupTimeout, c.cfg.StartupTimeout)}
	}
}

// sendLocked writes one request line and reads one response line, bounded
// by RequestTimeout only. Fatal transport failures kill the process so the
// next call respawns it.
func (c *Client) sendLocked(op string, req, resp any) error {
	p := c.proc

	data, err := json.Marshal(req)
	if err != nil {
		return &ProcessError{Op: op, Err: err}
	}
	data = append(data, '\n')

	// stdin is an unbuffered pipe, so each Write is flushed to the worker.
	if _, err := p.stdin.Write(data); err != nil {
		c.resetLocked()
		return &ProcessError{Op: op, Err: fmt.Errorf("%w: %v", ErrBrokenPipe, err)}
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case line, ok := <-p.lines:
		if !ok {
			c.resetLocked()
			return &ProcessError{Op: op, Err: ErrProcessExited}
		}
		if err := json.Unmarshal(line, resp); err != nil {
			return &ProcessError{Op: op, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
		}
		return nil
	case <-timer.C:
		c.resetLocked()
		return &ProcessError{Op: op, Err: fmt.Errorf("%w after %s", ErrRequestTimeout, c.cfg.RequestTimeout)}
	}
}

func (c *Client) resetLocked() {
	if c.proc != nil {
		c.proc.kill()
		c.proc = nil
	}
	c.state = StateNotStarted
}

// process is one spawned worker and its stream readers.
type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	lines  chan []byte   // stdout lines, closed on EOF
	ready  chan struct{} // closed when the ready marker is seen
	exited chan struct{} // closed when the process has been reaped
	done   chan struct{} // closed by kill; releases blocked readers

	killOnce sync.Once
}

func spawn(command string, args []string, cfg Config, logger zerolog.Logger) (*process, error) {
	cmd := exec.Command(command, args...)
	cmd.Env = append(os.Environ(), cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	// Own the read ends so cmd.Wait cannot close them before they drain.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, err
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{stdoutR, stdoutW, stderrR, stderrW} {
			_ = f.Close()
		}
		return nil, err
	}
	_ = stdoutW.Close()
	_ = stderrW.Close()

	p := &process{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan []byte),
		ready:  make(chan struct{}),
		exited: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go p.readStdout(stdoutR)
	go p.readStderr(stderrR, cfg.ReadyMarker, logger.With().Int("pid", p.pid()).Logger())
	go func() {
		_ = cmd.Wait()
		close(p.exited)
	}()

	return p, nil
}

func (p *process) readStdout(r io.ReadCloser) {
	defer func() { _ = r.Close() }()
	defer close(p.lines)

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			select {
			case p.lines <- line:
			case <-p.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// readStderr watches the diagnostic stream for the ready marker and logs
// everything else.
func (p *process) readStderr(r io.ReadCloser, marker string, logger zerolog.Logger) {
	defer func() { _ = r.Close() }()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	seen := false
	for scanner.Scan() {
		line := scanner.Text()
		if !seen && strings.Contains(line, marker) {
			seen = true
			close(p.ready)
			continue
		}
		logger.Debug().Str("stderr", line).Msg("embedding worker")
	}
	if err := scanner.Err(); err != nil {
		logger.Warn().Err(err).Msg("embedding worker stderr unreadable; discarding the rest")
	}
	// Keep the pipe drained so the worker never blocks writing to it.
	_, _ = io.Copy(io.Discard, r)
}

func (p *process) alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// kill terminates the process and waits briefly for it to be reaped.
func (p *process) kill() {
	p.killOnce.Do(func() {
		close(p.done)
		_ = p.cmd.Process.Kill()
		_ = p.stdin.Close()
		select {
		case <-p.exited:
		case <-time.After(2 * time.Second):
		}
	})
}
