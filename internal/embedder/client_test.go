package embedder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	helperEnv     = "RECALL_EMBEDDER_HELPER"
	helperModeEnv = "RECALL_EMBEDDER_HELPER_MODE"
	helperDims    = 4
)

// TestHelperProcess is not a real test. The client tests re-execute the
// test binary with helperEnv set, and this function then acts as a fake
// embedding worker.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	runFakeWorker(os.Getenv(helperModeEnv))
	os.Exit(0)
}

func runFakeWorker(mode string) {
	fmt.Fprintln(os.Stderr, "loading model")
	if mode == "never-ready" {
		time.Sleep(time.Minute)
		return
	}
	if mode == "exit-early" {
		os.Exit(2)
	}
	fmt.Fprintln(os.Stderr, "EMBEDDER_READY")

	reader := bufio.NewReader(os.Stdin)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		var req struct {
			Texts []string `json:"texts"`
			Ping  bool     `json:"ping"`
		}
		if err := json.Unmarshal(line, &req); err != nil {
			writeLine(map[string]any{"error": "bad request"})
			continue
		}
		if req.Ping {
			writeLine(map[string]any{"pong": true})
			continue
		}
		if mode == "noisy" {
			// One stderr line longer than the reader's line limit.
			fmt.Fprintln(os.Stderr, strings.Repeat("x", 2*1024*1024))
		}

		switch {
		case contains(req.Texts, "crash"):
			os.Exit(3)
		case contains(req.Texts, "hang"):
			time.Sleep(time.Minute)
		case contains(req.Texts, "garbage"):
			fmt.Fprintln(os.Stdout, "this is not json")
		case contains(req.Texts, "fail"):
			writeLine(map[string]any{"error": "model exploded"})
		default:
			vectors := make([][]float32, len(req.Texts))
			for i, text := range req.Texts {
				vectors[i] = []float32{float32(len(text)), 1, 0, float32(i)}
			}
			writeLine(map[string]any{"embeddings": vectors, "dimensions": helperDims})
		}
	}
}

func writeLine(v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintln(os.Stdout, string(data))
}

func contains(texts []string, want string) bool {
	for _, t := range texts {
		if t == want {
			return true
		}
	}
	return false
}

func helperLocator() (string, []string, error) {
	return os.Args[0], []string{"-test.run=^TestHelperProcess$"}, nil
}

func newTestClient(t *testing.T, mode string, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		Locate:         helperLocator,
		ReadyMarker:    "EMBEDDER_READY",
		StartupTimeout: 10 * time.Second,
		RequestTimeout: 5 * time.Second,
		ShutdownGrace:  2 * time.Second,
		Env:            []string{helperEnv + "=1", helperModeEnv + "=" + mode},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c := NewClient(cfg, zerolog.Nop())
	t.Cleanup(func() { _ = c.Shutdown() })
	return c
}

func TestClient_EmbedStartsLazily(t *testing.T) {
	c := newTestClient(t, "")
	assert.Equal(t, StateNotStarted, c.State())

	vectors, err := c.Embed(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], helperDims)
	assert.Equal(t, float32(3), vectors[1][0])

	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, helperDims, c.Dimensions())
	assert.Equal(t, 1, c.Spawns())
}

func TestClient_EmbedEmptyDoesNotSpawn(t *testing.T) {
	c := newTestClient(t, "")
	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, StateNotStarted, c.State())
	assert.Equal(t, 0, c.Spawns())
}

func TestClient_HealthCheck(t *testing.T) {
	c := newTestClient(t, "")
	ctx := context.Background()

	assert.False(t, c.HealthCheck(ctx), "not started")

	_, err := c.Embed(ctx, []string{"warm up"})
	require.NoError(t, err)
	assert.True(t, c.HealthCheck(ctx))
}

func TestClient_RespawnAfterCrash(t *testing.T) {
	c := newTestClient(t, "")
	ctx := context.Background()

	_, err := c.Embed(ctx, []string{"first"})
	require.NoError(t, err)

	c.mu.Lock()
	firstPid := c.proc.pid()
	require.NoError(t, c.proc.cmd.Process.Kill())
	exited := c.proc.exited
	c.mu.Unlock()
	<-exited

	assert.False(t, c.HealthCheck(ctx))
	assert.Equal(t, StateNotStarted, c.State())

	vectors, err := c.Embed(ctx, []string{"after crash"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Len(t, vectors[0], helperDims)
	assert.Equal(t, 2, c.Spawns())

	c.mu.Lock()
	assert.NotEqual(t, firstPid, c.proc.pid())
	c.mu.Unlock()
}

func TestClient_CrashDuringRequest(t *testing.T) {
	c := newTestClient(t, "")
	ctx := context.Background()

	_, err := c.Embed(ctx, []string{"crash"})
	require.Error(t, err)
	assert.True(t, IsProcessError(err))
	assert.True(t, errors.Is(err, ErrProcessExited) || errors.Is(err, ErrBrokenPipe))
	assert.Equal(t, StateNotStarted, c.State())

	vectors, err := c.Embed(ctx, []string{"recovered"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
}

func TestClient_RequestTimeoutKillsProcess(t *testing.T) {
	c := newTestClient(t, "", func(cfg *Config) { cfg.RequestTimeout = 300 * time.Millisecond })
	ctx := context.Background()

	_, err := c.Embed(ctx, []string{"hang"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestTimeout)
	assert.Equal(t, StateNotStarted, c.State())

	_, err = c.Embed(ctx, []string{"next"})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Spawns())
}

func TestClient_CancelledContextKeepsWorker(t *testing.T) {
	c := newTestClient(t, "")

	_, err := c.Embed(context.Background(), []string{"warm"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vectors, err := c.Embed(ctx, []string{"still answered"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, 1, c.Spawns())
}

func TestClient_CancelledContextDoesNotAbortStartup(t *testing.T) {
	c := newTestClient(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Embed(ctx, []string{"cold"})
	require.NoError(t, err)
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, 1, c.Spawns())
}

func TestClient_ShortDeadlineWaitsForRequestTimeout(t *testing.T) {
	c := newTestClient(t, "", func(cfg *Config) { cfg.RequestTimeout = 300 * time.Millisecond })
	_, err := c.Embed(context.Background(), []string{"warm"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Embed(ctx, []string{"hang"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestTimeout, "only the request timeout ends a call")
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_OversizedStderrLineIsDrained(t *testing.T) {
	c := newTestClient(t, "noisy")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		vectors, err := c.Embed(ctx, []string{"text"})
		require.NoError(t, err, "request %d", i)
		assert.Len(t, vectors, 1)
	}
	assert.Equal(t, 1, c.Spawns())
}

func TestClient_StartupTimeout(t *testing.T) {
	c := newTestClient(t, "never-ready", func(cfg *Config) { cfg.StartupTimeout = 300 * time.Millisecond })

	_, err := c.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStartupTimeout)
	assert.Equal(t, StateNotStarted, c.State())
}

func TestClient_ExitBeforeReady(t *testing.T) {
	c := newTestClient(t, "exit-early")

	_, err := c.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessExited)
}

func TestClient_MalformedResponseKeepsProcess(t *testing.T) {
	c := newTestClient(t, "")
	ctx := context.Background()

	_, err := c.Embed(ctx, []string{"garbage"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, StateReady, c.State())

	_, err = c.Embed(ctx, []string{"fine"})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Spawns())
}

func TestClient_WorkerReportedError(t *testing.T) {
	c := newTestClient(t, "")

	_, err := c.Embed(context.Background(), []string{"fail"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkerReported)
	assert.Contains(t, err.Error(), "model exploded")
	assert.Equal(t, StateReady, c.State())
}

func TestClient_LocatorFailure(t *testing.T) {
	c := newTestClient(t, "", func(cfg *Config) {
		cfg.Locate = func() (string, []string, error) { return "", nil, errors.New("no such worker") }
	})

	_, err := c.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWorkerNotFound)
	assert.Equal(t, StateNotStarted, c.State())
}

func TestClient_ShutdownIdempotent(t *testing.T) {
	c := newTestClient(t, "")
	require.NoError(t, c.Shutdown(), "shutdown before start")

	_, err := c.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)

	require.NoError(t, c.Shutdown())
	require.NoError(t, c.Shutdown())
	assert.Equal(t, StateNotStarted, c.State())
}

func TestCommandLocator(t *testing.T) {
	_, _, err := CommandLocator("definitely-not-a-real-binary-xyz", nil)()
	assert.ErrorIs(t, err, ErrWorkerNotFound)
	assert.False(t, Available(CommandLocator("definitely-not-a-real-binary-xyz", nil)))
	assert.False(t, Available(nil))
	assert.True(t, Available(helperLocator))
}
