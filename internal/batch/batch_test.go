package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSink captures processed entries for testing.
type mockSink struct {
	mu            sync.Mutex
	shouldProcess func(string) bool
	written       map[string][]byte
	errors        map[string]error
}

func newMockSink() *mockSink {
	return &mockSink{
		shouldProcess: func(string) bool { return true },
		written:       make(map[string][]byte),
		errors:        make(map[string]error),
	}
}

func (s *mockSink) ShouldProcess(path string) bool {
	return s.shouldProcess(path)
}

func (s *mockSink) Writer(path string) (Committer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errors[path]; ok {
		return nil, err
	}
	return &mockCommitter{sink: s, path: path}, nil
}

type mockCommitter struct {
	sink *mockSink
	path string
	data []byte
}

func (c *mockCommitter) Write(p []byte) (int, error) {
	c.data = append(c.data, p...)
	return len(p), nil
}

func (c *mockCommitter) Commit() error {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	c.sink.written[c.path] = c.data
	return nil
}

func (c *mockCommitter) Discard() error {
	return nil
}

func constTask(path, content string) Task {
	return Task{
		Path: path,
		Size: uint64(len(content)),
		Load: func() ([]byte, error) { return []byte(content), nil },
	}
}

func failTask(path string, err error) Task {
	return Task{Path: path, Load: func() ([]byte, error) { return nil, err }}
}

func TestProcess(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{-1, 0, 1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()

			tasks := make([]Task, 0, 20)
			for i := range 20 {
				tasks = append(tasks, constTask(fmt.Sprintf("dir/%02d.js", i), fmt.Sprintf("content %d", i)))
			}
			sink := newMockSink()

			stats, err := NewProcessor(WithWorkers(workers)).Process(context.Background(), tasks, sink)
			require.NoError(t, err)
			assert.Equal(t, 20, stats.Written)
			assert.Zero(t, stats.Skipped)
			assert.Empty(t, stats.Failures)
			assert.Len(t, sink.written, 20)
			assert.Equal(t, []byte("content 7"), sink.written["dir/07.js"])
		})
	}
}

func TestProcess_Empty(t *testing.T) {
	t.Parallel()

	stats, err := NewProcessor().Process(context.Background(), nil, newMockSink())
	require.NoError(t, err)
	assert.Equal(t, ProcessStats{}, stats)
}

func TestProcess_LoadFailuresAreCollected(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tasks := []Task{
		constTask("a", "aaa"),
		failTask("b", boom),
		constTask("c", "c"),
		failTask("d", boom),
	}
	sink := newMockSink()

	stats, err := NewProcessor(WithWorkers(4)).Process(context.Background(), tasks, sink)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, uint64(4), stats.TotalBytes)
	require.Len(t, stats.Failures, 2)
	assert.Equal(t, 1, stats.Failures[0].Index)
	assert.Equal(t, "b", stats.Failures[0].Path)
	assert.ErrorIs(t, stats.Failures[0].Err, boom)
	assert.Equal(t, 3, stats.Failures[1].Index)
}

func TestProcess_SinkErrorIsFatal(t *testing.T) {
	t.Parallel()

	diskFull := errors.New("disk full")
	sink := newMockSink()
	sink.errors["b"] = diskFull

	_, err := NewProcessor(WithWorkers(-1)).Process(context.Background(),
		[]Task{constTask("a", "a"), constTask("b", "b"), constTask("c", "c")}, sink)
	assert.ErrorIs(t, err, diskFull)
	assert.Contains(t, err.Error(), "batch: b:")
}

func TestProcess_Skipped(t *testing.T) {
	t.Parallel()

	sink := newMockSink()
	sink.shouldProcess = func(path string) bool { return path != "skip" }
	var loads atomic.Int32
	tasks := []Task{
		constTask("keep", "k"),
		{Path: "skip", Load: func() ([]byte, error) {
			loads.Add(1)
			return nil, nil
		}},
	}

	stats, err := NewProcessor().Process(context.Background(), tasks, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Written)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, loads.Load())
}

func TestProcess_ReadAheadBudget(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int64
	tasks := make([]Task, 0, 16)
	for i := range 16 {
		tasks = append(tasks, Task{
			Path: fmt.Sprintf("%d", i),
			Size: 100,
			Load: func() ([]byte, error) {
				n := inFlight.Add(100)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				defer inFlight.Add(-100)
				return make([]byte, 100), nil
			},
		})
	}
	// One oversized task must still run alone.
	tasks = append(tasks, Task{Path: "big", Size: 1 << 20, Load: func() ([]byte, error) { return nil, nil }})

	stats, err := NewProcessor(WithWorkers(8), WithReadAheadBytes(250)).
		Process(context.Background(), tasks, newMockSink())
	require.NoError(t, err)
	assert.Equal(t, 17, stats.Written)
	assert.LessOrEqual(t, peak.Load(), int64(200))
}

func TestProcess_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProcessor().Process(ctx, []Task{constTask("a", "a")}, newMockSink())
	assert.ErrorIs(t, err, context.Canceled)
}
