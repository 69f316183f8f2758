package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.add("DEBUG", msg, keysAndValues)
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.add("INFO", msg, keysAndValues)
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.add("ERROR", msg, keysAndValues)
}

func (l *testLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, kv))
}

func (l *testLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("select", func(e Event) (any, error) {
		return "selected " + e.Args[0], nil
	})

	result, err := d.Dispatch(Event{Command: "select", Args: []string{"2"}})
	require.NoError(t, err)
	assert.Equal(t, "selected 2", result)
}

func TestDispatcher_Payload(t *testing.T) {
	d, _ := newTestDispatcher(t)

	type move struct{ commands string }
	d.Register("move", func(e Event) (any, error) {
		m, ok := e.Payload.(move)
		if !ok {
			return nil, errors.New("bad payload")
		}
		return len(m.commands), nil
	})

	result, err := d.Dispatch(Event{Command: "move", Payload: move{commands: "ffrl"}})
	require.NoError(t, err)
	assert.Equal(t, 4, result)
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: "warp"})
	assert.EqualError(t, err, "unknown command: warp")
}

func TestDispatcher_NilLogger(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	d.Register("list", func(Event) (any, error) { return nil, errors.New("x") }, Logged())
	_, err = d.Dispatch(Event{Command: "list"})
	assert.Error(t, err)
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(10)

	d.Register(":FLEET:EVENT:", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	for i := 0; i < 10; i++ {
		result, err := d.Dispatch(Event{Command: ":FLEET:EVENT:"})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}

	wg.Wait()
	assert.Equal(t, int32(10), processed.Load())
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	release := make(chan struct{})
	started := make(chan struct{}, 10)
	d.Register(":FLEET:SNAPSHOT:", func(e Event) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}, Buffered(2))
	t.Cleanup(func() {
		close(release)
		d.Close()
	})

	_, err := d.Dispatch(Event{Command: ":FLEET:SNAPSHOT:"}) // being processed
	require.NoError(t, err)
	<-started
	_, err = d.Dispatch(Event{Command: ":FLEET:SNAPSHOT:"}) // queued
	require.NoError(t, err)
	_, err = d.Dispatch(Event{Command: ":FLEET:SNAPSHOT:"}) // queued
	require.NoError(t, err)

	_, err = d.Dispatch(Event{Command: ":FLEET:SNAPSHOT:"})
	assert.EqualError(t, err, "queue full: :FLEET:SNAPSHOT:")
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	release := make(chan struct{})
	started := make(chan struct{}, 10)
	var processed atomic.Int32
	d.Register(":FLEET:EVENT:", func(e Event) (any, error) {
		started <- struct{}{}
		<-release
		processed.Add(1)
		return nil, nil
	}, Buffered(1), Blocking())

	d.Dispatch(Event{Command: ":FLEET:EVENT:"}) // being processed
	<-started
	d.Dispatch(Event{Command: ":FLEET:EVENT:"}) // queued

	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: ":FLEET:EVENT:"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("dispatch should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-done
	d.Close()
	assert.Equal(t, int32(3), processed.Load())
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register(":FLEET:EVENT:", func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil, nil
	}, Buffered(50))

	for i := 0; i < 20; i++ {
		_, err := d.Dispatch(Event{Command: ":FLEET:EVENT:"})
		require.NoError(t, err)
	}

	d.Close()
	assert.Equal(t, int32(20), processed.Load(), "close waits for queued events")

	_, err := d.Dispatch(Event{Command: ":FLEET:EVENT:"})
	assert.ErrorIs(t, err, ErrClosed)

	d.Close()
}

func TestDispatcher_BufferedErrorIsLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":FLEET:EVENT:", func(e Event) (any, error) {
		return nil, errors.New("journal unavailable")
	}, Buffered(1))

	_, err := d.Dispatch(Event{Command: ":FLEET:EVENT:"})
	require.NoError(t, err)
	d.Close()

	msgs := logger.snapshot()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1], "journal unavailable")
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("move", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: "move", Args: []string{"f", "f"}})

	msgs := logger.snapshot()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "handling event")
	assert.Contains(t, msgs[1], "event complete")
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("delete", func(e Event) (any, error) {
		return nil, errors.New("rover not found")
	}, Logged())

	_, err := d.Dispatch(Event{Command: "delete"})
	require.Error(t, err)

	msgs := logger.snapshot()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "ERROR: event failed")
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	assert.False(t, d.HasHandler("list"))
	d.Register("list", func(e Event) (any, error) { return nil, nil })
	assert.True(t, d.HasHandler("list"))
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register(":FLEET:EVENT:", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(Event{Command: ":FLEET:EVENT:"})
	require.NoError(t, err)
	assert.Equal(t, "queued", result)

	wg.Wait()
	assert.Equal(t, int32(1), processed.Load())
	assert.GreaterOrEqual(t, len(logger.snapshot()), 2)
}
