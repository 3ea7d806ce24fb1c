package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// errRefused is what the fake transport returns for a failed connect.
var errRefused = errors.New("connection refused")

type publishedMessage struct {
	topic    string
	payload  []byte
	retained bool
}

// fakeTransport is an in-memory Transport. Event handlers are invoked
// synchronously from the calling goroutine, never while mu is held.
type fakeTransport struct {
	mu       sync.Mutex
	handlers EventHandlers

	// failConnects and failReconnects are the number of leading calls that fail.
	failConnects   int
	failReconnects int

	// beforeConnect, if set, runs at the start of every Connect call.
	beforeConnect func(attempt int)
	// beforeReconnect, if set, runs at the start of every Reconnect call.
	beforeReconnect func()

	// lateErr makes a successful connect or reconnect still report an
	// error, as when the session is established after the token timed out.
	lateErr error

	connected        bool
	connectCalls     int
	reconnectCalls   int
	disconnectCalls  int
	reconnectsActive int
	maxReconnects    int
	subscribes       []string
	subscribeErrs    map[string]error
	published        []publishedMessage
	publishErr       error
	lastHost         string
	lastPort         int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subscribeErrs: make(map[string]error)}
}

func (f *fakeTransport) SetEventHandlers(handlers EventHandlers) {
	f.mu.Lock()
	f.handlers = handlers
	f.mu.Unlock()
}

func (f *fakeTransport) Connect(host string, port int) error {
	f.mu.Lock()
	f.connectCalls++
	attempt := f.connectCalls
	hook := f.beforeConnect
	f.lastHost, f.lastPort = host, port
	f.mu.Unlock()

	if hook != nil {
		hook(attempt)
	}

	f.mu.Lock()
	if attempt <= f.failConnects {
		f.mu.Unlock()
		return errRefused
	}
	f.connected = true
	onConnect := f.handlers.OnConnect
	lateErr := f.lateErr
	f.mu.Unlock()

	if onConnect != nil {
		onConnect()
	}
	return lateErr
}

func (f *fakeTransport) Reconnect() error {
	f.mu.Lock()
	hook := f.beforeReconnect
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	f.reconnectsActive++
	if f.reconnectsActive > f.maxReconnects {
		f.maxReconnects = f.reconnectsActive
	}
	f.mu.Unlock()

	// Widen the window in which overlapping loops would be observed.
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.reconnectsActive--
	f.reconnectCalls++
	if f.connected {
		f.mu.Unlock()
		return nil
	}
	if f.reconnectCalls <= f.failReconnects {
		f.mu.Unlock()
		return errRefused
	}
	f.connected = true
	onConnect := f.handlers.OnConnect
	lateErr := f.lateErr
	f.mu.Unlock()

	if onConnect != nil {
		onConnect()
	}
	return lateErr
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.disconnectCalls++
	f.connected = false
	f.mu.Unlock()
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Subscribe(filter string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, filter)
	return f.subscribeErrs[filter]
}

func (f *fakeTransport) Publish(topic string, payload []byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMessage{topic: topic, payload: payload, retained: retained})
	return nil
}

// drop simulates the broker going away.
func (f *fakeTransport) drop(err error) {
	f.mu.Lock()
	f.connected = false
	onDisconnect := f.handlers.OnDisconnect
	f.mu.Unlock()

	if onDisconnect != nil {
		onDisconnect(err)
	}
}

// deliver simulates an inbound message.
func (f *fakeTransport) deliver(topic string, payload []byte) {
	f.mu.Lock()
	onMessage := f.handlers.OnMessage
	f.mu.Unlock()

	if onMessage != nil {
		onMessage(topic, payload)
	}
}

func (f *fakeTransport) setFailReconnects(n int) {
	f.mu.Lock()
	f.failReconnects = n
	f.mu.Unlock()
}

func (f *fakeTransport) counts() (connects, reconnects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls, f.reconnectCalls, f.disconnectCalls
}

func (f *fakeTransport) subscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.subscribes))
	copy(out, f.subscribes)
	return out
}

func (f *fakeTransport) publishes() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedMessage, len(f.published))
	copy(out, f.published)
	return out
}

// =============================================================================
// Test logger
// =============================================================================

type logEntry struct {
	level string
	msg   string
	args  []any
}

// testLogger records every entry for later assertions.
type testLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *testLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
	l.mu.Unlock()
}

func (l *testLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *testLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *testLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *testLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

// count returns the number of entries at level with message msg.
func (l *testLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

// attempts returns the "attempt" attribute of every matching entry.
func (l *testLogger) attempts(level, msg string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.level != level || e.msg != msg {
			continue
		}
		for i := 0; i+1 < len(e.args); i += 2 {
			if e.args[i] == "attempt" {
				out = append(out, fmt.Sprint(e.args[i+1]))
			}
		}
	}
	return out
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, what)
}
