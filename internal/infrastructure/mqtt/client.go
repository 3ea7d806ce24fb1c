package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-relay/internal/infrastructure/config"
)

// Defaults applied by New for zero-valued Options fields.
const (
	DefaultHost                 = "localhost"
	DefaultPort                 = 1883
	DefaultReconnectDelay       = time.Second
	DefaultReconnectMsgInterval = 5
)

// State is the connection state of a Client.
type State int32

const (
	// StateDisconnected is the initial state and the state after a lost connection.
	StateDisconnected State = iota
	// StateConnecting means a connect or reconnect attempt is in progress.
	StateConnecting
	// StateConnected means the broker session is established.
	StateConnected
	// StateShutdown is terminal: the client never reconnects again.
	StateShutdown
)

// String returns the state name used in logs and the API.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run synchronously in the transport's delivery goroutine, one
// after another, so a slow handler delays the next message.
// A returned error is logged and does not affect other handlers.
type MessageHandler func(topic string, payload []byte) error

// Logger is the logging surface Client needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Client. Only zero values are defaulted.
type Options struct {
	// ClientID identifies the session. Generated when empty.
	ClientID string

	// Host and Port locate the broker. Default localhost:1883.
	Host string
	Port int

	// Subscriptions are re-applied on every connection. Default {"#"}.
	Subscriptions []string

	// Handlers receive every inbound message.
	Handlers []MessageHandler

	// ReconnectDelay is the sleep between initial connect attempts.
	ReconnectDelay time.Duration

	// ReconnectMsgInterval is the number of failed attempts between warnings.
	ReconnectMsgInterval int

	// ReconnectPollInterval is the sleep between post-disconnect reconnect
	// attempts. Defaults to ReconnectDelay.
	ReconnectPollInterval time.Duration

	// StatusTopic, when set, receives retained online/offline status messages.
	StatusTopic string

	Logger Logger
}

// Stats is a snapshot of client counters.
type Stats struct {
	State            string `json:"state"`
	ConnectAttempts  uint64 `json:"connect_attempts"`
	Connections      uint64 `json:"connections"`
	Disconnections   uint64 `json:"disconnections"`
	MessagesReceived uint64 `json:"messages_received"`
	HandlerFailures  uint64 `json:"handler_failures"`
	Published        uint64 `json:"published"`
}

// Client is a resilient publish/subscribe client.
//
// It keeps one broker connection alive for its whole lifetime: it retries the
// initial connect indefinitely, reconnects after every disconnect, re-applies
// its subscriptions on every connection and hands inbound messages to each
// registered handler inside a failure boundary.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Transport events may arrive from any goroutine.
type Client struct {
	transport Transport
	opts      Options
	log       Logger

	subscriptions []string
	handlers      []MessageHandler

	running atomic.Bool
	state   atomic.Int32

	// mu guards lifecycle transitions and supervised goroutine start.
	mu           sync.Mutex
	started      bool
	closed       bool
	reconnecting bool
	runCtx       context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	connectAttempts  atomic.Uint64
	connections      atomic.Uint64
	disconnections   atomic.Uint64
	messagesReceived atomic.Uint64
	handlerFailures  atomic.Uint64
	published        atomic.Uint64
}

// New creates a Client around transport. It starts nothing: no goroutine is
// launched and no connection is attempted until Start.
//
// Returns an error wrapping ErrInvalidTopic when a subscription filter or the
// status topic is malformed.
func New(transport Transport, opts Options) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrConnectionFailed)
	}

	subs, err := normaliseSubscriptions(opts.Subscriptions)
	if err != nil {
		return nil, err
	}
	if opts.StatusTopic != "" {
		if err := ValidateTopicName(opts.StatusTopic); err != nil {
			return nil, fmt.Errorf("status topic: %w", err)
		}
	}

	if opts.ClientID == "" {
		opts.ClientID = uuid.NewString()
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Port <= 0 {
		opts.Port = DefaultPort
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.ReconnectMsgInterval <= 0 {
		opts.ReconnectMsgInterval = DefaultReconnectMsgInterval
	}
	if opts.ReconnectPollInterval <= 0 {
		opts.ReconnectPollInterval = opts.ReconnectDelay
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	handlers := make([]MessageHandler, 0, len(opts.Handlers))
	for _, h := range opts.Handlers {
		if h != nil {
			handlers = append(handlers, h)
		}
	}

	c := &Client{
		transport:     transport,
		opts:          opts,
		log:           opts.Logger,
		subscriptions: subs,
		handlers:      handlers,
	}
	c.opts.Subscriptions = subs
	c.opts.Handlers = handlers

	transport.SetEventHandlers(EventHandlers{
		OnConnect:    c.handleConnect,
		OnDisconnect: c.handleDisconnect,
		OnMessage:    c.handleMessage,
	})

	return c, nil
}

// NewFromConfig builds a Client backed by a PahoTransport from the mqtt
// section of the relay config.
func NewFromConfig(cfg config.MQTTConfig, logger Logger, handlers ...MessageHandler) (*Client, error) {
	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	return New(NewPahoTransport(cfg, clientID), Options{
		ClientID:              clientID,
		Host:                  cfg.Broker.Host,
		Port:                  cfg.Broker.Port,
		Subscriptions:         cfg.Subscriptions,
		Handlers:              handlers,
		ReconnectDelay:        cfg.ReconnectDelay(),
		ReconnectMsgInterval:  cfg.Reconnect.MsgInterval,
		ReconnectPollInterval: cfg.ReconnectPollInterval(),
		StatusTopic:           cfg.StatusTopic,
		Logger:                logger,
	})
}

// Start launches the initial-connect loop and returns immediately.
//
// Cancelling ctx has the same effect on the retry loops as Shutdown, but
// Shutdown must still be called to disconnect and release the transport.
//
// Returns ErrAlreadyStarted on a second call and ErrClientClosed after Shutdown.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	c.runCtx, c.cancel = context.WithCancel(ctx)
	c.running.Store(true)

	c.log.Info("MQTT client starting",
		"client_id", c.opts.ClientID,
		"host", c.opts.Host,
		"port", c.opts.Port,
		"subscriptions", c.subscriptions,
		"handlers", len(c.handlers),
		"reconnect_delay", c.opts.ReconnectDelay,
		"reconnect_msg_interval", c.opts.ReconnectMsgInterval,
		"reconnect_poll_interval", c.opts.ReconnectPollInterval,
	)

	c.wg.Add(1)
	go c.connectLoop()

	return nil
}

// isRunning reports whether the loops should keep going.
// runCtx is written before running is set, so it is safe to read here.
func (c *Client) isRunning() bool {
	return c.running.Load() && c.runCtx.Err() == nil
}

// connectLoop retries the initial connection until it succeeds or the
// client stops. Failures are logged on attempt 1 and every
// ReconnectMsgInterval-th attempt after that.
func (c *Client) connectLoop() {
	defer c.wg.Done()

	for attempt := 1; c.isRunning(); attempt++ {
		c.setState(StateConnecting)
		c.connectAttempts.Add(1)

		err := c.transport.Connect(c.opts.Host, c.opts.Port)
		// A connect whose token timed out may still have completed; the
		// transport is the authority on whether the session is up.
		if err == nil || c.transport.IsConnected() {
			if !c.isRunning() {
				// Shutdown raced the attempt; never enter Connected.
				c.transport.Disconnect()
				return
			}
			c.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected))
			c.log.Info("MQTT connected",
				"client_id", c.opts.ClientID,
				"host", c.opts.Host,
				"port", c.opts.Port,
				"attempts", attempt,
			)
			return
		}

		if attempt == 1 || attempt%c.opts.ReconnectMsgInterval == 0 {
			c.log.Warn("MQTT connection attempt failed, retrying",
				"attempt", attempt,
				"host", c.opts.Host,
				"port", c.opts.Port,
				"retry_in", c.opts.ReconnectDelay,
				"error", err,
			)
		}
		// Never clobber a Connected state set by a late OnConnect.
		c.state.CompareAndSwap(int32(StateConnecting), int32(StateDisconnected))

		if !c.sleep(c.opts.ReconnectDelay) {
			return
		}
	}
}

// handleConnect runs on every established connection, initial or restored.
func (c *Client) handleConnect() {
	if !c.isRunning() {
		return
	}

	c.setState(StateConnected)
	c.connections.Add(1)

	c.restoreSubscriptions()
	c.publishStatus(statusOnline, "")

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect runs when the transport loses the connection.
func (c *Client) handleDisconnect(err error) {
	if !c.isRunning() {
		return
	}

	c.setState(StateDisconnected)
	c.disconnections.Add(1)
	c.log.Info("MQTT disconnected, reconnecting",
		"client_id", c.opts.ClientID,
		"error", err,
	)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.reconnecting {
		return
	}
	c.reconnecting = true
	c.wg.Add(1)
	go c.reconnectLoop()
}

// reconnectLoop polls the transport's reconnect primitive until the
// connection is back or the client stops.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	for c.continueReconnecting() {
		c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting))
		err := c.transport.Reconnect()
		if !c.isRunning() {
			// Shutdown raced the attempt; drop whatever it established.
			c.transport.Disconnect()
			c.releaseReconnect()
			return
		}
		if err == nil && c.transport.IsConnected() {
			continue
		}
		if err != nil {
			c.log.Debug("MQTT reconnect attempt failed", "error", err)
		}
		c.state.CompareAndSwap(int32(StateConnecting), int32(StateDisconnected))
		if !c.sleep(c.opts.ReconnectPollInterval) {
			c.releaseReconnect()
			return
		}
	}
}

// releaseReconnect gives up reconnect loop ownership.
func (c *Client) releaseReconnect() {
	c.mu.Lock()
	c.reconnecting = false
	c.mu.Unlock()
}

// continueReconnecting decides under mu whether the reconnect loop keeps
// going, releasing loop ownership when it stops. A disconnect that arrives
// after this returns false starts a fresh loop.
func (c *Client) continueReconnecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning() && !c.transport.IsConnected() {
		return true
	}
	c.reconnecting = false
	return false
}

// sleep waits for d, returning false if the client stopped meanwhile.
func (c *Client) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.runCtx.Done():
		return false
	case <-timer.C:
		return c.isRunning()
	}
}

// setState moves to s unless the client is already shut down.
func (c *Client) setState(s State) {
	for {
		current := c.state.Load()
		if State(current) == StateShutdown {
			return
		}
		if c.state.CompareAndSwap(current, int32(s)) {
			return
		}
	}
}

// Shutdown stops the client for good.
//
// It stops the retry loops, publishes an offline status when connected,
// disconnects the transport and waits until every goroutine the client
// started has exited. Safe to call before Start, while never connected, and
// more than once; every call returns only after the loops are gone.
func (c *Client) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		wasRunning := c.running.Swap(false)
		if c.cancel != nil {
			c.cancel()
		}
		c.mu.Unlock()

		if wasRunning && c.transport.IsConnected() {
			c.publishStatus(statusOffline, reasonGracefulShutdown)
		}
		c.state.Store(int32(StateShutdown))

		if wasRunning {
			c.transport.Disconnect()
			c.log.Info("MQTT client shut down", "client_id", c.opts.ClientID)
		}
	})

	c.wg.Wait()

	// A connection that completed while the loops were draining must not
	// outlive Shutdown.
	if c.transport.IsConnected() {
		c.transport.Disconnect()
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// IsConnected reports whether the client is connected and the transport
// agrees.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected && c.transport.IsConnected()
}

// HealthCheck verifies the broker connection is alive.
//
// Returns:
//   - error: nil if healthy, ErrClientClosed after Shutdown, ErrNotConnected otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if c.State() == StateShutdown {
		return ErrClientClosed
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		State:            c.State().String(),
		ConnectAttempts:  c.connectAttempts.Load(),
		Connections:      c.connections.Load(),
		Disconnections:   c.disconnections.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		HandlerFailures:  c.handlerFailures.Load(),
		Published:        c.published.Load(),
	}
}

// ClientID returns the session identifier.
func (c *Client) ClientID() string {
	return c.opts.ClientID
}

// SetOnConnect sets a callback invoked after every established connection,
// once subscriptions have been restored.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
