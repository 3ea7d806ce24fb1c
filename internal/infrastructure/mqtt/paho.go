package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-relay/internal/infrastructure/config"
)

// PahoTransport adapts paho.mqtt.golang to the Transport interface.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Event handlers are invoked from paho's goroutines.
type PahoTransport struct {
	cfg      config.MQTTConfig
	clientID string
	qos      byte

	mu       sync.Mutex
	client   pahomqtt.Client
	address  string
	handlers EventHandlers

	// newClient builds the underlying paho client; swapped out in tests.
	newClient func(opts *pahomqtt.ClientOptions) pahomqtt.Client
}

// NewPahoTransport creates a transport for the given config and client
// identity. No connection is made until Connect.
func NewPahoTransport(cfg config.MQTTConfig, clientID string) *PahoTransport {
	qos := cfg.QoS
	if qos < 0 || qos > maxQoS {
		qos = 1
	}
	return &PahoTransport{
		cfg:       cfg,
		clientID:  clientID,
		qos:       byte(qos),
		newClient: pahomqtt.NewClient,
	}
}

// SetEventHandlers registers the connect, disconnect and message callbacks.
func (t *PahoTransport) SetEventHandlers(handlers EventHandlers) {
	t.mu.Lock()
	t.handlers = handlers
	t.mu.Unlock()
}

// events returns a snapshot of the registered handlers.
func (t *PahoTransport) events() EventHandlers {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handlers
}

// Connect builds the paho client for host:port (once per address) and
// performs a single connection attempt bounded by defaultConnectTimeout.
func (t *PahoTransport) Connect(host string, port int) error {
	address := fmt.Sprintf("%s:%d", host, port)

	t.mu.Lock()
	if t.client == nil || t.address != address {
		opts := buildClientOptions(t.cfg, t.clientID, host, port)
		configureLWT(opts, t.cfg.StatusTopic, t.clientID, t.qos)

		opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
			if h := t.events().OnConnect; h != nil {
				h()
			}
		})
		opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			if h := t.events().OnDisconnect; h != nil {
				h(err)
			}
		})
		opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
			if h := t.events().OnMessage; h != nil {
				h(msg.Topic(), msg.Payload())
			}
		})

		t.client = t.newClient(opts)
		t.address = address
	}
	client := t.client
	t.mu.Unlock()

	return waitToken(client.Connect(), defaultConnectTimeout, ErrConnectionFailed)
}

// Reconnect performs one connection attempt against the last address.
func (t *PahoTransport) Reconnect() error {
	client := t.current()
	if client == nil {
		return ErrNotConnected
	}
	if client.IsConnected() {
		return nil
	}
	return waitToken(client.Connect(), defaultConnectTimeout, ErrConnectionFailed)
}

// Disconnect closes the connection, allowing in-flight work to drain.
func (t *PahoTransport) Disconnect() {
	if client := t.current(); client != nil {
		client.Disconnect(defaultDisconnectQuiesce)
	}
}

// IsConnected reports paho's view of the connection.
func (t *PahoTransport) IsConnected() bool {
	client := t.current()
	return client != nil && client.IsConnected()
}

// Subscribe registers filter without a per-route callback, so matching
// messages reach the default publish handler and from there OnMessage.
func (t *PahoTransport) Subscribe(filter string) error {
	client := t.current()
	if client == nil {
		return ErrNotConnected
	}
	return waitToken(client.Subscribe(filter, t.qos, nil), defaultSubscribeTimeout, ErrSubscribeFailed)
}

// Publish queues the payload with paho and returns at once. Only an error
// paho has already settled on (not connected, for instance) is reported.
func (t *PahoTransport) Publish(topic string, payload []byte, retained bool) error {
	client := t.current()
	if client == nil {
		return ErrNotConnected
	}

	token := client.Publish(topic, t.qos, retained, payload)
	select {
	case <-token.Done():
		return token.Error()
	default:
		return nil
	}
}

func (t *PahoTransport) current() pahomqtt.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

// waitToken waits for a paho token and wraps failures in sentinel.
func waitToken(token pahomqtt.Token, timeout time.Duration, sentinel error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %w after %v", sentinel, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
