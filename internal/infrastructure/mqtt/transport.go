package mqtt

// Transport is the protocol client driven by Client.
//
// Client owns its Transport exclusively: nothing else may call Connect,
// Reconnect or Disconnect on it. The production implementation is
// PahoTransport; tests substitute an in-memory fake.
//
// Quality of service is a property of the Transport, not of individual calls.
type Transport interface {
	// SetEventHandlers registers the callbacks the transport invokes from its
	// own delivery goroutines. It is called once, before Connect.
	SetEventHandlers(handlers EventHandlers)

	// Connect opens the connection and starts inbound event delivery.
	// OnConnect fires once the session is established.
	Connect(host string, port int) error

	// Reconnect re-opens a dropped connection to the address given to Connect.
	// It must be cheap and safe to call repeatedly.
	Reconnect() error

	// Disconnect closes the connection. It does not fire OnDisconnect.
	Disconnect()

	// IsConnected reports whether the session is currently established.
	IsConnected() bool

	// Subscribe registers a topic filter on the current session.
	// Matching messages are delivered through OnMessage.
	Subscribe(filter string) error

	// Publish hands a payload to the broker without waiting for acknowledgement.
	Publish(topic string, payload []byte, retained bool) error
}

// EventHandlers are the callbacks a Transport invokes.
//
// The transport must not deliver messages on a connection before the
// subscriptions issued from OnConnect have been applied.
type EventHandlers struct {
	OnConnect    func()
	OnDisconnect func(err error)
	OnMessage    func(topic string, payload []byte)
}
