// Package mqtt provides the resilient broker client at the heart of Gray Logic Relay.
//
// This package manages:
//   - Initial connection with indefinite, rate-limited-logging retries
//   - Reconnection after every lost connection
//   - Restoring the full subscription set on every connection
//   - Fan-out of inbound messages to handlers with per-handler failure isolation
//   - Fire-and-forget publishing of raw and JSON payloads
//   - Online/offline status with Last Will and Testament (LWT)
//
// # Architecture
//
// Client drives a Transport, the protocol client that actually talks to the
// broker. PahoTransport adapts paho.mqtt.golang with its own reconnect logic
// switched off, so Client alone decides when to connect.
//
//	handlers ← Client ↔ Transport (paho) ↔ MQTT Broker
//
// States move Disconnected → Connecting → Connected → Disconnected → … and
// end in Shutdown, which is final.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.NewFromConfig(cfg.MQTT, logger,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Shutdown()
//
//	client.PublishJSON("relay/commands/light", map[string]bool{"on": true}, false)
package mqtt
