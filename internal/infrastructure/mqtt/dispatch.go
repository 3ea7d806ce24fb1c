package mqtt

// handleMessage fans an inbound message out to every handler in turn.
// It runs in the transport's delivery goroutine.
func (c *Client) handleMessage(topic string, payload []byte) {
	if !c.running.Load() {
		return
	}
	c.messagesReceived.Add(1)
	c.log.Debug("MQTT message received",
		"topic", topic,
		"bytes", len(payload),
	)

	for i, handler := range c.handlers {
		c.invoke(i, handler, topic, payload)
	}
}

// invoke calls one handler inside a failure boundary: a returned error is
// logged at warn, a panic is recovered and logged at error.
func (c *Client) invoke(index int, handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.handlerFailures.Add(1)
			c.log.Error("MQTT handler panic recovered",
				"handler", index,
				"topic", topic,
				"panic", r,
			)
		}
	}()

	if err := handler(topic, payload); err != nil {
		c.handlerFailures.Add(1)
		c.log.Warn("MQTT handler returned error",
			"handler", index,
			"topic", topic,
			"error", err,
		)
	}
}
