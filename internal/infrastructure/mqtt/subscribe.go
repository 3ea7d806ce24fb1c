package mqtt

// restoreSubscriptions submits every filter in the subscription set to the
// transport. It runs once per established connection: brokers do not keep
// subscriptions across a clean session, so the first connect and every
// reconnect are treated alike.
//
// A failed filter is logged and skipped; the remaining filters are still
// submitted.
func (c *Client) restoreSubscriptions() {
	restored := 0
	for _, filter := range c.subscriptions {
		if err := c.transport.Subscribe(filter); err != nil {
			c.log.Warn("MQTT subscribe failed",
				"filter", filter,
				"error", err,
			)
			continue
		}
		restored++
	}

	c.log.Info("MQTT subscriptions restored",
		"client_id", c.opts.ClientID,
		"restored", restored,
		"total", len(c.subscriptions),
	)
}

// Subscriptions returns a copy of the subscription set.
func (c *Client) Subscriptions() []string {
	out := make([]string, len(c.subscriptions))
	copy(out, c.subscriptions)
	return out
}
