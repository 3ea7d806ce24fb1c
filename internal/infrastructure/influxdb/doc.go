// Package influxdb writes Gray Logic Relay metrics to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library and records:
//   - one point per inbound MQTT message (mqtt_messages)
//   - broker connect and disconnect events (mqtt_connection)
//   - periodic snapshots of the resilient client counters (mqtt_client)
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	handler := client.MessageHandler(mqttClient.ClientID())
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval); errors
// arrive through SetOnError. Connection and health check errors are
// returned directly.
package influxdb
