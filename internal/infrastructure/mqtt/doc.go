// Package mqtt provides MQTT client connectivity for Moonbridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Moonbridge uses MQTT as its outward-facing bus: entity state, Home
// Assistant discovery configs, health reports and command acks flow
// through the broker, decoupling consumers from the printer protocol.
//
//	Moonraker ↔ Moonbridge ↔ MQTT Broker ↔ Home Assistant / consumers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{Base: cfg.MQTT.BaseTopic}
//
//	// Subscribe to printer commands
//	err = client.Subscribe(topics.PrinterCommand(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish entity state
//	client.Publish(topics.EntityState("extruder_temperature"), []byte(`{"value":215.3}`), 1, true)
package mqtt
