package mqtt

import (
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/five82/crossbar/internal/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	maxReconnectInterval     = 2 * time.Minute
	commandTimeout           = 45 * time.Second

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// buildClientOptions creates paho options from the crossbar MQTT config.
func buildClientOptions(cfg config.MQTTConfig, clientID string, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	// Subscriptions are re-issued from the connect handler.
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxReconnectInterval)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	// Route changes take seconds; handlers must not stall the client.
	opts.SetOrderMatters(false)

	opts.SetWill(topics.Availability(), payloadOffline, byte(cfg.QoS), true)
	return opts
}

// brokerURL adds the tcp scheme when the configured broker has none.
func brokerURL(broker string) string {
	broker = strings.TrimSpace(broker)
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// clientIDFor returns the configured client ID or a random one.
func clientIDFor(cfg config.MQTTConfig) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	return "crossbar-" + uuid.NewString()[:8]
}
