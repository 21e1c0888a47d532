// Package notify publishes optional operator-facing events over MQTT.
// It is entirely best-effort: nothing in the request path waits on it,
// and with no broker configured it is a no-op.
package notify

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/config"
)

// Notifier publishes terminal-status and command-failure events. A
// Notifier with a nil underlying client behaves as a no-op, which is what
// New returns when cfg.Broker is empty.
type Notifier struct {
	client mqtt.Client
	qos    byte
	logger *zap.Logger
}

// New connects to the configured broker, or returns a no-op Notifier if
// cfg.Broker is empty.
func New(cfg *config.MQTTConfig, logger *zap.Logger) (*Notifier, error) {
	if cfg.Broker == "" {
		return &Notifier{logger: logger}, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}

	return &Notifier{client: client, qos: cfg.QoS, logger: logger}, nil
}

// TerminalStatus publishes the terminal's active/inactive transition to
// "zk/terminal/<serial>/status".
func (n *Notifier) TerminalStatus(serial, status string) {
	n.publish("zk/terminal/"+serial+"/status", status)
}

// CommandFailed publishes an abandoned command's final state to
// "zk/terminal/<serial>/command-failed".
func (n *Notifier) CommandFailed(serial, commandID, reason string) {
	n.publish("zk/terminal/"+serial+"/command-failed", commandID+":"+reason)
}

func (n *Notifier) publish(topic, payload string) {
	if n == nil || n.client == nil {
		return
	}
	token := n.client.Publish(topic, n.qos, false, []byte(payload))
	token.Wait()
	if err := token.Error(); err != nil {
		n.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Close disconnects the underlying client, if connected.
func (n *Notifier) Close() {
	if n == nil || n.client == nil {
		return
	}
	n.client.Disconnect(250)
}
