package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/five82/crossbar/internal/config"
	"github.com/five82/crossbar/internal/state"
)

// Controller is the slice of the coordinator the bridge drives.
type Controller interface {
	Snapshot() state.Snapshot
	Refresh(ctx context.Context) error
	SetOutputInput(ctx context.Context, output, input int) error
}

// Bridge mirrors matrix snapshots to MQTT and turns command messages into
// coordinator calls. It implements reconcile.Sink.
type Bridge struct {
	client pahomqtt.Client
	ctl    Controller
	topics Topics
	qos    byte

	// pending holds at most one snapshot; a newer one replaces it.
	pending chan state.Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Connect dials the broker, announces the bridge online and starts
// publishing. The caller registers the returned Bridge as a sink.
func Connect(cfg config.MQTTConfig, ctl Controller) (*Bridge, error) {
	topics := Topics{Prefix: cfg.TopicPrefix}
	clientID := clientIDFor(cfg)
	opts := buildClientOptions(cfg, clientID, topics)

	b := newBridge(ctl, topics, byte(cfg.QoS))
	opts.SetOnConnectHandler(b.handleConnect)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	})
	b.client = pahomqtt.NewClient(opts)

	token := b.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		b.cancel()
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		b.cancel()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	log.Info().Str("broker", brokerURL(cfg.Broker)).Str("client_id", clientID).Msg("mqtt connected")

	b.start()
	return b, nil
}

func newBridge(ctl Controller, topics Topics, qos byte) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		ctl:     ctl,
		topics:  topics,
		qos:     qos,
		pending: make(chan state.Snapshot, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (b *Bridge) start() {
	go b.run()
}

// SnapshotChanged queues snap for publishing without blocking the caller.
func (b *Bridge) SnapshotChanged(snap state.Snapshot) {
	for {
		select {
		case b.pending <- snap:
			return
		default:
		}
		select {
		case <-b.pending:
		default:
		}
	}
}

// Close announces the bridge offline, stops the publisher and disconnects.
func (b *Bridge) Close() error {
	var err error
	b.once.Do(func() {
		if b.client.IsConnected() {
			err = b.publish(b.topics.Availability(), []byte(payloadOffline), true)
		}
		b.cancel()
		<-b.done
		b.client.Disconnect(defaultDisconnectQuiesce)
	})
	return err
}

func (b *Bridge) run() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			return
		case snap := <-b.pending:
			if err := b.publishSnapshot(snap); err != nil {
				log.Debug().Err(err).Msg("mqtt state publish skipped")
			}
		}
	}
}

// handleConnect runs on every (re)connect: the session is clean, so
// subscriptions and retained state are re-established each time.
func (b *Bridge) handleConnect(c pahomqtt.Client) {
	if err := b.publish(b.topics.Availability(), []byte(payloadOnline), true); err != nil {
		log.Warn().Err(err).Msg("mqtt availability publish failed")
	}

	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if err := b.handleMessage(msg.Topic(), msg.Payload()); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("mqtt command failed")
		}
	}
	for _, topic := range []string{b.topics.AllOutputSets(), b.topics.Refresh()} {
		token := c.Subscribe(topic, b.qos, handler)
		if !token.WaitTimeout(defaultPublishTimeout) {
			log.Warn().Str("topic", topic).Msg("mqtt subscribe timed out")
			continue
		}
		if err := token.Error(); err != nil {
			log.Warn().Err(fmt.Errorf("%w: %w", ErrSubscribeFailed, err)).Str("topic", topic).Msg("mqtt subscribe failed")
		}
	}

	b.SnapshotChanged(b.ctl.Snapshot())
}

// handleMessage executes one command message.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if topic == b.topics.Refresh() {
		return b.ctl.Refresh(ctx)
	}

	output, ok := b.topics.ParseOutputSet(topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidCommand, topic)
	}
	input, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return fmt.Errorf("%w: payload %q is not an input number", ErrInvalidCommand, payload)
	}
	log.Info().Int("output", output).Int("input", input).Msg("mqtt route request")
	return b.ctl.SetOutputInput(ctx, output, input)
}

// publishSnapshot writes the state document and, when routes are known, one
// retained topic per output.
func (b *Bridge) publishSnapshot(snap state.Snapshot) error {
	if !b.client.IsConnected() {
		return ErrNotConnected
	}
	doc, err := json.Marshal(snap.Document())
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := b.publish(b.topics.State(), doc, true); err != nil {
		return err
	}
	if !snap.HasStatus() {
		return nil
	}
	for i, input := range snap.Status.Routes {
		payload := []byte(strconv.Itoa(input))
		if err := b.publish(b.topics.OutputInput(i+1), payload, true); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) error {
	token := b.client.Publish(topic, b.qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}
