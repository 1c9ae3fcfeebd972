package tracking

import (
	"context"
	"field-visit-service/internal/ports"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// MQTTPositionSource subscribes to device reports published on
// <prefix>/visits/<visitID>/position.
type MQTTPositionSource struct {
	client mqtt.Client
	prefix string
	qos    byte
	log    *zap.Logger
}

func NewMQTTPositionSource(opts MQTTOptions, log *zap.Logger) (*MQTTPositionSource, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("mqtt position source: broker is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetCleanSession(true)
	co.SetConnectTimeout(10 * time.Second)
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(co)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", opts.Broker, token.Error())
	}

	return &MQTTPositionSource{
		client: client,
		prefix: strings.TrimSuffix(opts.TopicPrefix, "/"),
		qos:    opts.QoS,
		log:    log,
	}, nil
}

// Topic returns the position topic for a visit.
func (s *MQTTPositionSource) Topic(visitID string) string {
	if s.prefix == "" {
		return "visits/" + visitID + "/position"
	}
	return s.prefix + "/visits/" + visitID + "/position"
}

func (s *MQTTPositionSource) Subscribe(ctx context.Context, visitID string) (ports.PositionSubscription, error) {
	topic := s.Topic(visitID)

	sub := newSubscription(func() error {
		token := s.client.Unsubscribe(topic)
		token.Wait()
		if err := token.Error(); err != nil {
			return fmt.Errorf("unsubscribe %s: %w", topic, err)
		}
		return nil
	})

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		sample, err := decodePosition(msg.Payload())
		if err != nil {
			sub.deliverError(err)
			return
		}
		if !sub.deliverSample(sample) {
			s.log.Debug("position sample dropped", zap.String("visit_id", visitID))
		}
	}

	token := s.client.Subscribe(topic, s.qos, handler)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	s.log.Debug("subscribed to positions", zap.String("topic", topic))
	return sub, nil
}

func (s *MQTTPositionSource) Close() {
	s.client.Disconnect(250)
}
