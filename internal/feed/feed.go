// Package feed subscribes to an MQTT broker and stores incoming sensor
// readings. Hive sensors publish one JSON document per observation.
package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/apiaryworks/hivemind/internal/config"
	"github.com/apiaryworks/hivemind/internal/readings"
)

// Sensors publish at most a few messages a minute; anything past this
// is a misbehaving device flooding the broker.
const (
	rateLimit    = 600
	rateInterval = time.Minute
)

// Subscriber consumes sensor readings from the broker and persists
// them.
type Subscriber struct {
	cfg     config.FeedConfig
	store   *readings.Store
	logger  *slog.Logger
	limiter *readingLimiter
	cm      *autopaho.ConnectionManager
}

// New creates a Subscriber but does not connect. Call [Subscriber.Run]
// to begin consuming.
func New(cfg config.FeedConfig, store *readings.Store, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		limiter: newReadingLimiter(rateLimit, rateInterval, logger),
	}
}

// Run connects to the broker, subscribes to the reading topic, and
// blocks until ctx is cancelled. autopaho handles reconnects and
// re-subscribes through OnConnectionUp.
func (s *Subscriber) Run(ctx context.Context) error {
	brokerURL, err := url.Parse(s.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: s.cfg.Username,
		ConnectPassword: []byte(s.cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			s.logger.Info("mqtt connected to broker", "broker", s.cfg.Broker, "topic", s.cfg.Topic)
			if _, err := cm.Subscribe(ctx, &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: s.cfg.Topic, QoS: 1},
				},
			}); err != nil {
				s.logger.Error("mqtt subscribe failed", "topic", s.cfg.Topic, "error", err)
			}
		},
		OnConnectError: func(err error) {
			s.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			// Unique per process so two feed instances never steal each
			// other's broker session.
			ClientID: "hivemind-feed-" + uuid.NewString()[:8],
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					s.handleMessage(ctx, pr.Packet.Topic, pr.Packet.Payload)
					return true, nil
				},
			},
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	s.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		// autopaho keeps retrying in the background.
		s.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	go s.limiter.run(ctx)

	<-ctx.Done()
	return nil
}

// Stop disconnects from the broker.
func (s *Subscriber) Stop(ctx context.Context) error {
	if s.cm == nil {
		return nil
	}
	return s.cm.Disconnect(ctx)
}

func (s *Subscriber) handleMessage(ctx context.Context, topic string, payload []byte) {
	if !s.limiter.allow() {
		return
	}

	reading, err := parseReading(payload)
	if err != nil {
		s.logger.Warn("discarding malformed reading",
			"topic", topic,
			"payload_size", len(payload),
			"error", err,
		)
		return
	}

	if err := s.store.Insert(ctx, reading); err != nil {
		s.logger.Error("failed to store reading",
			"sensor_id", reading.SensorID,
			"error", err,
		)
		return
	}

	s.logger.Debug("reading stored",
		"sensor_id", reading.SensorID,
		"type", string(reading.Type),
		"value", reading.Value,
	)
}

// wireReading is the JSON document sensors publish. Timestamp is
// optional; readings without one are stamped on arrival.
type wireReading struct {
	SensorID   string  `json:"sensor_id"`
	Timestamp  string  `json:"insert_timestamp"`
	Type       string  `json:"type"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	UploadFreq string  `json:"upload_freq"`
}

func parseReading(payload []byte) (readings.SensorReading, error) {
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		return readings.SensorReading{}, fmt.Errorf("decode payload: %w", err)
	}
	if w.SensorID == "" {
		return readings.SensorReading{}, fmt.Errorf("missing sensor_id")
	}
	if w.Type == "" {
		return readings.SensorReading{}, fmt.Errorf("missing type")
	}

	ts := time.Now().UTC()
	if w.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, w.Timestamp)
		if err != nil {
			return readings.SensorReading{}, fmt.Errorf("parse insert_timestamp %q: %w", w.Timestamp, err)
		}
		ts = parsed
	}

	return readings.SensorReading{
		SensorID:   w.SensorID,
		Timestamp:  ts,
		Type:       readings.Measurement(w.Type),
		Value:      w.Value,
		Unit:       w.Unit,
		UploadFreq: w.UploadFreq,
	}, nil
}
