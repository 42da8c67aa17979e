// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
)

// ErrNotConnected is returned by Publish when the broker is disabled or the
// connection is down. Publishes are not retried; the row keeps
// published_to_broker=false.
var ErrNotConnected = errors.New("mqtt broker not connected")

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Settings is the runtime settings surface the manager reads.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// brokerConfig is one settings snapshot. Two equal snapshots mean Configure
// has nothing to do.
type brokerConfig struct {
	enabled  bool
	host     string
	port     int
	username string
	password string
	topic    string
	rcTopic  string
}

func (c brokerConfig) addr() string {
	return fmt.Sprintf("tcp://%s:%d", c.host, c.port)
}

// Manager owns the broker connection and reconfigures it from settings.
type Manager struct {
	settings Settings

	mu     sync.Mutex
	client paho.Client
	cfg    brokerConfig
}

// NewManager creates a manager. No connection is made until Configure.
func NewManager(settings Settings) *Manager {
	return &Manager{settings: settings}
}

// Configure re-reads broker settings and reconnects when they changed.
// Called at startup and after every settings write that touches mqtt_*.
func (m *Manager) Configure(ctx context.Context) error {
	cfg, err := m.loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to read mqtt settings: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg == m.cfg && (m.client != nil) == cfg.enabled {
		return nil
	}

	if m.client != nil {
		m.client.Disconnect(250)
		m.client = nil
	}
	m.cfg = cfg

	if !cfg.enabled {
		logging.Info().Str("component", "mqtt").Msg("MQTT is disabled in settings")
		return nil
	}
	if cfg.host == "" {
		return errors.New("mqtt is enabled but mqtt_host is empty")
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.addr()).
		SetClientID("trafikinfo-server").
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(paho.Client) {
			logging.Info().Str("component", "mqtt").Str("broker", cfg.addr()).Msg("Connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logging.Warn().Str("component", "mqtt").Err(err).Msg("MQTT connection lost")
		})
	if cfg.username != "" {
		opts.SetUsername(cfg.username)
		opts.SetPassword(cfg.password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect to %s timed out", cfg.addr())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s failed: %w", cfg.addr(), err)
	}

	m.client = client
	return nil
}

// Publish serializes the entity once and publishes it on the topic for its
// kind. baseURL rewrites icon/snapshot references in the payload.
func (m *Manager) Publish(entity models.Entity, baseURL string) error {
	m.mu.Lock()
	client := m.client
	cfg := m.cfg
	m.mu.Unlock()

	topicKind := "incident"
	topic := cfg.topic
	if entity.Kind() == models.KindRoadCondition {
		topicKind = "road_condition"
		topic = cfg.rcTopic
	}

	if client == nil || !client.IsConnected() {
		metrics.RecordMQTTPublish(topicKind, ErrNotConnected)
		return ErrNotConnected
	}

	payload, err := BuildPayload(entity, baseURL)
	if err != nil {
		metrics.RecordMQTTPublish(topicKind, err)
		return err
	}

	token := client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		err = fmt.Errorf("mqtt publish to %s timed out", topic)
		metrics.RecordMQTTPublish(topicKind, err)
		return err
	}
	if err := token.Error(); err != nil {
		metrics.RecordMQTTPublish(topicKind, err)
		return fmt.Errorf("mqtt publish to %s failed: %w", topic, err)
	}

	metrics.RecordMQTTPublish(topicKind, nil)
	logging.Debug().
		Str("component", "mqtt").
		Str("topic", topic).
		Str("key", entity.Key()).
		Msg("Published entity to broker")
	return nil
}

// Status reports the connection state for /api/status.
func (m *Manager) Status() models.BrokerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := models.BrokerStatus{}
	if m.cfg.enabled {
		status.Broker = m.cfg.addr()
	}
	if m.client != nil && m.client.IsConnected() {
		status.Connected = true
	}
	return status
}

// Close disconnects from the broker.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.Disconnect(250)
		m.client = nil
	}
}

func (m *Manager) loadConfig(ctx context.Context) (brokerConfig, error) {
	var cfg brokerConfig
	reads := []struct {
		key  string
		dest *string
	}{
		{models.SettingMQTTHost, &cfg.host},
		{models.SettingMQTTUsername, &cfg.username},
		{models.SettingMQTTPassword, &cfg.password},
		{models.SettingMQTTTopic, &cfg.topic},
		{models.SettingMQTTRCTopic, &cfg.rcTopic},
	}
	for _, r := range reads {
		value, err := m.settings.GetSetting(ctx, r.key)
		if err != nil {
			return brokerConfig{}, err
		}
		*r.dest = value
	}

	enabled, err := m.settings.GetSetting(ctx, models.SettingMQTTEnabled)
	if err != nil {
		return brokerConfig{}, err
	}
	cfg.enabled = enabled == "true"

	portStr, err := m.settings.GetSetting(ctx, models.SettingMQTTPort)
	if err != nil {
		return brokerConfig{}, err
	}
	cfg.port, err = strconv.Atoi(portStr)
	if err != nil || cfg.port <= 0 {
		cfg.port = 1883
	}

	if cfg.topic == "" {
		cfg.topic = models.DefaultSettings[models.SettingMQTTTopic]
	}
	if cfg.rcTopic == "" {
		cfg.rcTopic = models.DefaultSettings[models.SettingMQTTRCTopic]
	}
	return cfg, nil
}
