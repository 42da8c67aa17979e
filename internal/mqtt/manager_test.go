// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package mqtt

import (
	"context"
	"errors"
	"testing"

	"github.com/trafikinfo/trafikinfo/internal/models"
)

type fakeSettings map[string]string

func (f fakeSettings) GetSetting(_ context.Context, key string) (string, error) {
	if v, ok := f[key]; ok {
		return v, nil
	}
	return models.DefaultSettings[key], nil
}

func TestConfigureDisabled(t *testing.T) {
	m := NewManager(fakeSettings{models.SettingMQTTEnabled: "false"})
	if err := m.Configure(context.Background()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	status := m.Status()
	if status.Connected {
		t.Error("Status().Connected = true while disabled")
	}
	if status.Broker != "" {
		t.Errorf("Status().Broker = %q while disabled", status.Broker)
	}
}

func TestConfigureEnabledWithoutHost(t *testing.T) {
	m := NewManager(fakeSettings{models.SettingMQTTEnabled: "true"})
	if err := m.Configure(context.Background()); err == nil {
		t.Error("Configure() accepted enabled mqtt without a host")
	}
}

func TestPublishNotConnected(t *testing.T) {
	m := NewManager(fakeSettings{})
	err := m.Publish(&models.Incident{ExternalID: "S1"}, "")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestLoadConfig(t *testing.T) {
	m := NewManager(fakeSettings{
		models.SettingMQTTEnabled:  "true",
		models.SettingMQTTHost:     "broker.local",
		models.SettingMQTTPort:     "8883",
		models.SettingMQTTUsername: "u",
		models.SettingMQTTPassword: "p",
	})

	cfg, err := m.loadConfig(context.Background())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if !cfg.enabled || cfg.host != "broker.local" || cfg.port != 8883 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.addr() != "tcp://broker.local:8883" {
		t.Errorf("addr = %q", cfg.addr())
	}
	// Topic defaults apply when the settings rows are absent.
	if cfg.topic != "trafikinfo/traffic" || cfg.rcTopic != "trafikinfo/road_conditions" {
		t.Errorf("topics = %q %q", cfg.topic, cfg.rcTopic)
	}
}

func TestLoadConfigBadPortFallsBack(t *testing.T) {
	m := NewManager(fakeSettings{models.SettingMQTTPort: "not-a-port"})
	cfg, err := m.loadConfig(context.Background())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.port != 1883 {
		t.Errorf("port = %d, want default 1883", cfg.port)
	}
}
