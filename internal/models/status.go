// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package models

// SystemStatus is the payload of GET /api/status.
//
// SetupRequired is true while no Trafikverket API key is configured; the
// worker manager idles in that state and the UI shows the setup wizard.
type SystemStatus struct {
	Trafikverket StreamStatus `json:"trafikverket"`
	MQTT         BrokerStatus `json:"mqtt"`

	Version       string `json:"version"`
	SetupRequired bool   `json:"setup_required"`

	ActiveCounties []int `json:"active_counties,omitempty"`
	SSEClients     int   `json:"sse_clients"`
}

// StreamStatus describes the upstream stream consumer state.
type StreamStatus struct {
	Connected bool   `json:"connected"`
	LastError string `json:"last_error,omitempty"`
}

// BrokerStatus describes the MQTT broker connection state.
type BrokerStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}
