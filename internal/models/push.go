// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package models

import (
	"time"
)

// PushSubscription is one browser push endpoint with its user-scoped filters.
//
// Endpoint is unique; P256dh and Auth are the client keys from the
// subscription object (URL-safe base64). An empty Counties slice means
// "all counties". MinSeverity applies to incidents only.
type PushSubscription struct {
	ID       int64  `json:"id"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`

	Counties           []int `json:"counties"`
	MinSeverity        int   `json:"min_severity"`
	TopicRealtid       bool  `json:"topic_realtid"`
	TopicRoadCondition bool  `json:"topic_road_condition"`

	// SoundEnabled is a display preference carried through to the push
	// payload; the service worker decides what to do with it.
	SoundEnabled bool `json:"sound_enabled"`

	CreatedAt time.Time `json:"created_at"`
}

// Matches reports whether the subscription wants the given entity change.
// The rules, in order: the topic flag for the entity kind must be enabled;
// when counties are configured the entity county must be among them; and for
// incidents the severity must reach the subscription's minimum.
func (s *PushSubscription) Matches(e Entity) bool {
	switch e.Kind() {
	case KindIncident:
		if !s.TopicRealtid {
			return false
		}
	case KindRoadCondition:
		if !s.TopicRoadCondition {
			return false
		}
	default:
		return false
	}

	if len(s.Counties) > 0 {
		found := false
		for _, c := range s.Counties {
			if c == e.County() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if inc, ok := e.(*Incident); ok && inc.SeverityCode < s.MinSeverity {
		return false
	}

	return true
}

// ClientInterest expresses that one live viewer currently wants events from a
// set of counties. The worker manager unions these with push subscription
// counties to decide which upstream streams to keep open.
type ClientInterest struct {
	ClientID   string    `json:"client_id"`
	Counties   []int     `json:"counties"`
	LastActive time.Time `json:"last_active"`
}
