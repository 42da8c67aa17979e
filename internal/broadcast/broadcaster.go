// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
	"github.com/trafikinfo/trafikinfo/internal/webpush"
)

// changesTopic is the in-process topic every committed change travels on.
const changesTopic = "entity-changes"

// sinkStartWait bounds how long a publish waits for the sink handlers to
// come up. The bus delivers only to already-subscribed handlers, so a
// change published before the router runs would vanish without it.
const sinkStartWait = 30 * time.Second

// Store is the database surface the sink handlers use.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, error)
	GetPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	DeletePushSubscriptionByID(ctx context.Context, id int64) error
	MarkIncidentPublished(ctx context.Context, externalID string) error
	MarkRoadConditionPublished(ctx context.Context, rowID int64) error
}

// BrokerPublisher is the MQTT sink.
type BrokerPublisher interface {
	Publish(entity models.Entity, baseURL string) error
}

// PushSender delivers one encrypted push message.
type PushSender interface {
	Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error
}

// envelope is the wire form on the in-process bus. The entity is serialized
// exactly once, at publish; every sink reuses the same bytes. RowID carries
// the road-condition row key, which is deliberately absent from entity JSON.
type envelope struct {
	ChangeKind string          `json:"change_kind"`
	EntityKind string          `json:"entity_kind"`
	RowID      int64           `json:"row_id,omitempty"`
	Entity     json.RawMessage `json:"entity"`
}

// Broadcaster owns the bus, the router and the three sink handlers. It is a
// suture service; Serve runs the router until ctx is cancelled.
type Broadcaster struct {
	pubSub *gochannel.GoChannel
	router *message.Router
	hub    *Hub
	store  Store
	broker BrokerPublisher
	push   PushSender
}

// New wires the bus and registers one handler per sink.
func New(hub *Hub, store Store, broker BrokerPublisher, push PushSender) (*Broadcaster, error) {
	logger := newWatermillLogger()

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create broadcast router: %w", err)
	}

	b := &Broadcaster{
		pubSub: pubSub,
		router: router,
		hub:    hub,
		store:  store,
		broker: broker,
		push:   push,
	}

	// Each handler subscribes separately; the gochannel fans every message
	// out to all of them. Handlers swallow their own failures, a sink error
	// is logged, never retried and never blocks the other sinks.
	router.AddNoPublisherHandler("sse-sink", changesTopic, pubSub, b.handleSSE)
	router.AddNoPublisherHandler("broker-sink", changesTopic, pubSub, b.handleBroker)
	router.AddNoPublisherHandler("push-sink", changesTopic, pubSub, b.handlePush)

	return b, nil
}

// Publish puts one committed change on the bus. Callers must only publish
// after the store transaction committed. Publishes block until the sink
// handlers are subscribed, so changes committed while the router is still
// starting are not lost.
func (b *Broadcaster) Publish(change models.EntityChange) error {
	select {
	case <-b.router.Running():
	case <-time.After(sinkStartWait):
		return fmt.Errorf("broadcast sinks not running, change %s not published", change.Entity.Key())
	}

	entityJSON, err := json.Marshal(change.Entity)
	if err != nil {
		return fmt.Errorf("failed to serialize entity %s: %w", change.Entity.Key(), err)
	}

	env := envelope{
		ChangeKind: change.Kind.String(),
		EntityKind: string(change.Entity.Kind()),
		Entity:     entityJSON,
	}
	if rc, ok := change.Entity.(*models.RoadCondition); ok {
		env.RowID = rc.RowID
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize change envelope: %w", err)
	}

	return b.pubSub.Publish(changesTopic, message.NewMessage(watermill.NewUUID(), data))
}

// Serve implements suture.Service; it runs the router until ctx ends.
func (b *Broadcaster) Serve(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Close shuts the router and the bus down.
func (b *Broadcaster) Close() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	return b.pubSub.Close()
}

// Hub exposes the SSE hub for the stream handler.
func (b *Broadcaster) Hub() *Hub {
	return b.hub
}

// handleSSE delivers every change to all connected viewers.
func (b *Broadcaster) handleSSE(msg *message.Message) error {
	env, _, err := decodeEnvelope(msg.Payload)
	if err != nil {
		logging.Error().Err(err).Msg("SSE sink dropped undecodable change")
		return nil
	}
	b.hub.Broadcast(env.EntityKind, env.Entity)
	return nil
}

// handleBroker publishes creations and significant updates to MQTT and
// records broker publication on success.
func (b *Broadcaster) handleBroker(msg *message.Message) error {
	env, entity, err := decodeEnvelope(msg.Payload)
	if err != nil {
		logging.Error().Err(err).Msg("Broker sink dropped undecodable change")
		return nil
	}
	if !significant(env.ChangeKind) {
		return nil
	}

	ctx := msg.Context()
	baseURL, err := b.store.GetSetting(ctx, models.SettingBaseURL)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read base url for broker publish")
	}

	if err := b.broker.Publish(entity, baseURL); err != nil {
		logging.Warn().Err(err).Str("key", entity.Key()).Msg("Broker publish failed")
		return nil
	}

	switch v := entity.(type) {
	case *models.Incident:
		err = b.store.MarkIncidentPublished(ctx, v.ExternalID)
	case *models.RoadCondition:
		err = b.store.MarkRoadConditionPublished(ctx, v.RowID)
	}
	if err != nil {
		logging.Warn().Err(err).Str("key", entity.Key()).Msg("Failed to record broker publication")
	}
	return nil
}

// handlePush fans creations and significant updates out to matching
// subscriptions, evicting the gone ones.
func (b *Broadcaster) handlePush(msg *message.Message) error {
	env, entity, err := decodeEnvelope(msg.Payload)
	if err != nil {
		logging.Error().Err(err).Msg("Push sink dropped undecodable change")
		return nil
	}
	if !significant(env.ChangeKind) {
		return nil
	}

	ctx := msg.Context()

	enabled, err := b.store.GetSetting(ctx, models.SettingPushNotificationsEnabled)
	if err != nil || enabled != "true" {
		return nil
	}

	subs, err := b.store.GetPushSubscriptions(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to load push subscriptions")
		return nil
	}
	if len(subs) == 0 {
		return nil
	}

	baseURL, err := b.store.GetSetting(ctx, models.SettingBaseURL)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read base url for push payload")
	}

	for i := range subs {
		sub := &subs[i]
		if !sub.Matches(entity) {
			continue
		}

		payload, err := buildPushPayload(entity, baseURL, sub.SoundEnabled)
		if err != nil {
			logging.Error().Err(err).Str("key", entity.Key()).Msg("Failed to build push payload")
			return nil
		}

		err = b.push.Send(ctx, sub, payload)
		switch {
		case errors.Is(err, webpush.ErrSubscriptionGone):
			if delErr := b.store.DeletePushSubscriptionByID(ctx, sub.ID); delErr != nil {
				logging.Warn().Err(delErr).Int64("id", sub.ID).Msg("Failed to delete gone subscription")
			} else {
				metrics.RecordPushEviction()
				logging.Info().Int64("id", sub.ID).Msg("Evicted gone push subscription")
			}
		case err != nil:
			logging.Warn().Err(err).Int64("id", sub.ID).Msg("Push delivery failed")
		}
	}
	return nil
}

// decodeEnvelope rebuilds the typed entity from the bus payload.
func decodeEnvelope(payload []byte) (*envelope, models.Entity, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, nil, fmt.Errorf("failed to decode change envelope: %w", err)
	}

	switch models.EntityKind(env.EntityKind) {
	case models.KindIncident:
		var inc models.Incident
		if err := json.Unmarshal(env.Entity, &inc); err != nil {
			return nil, nil, fmt.Errorf("failed to decode incident: %w", err)
		}
		return &env, &inc, nil
	case models.KindRoadCondition:
		var rc models.RoadCondition
		if err := json.Unmarshal(env.Entity, &rc); err != nil {
			return nil, nil, fmt.Errorf("failed to decode road condition: %w", err)
		}
		rc.RowID = env.RowID
		return &env, &rc, nil
	default:
		return nil, nil, fmt.Errorf("unknown entity kind %q", env.EntityKind)
	}
}

// significant reports whether the change fans out beyond SSE.
func significant(changeKind string) bool {
	return changeKind == models.ChangeCreated.String() || changeKind == models.ChangeUpdated.String()
}
