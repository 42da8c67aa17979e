// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/metrics"
	"github.com/trafikinfo/trafikinfo/internal/models"
	"github.com/trafikinfo/trafikinfo/internal/normalize"
	"github.com/trafikinfo/trafikinfo/internal/trafikverket"
)

// Store is the write surface the processor commits changes through. The
// upserts classify the change and return the authoritative row state.
type Store interface {
	UpsertIncident(ctx context.Context, inc *models.Incident) (models.ChangeKind, error)
	UpsertRoadCondition(ctx context.Context, rc *models.RoadCondition) (models.ChangeKind, error)
}

// Enricher decorates entities with cameras and weather before storage.
type Enricher interface {
	Enrich(ctx context.Context, entity models.Entity) (bool, error)
}

// Publisher receives committed changes, strictly after the store write.
type Publisher interface {
	Publish(change models.EntityChange) error
}

// Pipeline owns the ingest queue and the single processor loop.
type Pipeline struct {
	store     Store
	enricher  Enricher
	publisher Publisher
	queue     chan trafikverket.RawBatch
}

// New creates a pipeline with the queue sized from worker config.
func New(cfg *config.WorkerConfig, store Store, enricher Enricher, publisher Publisher) *Pipeline {
	size := cfg.PipelineBuffer
	if size <= 0 {
		size = 256
	}
	return &Pipeline{
		store:     store,
		enricher:  enricher,
		publisher: publisher,
		queue:     make(chan trafikverket.RawBatch, size),
	}
}

// Ingest enqueues one raw batch without blocking. Overflow drops the batch.
func (p *Pipeline) Ingest(batch trafikverket.RawBatch) {
	select {
	case p.queue <- batch:
		metrics.UpdatePipelineQueueDepth(len(p.queue))
	default:
		metrics.RecordPipelineDrop(entityLabel(batch.ObjectType))
		logging.Warn().
			Str("component", "pipeline").
			Str("object_type", batch.ObjectType).
			Msg("Ingest queue full, batch dropped")
	}
}

// Consume forwards one stream's batches into the queue until the channel
// closes or ctx ends. One Consume goroutine runs per open upstream stream.
func (p *Pipeline) Consume(ctx context.Context, batches <-chan trafikverket.RawBatch) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			p.Ingest(batch)
		}
	}
}

// Serve implements suture.Service: it processes queued batches until ctx is
// cancelled, then drains whatever is already queued before returning.
func (p *Pipeline) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		case batch := <-p.queue:
			metrics.UpdatePipelineQueueDepth(len(p.queue))
			p.process(ctx, batch)
		}
	}
}

// drain processes batches that were accepted before shutdown. Lookups and
// writes run on a fresh bounded context since the serve context is gone.
func (p *Pipeline) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case batch := <-p.queue:
			p.process(ctx, batch)
		default:
			metrics.UpdatePipelineQueueDepth(0)
			return
		}
	}
}

// process normalizes one batch and commits every entity in it.
func (p *Pipeline) process(ctx context.Context, batch trafikverket.RawBatch) {
	switch batch.ObjectType {
	case trafikverket.ObjectSituation:
		incidents, err := normalize.Situations(batch.Data)
		if err != nil {
			p.reportParseFailure(batch.ObjectType, err)
			return
		}
		for _, inc := range incidents {
			p.commit(ctx, inc)
		}
	case trafikverket.ObjectRoadCondition:
		conditions, err := normalize.RoadConditions(batch.Data)
		if err != nil {
			p.reportParseFailure(batch.ObjectType, err)
			return
		}
		for _, rc := range conditions {
			p.commit(ctx, rc)
		}
	default:
		logging.Error().
			Str("component", "pipeline").
			Str("object_type", batch.ObjectType).
			Msg("Batch for unknown object type dropped")
	}
}

// commit runs enrich, upsert and publish for one entity. Enrichment failures
// degrade to storing the entity un-enriched; a failed store write skips the
// publish so sinks only ever see committed state.
func (p *Pipeline) commit(ctx context.Context, entity models.Entity) {
	start := time.Now()
	label := string(entity.Kind())

	if _, err := p.enricher.Enrich(ctx, entity); err != nil {
		logging.Warn().
			Err(err).
			Str("component", "pipeline").
			Str("key", entity.Key()).
			Msg("Enrichment failed, storing entity without it")
	}

	kind, err := p.upsert(ctx, entity)
	if err != nil {
		logging.Error().
			Err(err).
			Str("component", "pipeline").
			Str("key", entity.Key()).
			Msg("Failed to store entity")
		return
	}

	if kind != models.ChangeUnchanged {
		if err := p.publisher.Publish(models.EntityChange{Kind: kind, Entity: entity}); err != nil {
			logging.Error().
				Err(err).
				Str("component", "pipeline").
				Str("key", entity.Key()).
				Msg("Failed to publish committed change")
		}
	}

	metrics.RecordPipelineProcessing(label, time.Since(start))
}

func (p *Pipeline) upsert(ctx context.Context, entity models.Entity) (models.ChangeKind, error) {
	switch v := entity.(type) {
	case *models.Incident:
		return p.store.UpsertIncident(ctx, v)
	case *models.RoadCondition:
		return p.store.UpsertRoadCondition(ctx, v)
	default:
		return models.ChangeUnchanged, fmt.Errorf("unknown entity kind %q", entity.Kind())
	}
}

func (p *Pipeline) reportParseFailure(objectType string, err error) {
	// Stream heartbeats decode to an empty envelope; they are not failures.
	if errors.Is(err, normalize.ErrEmptyBatch) {
		return
	}
	metrics.RecordStreamParseFailure(objectType)
	logging.Error().
		Err(err).
		Str("component", "pipeline").
		Str("object_type", objectType).
		Msg("Failed to parse stream batch")
}

func entityLabel(objectType string) string {
	if objectType == trafikverket.ObjectRoadCondition {
		return string(models.KindRoadCondition)
	}
	return string(models.KindIncident)
}
