// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/logging"
	"github.com/trafikinfo/trafikinfo/internal/models"
	"github.com/trafikinfo/trafikinfo/internal/trafikverket"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

const situationBatch = `{"RESPONSE":{"RESULT":[{"Situation":[
	{"Id":"SE_STA_TRISSID_1_1","Deviation":[{
		"Id":"D1","Header":"Trafikolycka","IconId":"accident","MessageType":"Olycka",
		"SeverityCode":4,"SeverityText":"Stor påverkan",
		"LocationDescriptor":"E4 vid Rotebro","RoadNumber":"E4",
		"CountyNo":[1],
		"Geometry":{"Point":{"WGS84":"POINT (18.07 59.33)"}}}]},
	{"Id":"SE_STA_TRISSID_1_2","Deviation":[{
		"Id":"D2","Header":"Vägarbete","IconId":"roadwork","MessageType":"Vägarbete",
		"SeverityCode":2,"CountyNo":[1]}]}
]}]}}`

const roadConditionBatch = `{"RESPONSE":{"RESULT":[{"RoadCondition":[
	{"Id":"SE_STA_RC_1","ConditionCode":3,"ConditionText":"Mycket besvärligt väglag",
	 "RoadNumber":"E18","CountyNo":[4],
	 "Geometry":{"WGS84":"POINT (17.0 59.5)"}}
]}]}}`

type upsertCall struct {
	key  string
	kind models.EntityKind
}

type fakeStore struct {
	mu     sync.Mutex
	calls  []upsertCall
	kind   models.ChangeKind
	err    error
	rowIDs int64
}

func (f *fakeStore) record(key string, kind models.EntityKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, upsertCall{key: key, kind: kind})
}

func (f *fakeStore) snapshot() []upsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upsertCall(nil), f.calls...)
}

func (f *fakeStore) UpsertIncident(_ context.Context, inc *models.Incident) (models.ChangeKind, error) {
	f.record(inc.ExternalID, models.KindIncident)
	return f.kind, f.err
}

func (f *fakeStore) UpsertRoadCondition(_ context.Context, rc *models.RoadCondition) (models.ChangeKind, error) {
	f.mu.Lock()
	f.rowIDs++
	rc.RowID = f.rowIDs
	f.mu.Unlock()
	f.record(rc.ID, models.KindRoadCondition)
	return f.kind, f.err
}

type fakeEnricher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeEnricher) Enrich(_ context.Context, entity models.Entity) (bool, error) {
	f.mu.Lock()
	f.keys = append(f.keys, entity.Key())
	f.mu.Unlock()
	return false, f.err
}

type fakePublisher struct {
	changes chan models.EntityChange
}

func (f *fakePublisher) Publish(change models.EntityChange) error {
	f.changes <- change
	return nil
}

func startPipeline(t *testing.T, store *fakeStore, enricher *fakeEnricher, pub *fakePublisher) *Pipeline {
	t.Helper()

	p := New(&config.WorkerConfig{PipelineBuffer: 16}, store, enricher, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Serve(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p
}

func recvChange(t *testing.T, pub *fakePublisher) models.EntityChange {
	t.Helper()
	select {
	case c := <-pub.changes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published change")
		return models.EntityChange{}
	}
}

func TestPipelineProcessesSituationBatch(t *testing.T) {
	store := &fakeStore{kind: models.ChangeCreated}
	enricher := &fakeEnricher{}
	pub := &fakePublisher{changes: make(chan models.EntityChange, 8)}
	p := startPipeline(t, store, enricher, pub)

	p.Ingest(trafikverket.RawBatch{
		ObjectType: trafikverket.ObjectSituation,
		Data:       []byte(situationBatch),
	})

	first := recvChange(t, pub)
	second := recvChange(t, pub)

	if first.Kind != models.ChangeCreated {
		t.Errorf("change kind = %v, want created", first.Kind)
	}
	if first.Entity.Key() != "SE_STA_TRISSID_1_1" || second.Entity.Key() != "SE_STA_TRISSID_1_2" {
		t.Errorf("published keys = %q, %q", first.Entity.Key(), second.Entity.Key())
	}

	calls := store.snapshot()
	if len(calls) != 2 {
		t.Fatalf("upsert calls = %d, want 2", len(calls))
	}
	for _, c := range calls {
		if c.kind != models.KindIncident {
			t.Errorf("upsert kind = %v, want incident", c.kind)
		}
	}

	// Enrichment ran before the store write for each entity.
	enricher.mu.Lock()
	enriched := len(enricher.keys)
	enricher.mu.Unlock()
	if enriched != 2 {
		t.Errorf("enriched %d entities, want 2", enriched)
	}
}

func TestPipelineProcessesRoadConditionBatch(t *testing.T) {
	store := &fakeStore{kind: models.ChangeUpdated}
	pub := &fakePublisher{changes: make(chan models.EntityChange, 8)}
	p := startPipeline(t, store, &fakeEnricher{}, pub)

	p.Ingest(trafikverket.RawBatch{
		ObjectType: trafikverket.ObjectRoadCondition,
		Data:       []byte(roadConditionBatch),
	})

	change := recvChange(t, pub)
	rc, ok := change.Entity.(*models.RoadCondition)
	if !ok {
		t.Fatalf("published entity type = %T", change.Entity)
	}
	if rc.ID != "SE_STA_RC_1" {
		t.Errorf("published id = %q", rc.ID)
	}
	// The row id assigned inside the upsert reaches the publisher.
	if rc.RowID != 1 {
		t.Errorf("row id = %d, want 1", rc.RowID)
	}
}

func TestPipelineUnchangedIsNotPublished(t *testing.T) {
	store := &fakeStore{kind: models.ChangeUnchanged}
	pub := &fakePublisher{changes: make(chan models.EntityChange, 8)}
	p := startPipeline(t, store, &fakeEnricher{}, pub)

	p.Ingest(trafikverket.RawBatch{
		ObjectType: trafikverket.ObjectRoadCondition,
		Data:       []byte(roadConditionBatch),
	})

	deadline := time.After(time.Second)
	for {
		if len(store.snapshot()) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for upsert")
		case <-time.After(5 * time.Millisecond):
		}
	}

	select {
	case c := <-pub.changes:
		t.Errorf("unchanged entity published: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPipelineStoreFailureSkipsPublish(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	pub := &fakePublisher{changes: make(chan models.EntityChange, 8)}
	p := startPipeline(t, store, &fakeEnricher{}, pub)

	p.Ingest(trafikverket.RawBatch{
		ObjectType: trafikverket.ObjectRoadCondition,
		Data:       []byte(roadConditionBatch),
	})

	deadline := time.After(time.Second)
	for len(store.snapshot()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for upsert attempt")
		case <-time.After(5 * time.Millisecond):
		}
	}

	select {
	case c := <-pub.changes:
		t.Errorf("failed write published: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPipelineEnrichFailureStillStores(t *testing.T) {
	store := &fakeStore{kind: models.ChangeCreated}
	enricher := &fakeEnricher{err: errors.New("lookup failed")}
	pub := &fakePublisher{changes: make(chan models.EntityChange, 8)}
	p := startPipeline(t, store, enricher, pub)

	p.Ingest(trafikverket.RawBatch{
		ObjectType: trafikverket.ObjectRoadCondition,
		Data:       []byte(roadConditionBatch),
	})

	change := recvChange(t, pub)
	if change.Entity.Key() != "SE_STA_RC_1" {
		t.Errorf("published key = %q", change.Entity.Key())
	}
}

func TestPipelineHeartbeatIsQuietlySkipped(t *testing.T) {
	store := &fakeStore{kind: models.ChangeCreated}
	pub := &fakePublisher{changes: make(chan models.EntityChange, 8)}
	p := startPipeline(t, store, &fakeEnricher{}, pub)

	p.Ingest(trafikverket.RawBatch{
		ObjectType: trafikverket.ObjectSituation,
		Data:       []byte(`{"RESPONSE":{"RESULT":[]}}`),
	})
	// A real batch behind the heartbeat still flows through.
	p.Ingest(trafikverket.RawBatch{
		ObjectType: trafikverket.ObjectRoadCondition,
		Data:       []byte(roadConditionBatch),
	})

	change := recvChange(t, pub)
	if change.Entity.Key() != "SE_STA_RC_1" {
		t.Errorf("published key = %q", change.Entity.Key())
	}
	if got := len(store.snapshot()); got != 1 {
		t.Errorf("upsert calls = %d, want 1", got)
	}
}

func TestPipelineConsumeForwardsUntilClose(t *testing.T) {
	store := &fakeStore{kind: models.ChangeCreated}
	pub := &fakePublisher{changes: make(chan models.EntityChange, 8)}
	p := startPipeline(t, store, &fakeEnricher{}, pub)

	batches := make(chan trafikverket.RawBatch, 2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Consume(context.Background(), batches)
	}()

	batches <- trafikverket.RawBatch{
		ObjectType: trafikverket.ObjectRoadCondition,
		Data:       []byte(roadConditionBatch),
	}
	close(batches)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Consume did not return after channel close")
	}
	recvChange(t, pub)
}

func TestPipelineDrainsQueueOnShutdown(t *testing.T) {
	store := &fakeStore{kind: models.ChangeCreated}
	pub := &fakePublisher{changes: make(chan models.EntityChange, 8)}
	p := New(&config.WorkerConfig{PipelineBuffer: 16}, store, &fakeEnricher{}, pub)

	// Queue before Serve starts, then cancel immediately; the batch must
	// still be processed by the drain pass.
	p.Ingest(trafikverket.RawBatch{
		ObjectType: trafikverket.ObjectRoadCondition,
		Data:       []byte(roadConditionBatch),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() error = %v", err)
	}

	if got := len(store.snapshot()); got != 1 {
		t.Errorf("upsert calls after drain = %d, want 1", got)
	}
}
