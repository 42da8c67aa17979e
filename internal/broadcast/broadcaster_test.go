// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package broadcast

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/trafikinfo/trafikinfo/internal/config"
	"github.com/trafikinfo/trafikinfo/internal/models"
	"github.com/trafikinfo/trafikinfo/internal/webpush"
)

type brokerCall struct {
	key     string
	baseURL string
}

type pushCall struct {
	subID   int64
	payload []byte
}

type fakeSinkStore struct {
	settings map[string]string
	subs     []models.PushSubscription

	markedIncidents chan string
	markedRCs       chan int64
	deletedSubs     chan int64
}

func newFakeSinkStore() *fakeSinkStore {
	return &fakeSinkStore{
		settings:        map[string]string{},
		markedIncidents: make(chan string, 8),
		markedRCs:       make(chan int64, 8),
		deletedSubs:     make(chan int64, 8),
	}
}

func (f *fakeSinkStore) GetSetting(_ context.Context, key string) (string, error) {
	if v, ok := f.settings[key]; ok {
		return v, nil
	}
	return models.DefaultSettings[key], nil
}

func (f *fakeSinkStore) GetPushSubscriptions(_ context.Context) ([]models.PushSubscription, error) {
	return f.subs, nil
}

func (f *fakeSinkStore) DeletePushSubscriptionByID(_ context.Context, id int64) error {
	f.deletedSubs <- id
	return nil
}

func (f *fakeSinkStore) MarkIncidentPublished(_ context.Context, externalID string) error {
	f.markedIncidents <- externalID
	return nil
}

func (f *fakeSinkStore) MarkRoadConditionPublished(_ context.Context, rowID int64) error {
	f.markedRCs <- rowID
	return nil
}

type fakeBroker struct {
	calls chan brokerCall
	err   error
}

func (f *fakeBroker) Publish(entity models.Entity, baseURL string) error {
	f.calls <- brokerCall{key: entity.Key(), baseURL: baseURL}
	return f.err
}

type fakePush struct {
	calls chan pushCall
	err   error
}

func (f *fakePush) Send(_ context.Context, sub *models.PushSubscription, payload []byte) error {
	f.calls <- pushCall{subID: sub.ID, payload: payload}
	return f.err
}

func startBroadcaster(t *testing.T, store Store, broker *fakeBroker, push *fakePush) *Broadcaster {
	t.Helper()

	hub := NewHub(&config.SSEConfig{QueueSize: 16})
	b, err := New(hub, store, broker, push)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := b.Serve(ctx); err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-b.router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	return b
}

func recvBroker(t *testing.T, ch chan brokerCall) brokerCall {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broker publish")
		return brokerCall{}
	}
}

func testIncident(severity int) *models.Incident {
	return &models.Incident{
		ExternalID:   "SE_STA_TRISSID_1_100",
		EventType:    models.EventTypeRealtid,
		Title:        "Trafikolycka",
		Location:     "E4 vid Rotebro",
		SeverityCode: severity,
		CountyNo:     1,
		IconID:       "accident",
	}
}

func TestBroadcasterCreatedReachesAllSinks(t *testing.T) {
	store := newFakeSinkStore()
	store.settings[models.SettingBaseURL] = "https://trafik.example.com"
	store.subs = []models.PushSubscription{{
		ID:           7,
		TopicRealtid: true,
		SoundEnabled: true,
	}}
	broker := &fakeBroker{calls: make(chan brokerCall, 8)}
	push := &fakePush{calls: make(chan pushCall, 8)}

	b := startBroadcaster(t, store, broker, push)
	viewer := b.Hub().Register()
	defer b.Hub().Unregister(viewer.ID)

	inc := testIncident(4)
	if err := b.Publish(models.EntityChange{Kind: models.ChangeCreated, Entity: inc}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case frame := <-viewer.Events():
		if !strings.HasPrefix(string(frame), "event: incident\n") {
			t.Errorf("frame = %q, want incident event", frame)
		}
		if !strings.Contains(string(frame), inc.ExternalID) {
			t.Errorf("frame %q does not carry the entity", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE frame")
	}

	call := recvBroker(t, broker.calls)
	if call.key != inc.ExternalID || call.baseURL != "https://trafik.example.com" {
		t.Errorf("broker call = %+v", call)
	}

	select {
	case id := <-store.markedIncidents:
		if id != inc.ExternalID {
			t.Errorf("marked incident %q, want %q", id, inc.ExternalID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("incident was not marked as published")
	}

	select {
	case sent := <-push.calls:
		if sent.subID != 7 {
			t.Errorf("push sub id = %d, want 7", sent.subID)
		}
		var payload pushPayload
		if err := json.Unmarshal(sent.payload, &payload); err != nil {
			t.Fatalf("push payload decode: %v", err)
		}
		if payload.Title != "Trafikolycka - Stockholm" {
			t.Errorf("payload title = %q", payload.Title)
		}
		if payload.Body != "E4 vid Rotebro" {
			t.Errorf("payload body = %q", payload.Body)
		}
		if payload.URL != "https://trafik.example.com/?event="+inc.ExternalID {
			t.Errorf("payload url = %q", payload.URL)
		}
		if payload.Icon != "https://trafik.example.com/api/icons/accident" {
			t.Errorf("payload icon = %q", payload.Icon)
		}
		if !payload.Sound {
			t.Error("payload sound flag lost")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push delivery")
	}
}

func TestBroadcasterRefreshedReachesOnlySSE(t *testing.T) {
	store := newFakeSinkStore()
	store.subs = []models.PushSubscription{{ID: 1, TopicRealtid: true}}
	broker := &fakeBroker{calls: make(chan brokerCall, 8)}
	push := &fakePush{calls: make(chan pushCall, 8)}

	b := startBroadcaster(t, store, broker, push)
	viewer := b.Hub().Register()
	defer b.Hub().Unregister(viewer.ID)

	if err := b.Publish(models.EntityChange{Kind: models.ChangeRefreshed, Entity: testIncident(3)}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-viewer.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE frame")
	}

	// The SSE frame proves the message crossed the bus; the quiet sinks must
	// have skipped it by now or shortly after.
	time.Sleep(50 * time.Millisecond)
	select {
	case c := <-broker.calls:
		t.Errorf("broker received refresh %+v", c)
	default:
	}
	select {
	case c := <-push.calls:
		t.Errorf("push received refresh %+v", c)
	default:
	}
}

func TestBroadcasterRoadConditionRowIDSurvivesBus(t *testing.T) {
	store := newFakeSinkStore()
	broker := &fakeBroker{calls: make(chan brokerCall, 8)}
	push := &fakePush{calls: make(chan pushCall, 8)}

	b := startBroadcaster(t, store, broker, push)

	rc := &models.RoadCondition{
		RowID:         42,
		ID:            "SE_STA_RC_1",
		RoadNumber:    "E18",
		CountyNo:      4,
		ConditionCode: 3,
		ConditionText: "Mycket besvärligt väglag",
	}
	if err := b.Publish(models.EntityChange{Kind: models.ChangeUpdated, Entity: rc}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	recvBroker(t, broker.calls)

	select {
	case rowID := <-store.markedRCs:
		if rowID != 42 {
			t.Errorf("marked row id = %d, want 42", rowID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("road condition was not marked as published")
	}
}

func TestBroadcasterBrokerFailureSkipsMark(t *testing.T) {
	store := newFakeSinkStore()
	broker := &fakeBroker{calls: make(chan brokerCall, 8), err: context.DeadlineExceeded}
	push := &fakePush{calls: make(chan pushCall, 8)}

	b := startBroadcaster(t, store, broker, push)

	if err := b.Publish(models.EntityChange{Kind: models.ChangeCreated, Entity: testIncident(2)}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	recvBroker(t, broker.calls)
	time.Sleep(50 * time.Millisecond)
	select {
	case id := <-store.markedIncidents:
		t.Errorf("incident %q marked published despite broker failure", id)
	default:
	}
}

func TestBroadcasterPushFilters(t *testing.T) {
	store := newFakeSinkStore()
	store.subs = []models.PushSubscription{
		{ID: 1, TopicRealtid: false},
		{ID: 2, TopicRealtid: true, MinSeverity: 5},
		{ID: 3, TopicRealtid: true, Counties: []int{14}},
		{ID: 4, TopicRealtid: true, Counties: []int{1, 4}},
	}
	broker := &fakeBroker{calls: make(chan brokerCall, 8)}
	push := &fakePush{calls: make(chan pushCall, 8)}

	b := startBroadcaster(t, store, broker, push)

	// Severity 4 in county 1: only subscription 4 matches.
	if err := b.Publish(models.EntityChange{Kind: models.ChangeCreated, Entity: testIncident(4)}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case sent := <-push.calls:
		if sent.subID != 4 {
			t.Errorf("push sub id = %d, want 4", sent.subID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push delivery")
	}

	time.Sleep(50 * time.Millisecond)
	select {
	case sent := <-push.calls:
		t.Errorf("unexpected extra push to sub %d", sent.subID)
	default:
	}
}

func TestBroadcasterPushDisabledBySetting(t *testing.T) {
	store := newFakeSinkStore()
	store.settings[models.SettingPushNotificationsEnabled] = "false"
	store.subs = []models.PushSubscription{{ID: 1, TopicRealtid: true}}
	broker := &fakeBroker{calls: make(chan brokerCall, 8)}
	push := &fakePush{calls: make(chan pushCall, 8)}

	b := startBroadcaster(t, store, broker, push)

	if err := b.Publish(models.EntityChange{Kind: models.ChangeCreated, Entity: testIncident(4)}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	recvBroker(t, broker.calls)
	time.Sleep(50 * time.Millisecond)
	select {
	case sent := <-push.calls:
		t.Errorf("push delivered to sub %d while disabled", sent.subID)
	default:
	}
}

func TestBroadcasterEvictsGoneSubscription(t *testing.T) {
	store := newFakeSinkStore()
	store.subs = []models.PushSubscription{{ID: 9, TopicRealtid: true}}
	broker := &fakeBroker{calls: make(chan brokerCall, 8)}
	push := &fakePush{calls: make(chan pushCall, 8), err: webpush.ErrSubscriptionGone}

	b := startBroadcaster(t, store, broker, push)

	if err := b.Publish(models.EntityChange{Kind: models.ChangeCreated, Entity: testIncident(4)}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case id := <-store.deletedSubs:
		if id != 9 {
			t.Errorf("deleted sub id = %d, want 9", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("gone subscription was not deleted")
	}
}

func TestPublishBeforeServeReachesSinks(t *testing.T) {
	store := newFakeSinkStore()
	broker := &fakeBroker{calls: make(chan brokerCall, 8)}
	push := &fakePush{calls: make(chan pushCall, 8)}

	hub := NewHub(&config.SSEConfig{QueueSize: 16})
	b, err := New(hub, store, broker, push)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Publish while the router is not running yet; the call must wait for
	// the sinks instead of handing the change to a bus nobody reads.
	published := make(chan error, 1)
	go func() {
		published <- b.Publish(models.EntityChange{Kind: models.ChangeCreated, Entity: testIncident(4)})
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := b.Serve(ctx); err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case err := <-published:
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Publish did not return after the router started")
	}

	call := recvBroker(t, broker.calls)
	if call.key != testIncident(4).Key() {
		t.Errorf("broker call = %+v", call)
	}
}
