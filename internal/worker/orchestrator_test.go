package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satwatch-io/satwatch/internal/provider/mock"
	"github.com/satwatch-io/satwatch/pkg/models"
)

// --- fake event bus ---

type published struct {
	Key   string
	Event models.Event
}

type fakeBus struct {
	mu     sync.Mutex
	events []published
	// failTypes makes PublishEvent fail for the listed event types.
	failTypes map[string]error
}

func (b *fakeBus) PublishEvent(_ context.Context, key string, evt models.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.failTypes[evt.Type]; ok {
		return err
	}
	b.events = append(b.events, published{Key: key, Event: evt})
	return nil
}

func (b *fakeBus) byType(typ string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, p := range b.events {
		if p.Event.Type == typ {
			out = append(out, p)
		}
	}
	return out
}

func (b *fakeBus) all() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.events...)
}

// --- helpers ---

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestOrchestrator(bus *fakeBus, providers ...models.ImageryProvider) *Orchestrator {
	o := NewOrchestrator(providers, bus, 0)
	o.now = func() time.Time { return testNow }
	return o
}

func orderMessage(t *testing.T, orderID, jobType string, start, end time.Time) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"orderId":    orderID,
		"type":       jobType,
		"start_date": start.Format(time.RFC3339),
		"end_date":   end.Format(time.RFC3339),
		"bbox":       []float64{13.0, 52.0, 13.5, 52.5},
	})
	require.NoError(t, err)
	return raw
}

func pastWindow() (time.Time, time.Time) {
	return testNow.Add(-48 * time.Hour), testNow.Add(-24 * time.Hour)
}

func futureWindow() (time.Time, time.Time) {
	return testNow.Add(24 * time.Hour), testNow.Add(48 * time.Hour)
}

// --- tests ---

func TestHandleMessage_ArchiveLifecycleWithFailingSibling(t *testing.T) {
	features := []models.Feature{{ID: "f1"}, {ID: "f2"}, {ID: "f3"}}
	good := mock.NewArchiveProvider("Copernicus", features)
	bad := mock.NewFailingProvider("Umbra", errors.New("connection refused"))

	bus := &fakeBus{}
	o := newTestOrchestrator(bus, good, bad)

	start, end := pastWindow()
	err := o.HandleMessage(context.Background(), orderMessage(t, "o1", "search", start, end))
	require.NoError(t, err)

	events := bus.all()
	require.NotEmpty(t, events)

	// exactly one order.started, and it is first
	assert.Len(t, bus.byType(models.EventOrderStarted), 1)
	assert.Equal(t, models.EventOrderStarted, events[0].Event.Type)
	assert.Equal(t, "order.o1.started", events[0].Key)

	// exactly one terminal event, order.complete, and it is last
	assert.Len(t, bus.byType(models.EventOrderComplete), 1)
	assert.Empty(t, bus.byType(models.EventOrderFailed))
	last := events[len(events)-1]
	assert.Equal(t, models.EventOrderComplete, last.Event.Type)
	assert.Equal(t, "order.o1.complete", last.Key)

	// one ok update from the good adapter, one error update from the bad one
	updates := bus.byType(models.EventProviderUpdate)
	require.Len(t, updates, 2)
	byProvider := map[string]published{}
	for _, u := range updates {
		byProvider[u.Event.Provider] = u
	}

	ok := byProvider["Copernicus"]
	assert.Equal(t, models.StatusOK, ok.Event.Status)
	assert.Equal(t, string(ModeArchive), ok.Event.Mode)
	assert.Len(t, ok.Event.Features, 3)
	assert.Equal(t, "order.o1.provider.Copernicus.ok", ok.Key)

	failed := byProvider["Umbra"]
	assert.Equal(t, models.StatusError, failed.Event.Status)
	assert.Contains(t, failed.Event.Error, "connection refused")
	assert.Equal(t, "order.o1.provider.Umbra.error", failed.Key)

	// every event carries the originating order id
	for _, p := range events {
		assert.Equal(t, "o1", p.Event.OrderID)
	}
}

func TestHandleMessage_UnknownJobType(t *testing.T) {
	archiveCalled := false
	p := &mock.MockProvider{
		Name_: "Copernicus",
		Caps:  models.CapArchive,
		ArchiveFunc: func(_ context.Context, _, _ string, _ []float64) ([]models.Feature, error) {
			archiveCalled = true
			return []models.Feature{}, nil
		},
	}

	bus := &fakeBus{}
	o := newTestOrchestrator(bus, p)

	start, end := pastWindow()
	err := o.HandleMessage(context.Background(), orderMessage(t, "o2", "bogus", start, end))
	require.NoError(t, err)

	events := bus.all()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventOrderFailed, events[0].Event.Type)
	assert.Equal(t, "order.o2.failed", events[0].Key)
	assert.Contains(t, events[0].Event.Error, "bogus")
	assert.False(t, archiveCalled, "no adapter may be invoked for an unknown job type")
}

func TestHandleMessage_MalformedPayloadFailsAfterStart(t *testing.T) {
	p := mock.NewArchiveProvider("Copernicus", nil)
	bus := &fakeBus{}
	o := newTestOrchestrator(bus, p)

	raw, err := json.Marshal(map[string]any{
		"orderId":    "o3",
		"type":       "search",
		"start_date": "not-a-date",
		"end_date":   "also-not-a-date",
		"bbox":       []float64{0, 0, 1, 1},
	})
	require.NoError(t, err)

	require.NoError(t, o.HandleMessage(context.Background(), raw))

	events := bus.all()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventOrderStarted, events[0].Event.Type)
	assert.Equal(t, models.EventOrderFailed, events[1].Event.Type)
	assert.NotEmpty(t, events[1].Event.Error)
}

func TestHandleMessage_BadBBoxFailsOrder(t *testing.T) {
	bus := &fakeBus{}
	o := newTestOrchestrator(bus, mock.NewArchiveProvider("Copernicus", nil))

	raw, err := json.Marshal(map[string]any{
		"orderId":    "o4",
		"type":       "search",
		"start_date": testNow.Add(-time.Hour).Format(time.RFC3339),
		"end_date":   testNow.Format(time.RFC3339),
		"bbox":       []float64{1, 2},
	})
	require.NoError(t, err)

	require.NoError(t, o.HandleMessage(context.Background(), raw))

	failed := bus.byType(models.EventOrderFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Event.Error, "bbox")
}

func TestHandleMessage_UndecodableMessageIsPlumbingError(t *testing.T) {
	bus := &fakeBus{}
	o := newTestOrchestrator(bus, mock.NewArchiveProvider("Copernicus", nil))

	err := o.HandleMessage(context.Background(), []byte("{not json"))
	require.Error(t, err)
	assert.Empty(t, bus.all(), "no event may be published for an undecodable message")
}

func TestHandleMessage_MissingOrderIDIsPlumbingError(t *testing.T) {
	bus := &fakeBus{}
	o := newTestOrchestrator(bus, mock.NewArchiveProvider("Copernicus", nil))

	err := o.HandleMessage(context.Background(), []byte(`{"type":"search"}`))
	require.Error(t, err)
	assert.Empty(t, bus.all())
}

func TestHandleMessage_FutureWindowUsesFeasibilityOnly(t *testing.T) {
	var archiveCalls, feasibilityCalls int
	p := &mock.MockProvider{
		Name_: "Umbra",
		Caps:  models.CapArchive | models.CapFeasibility,
		ArchiveFunc: func(_ context.Context, _, _ string, _ []float64) ([]models.Feature, error) {
			archiveCalls++
			return []models.Feature{}, nil
		},
		FeasibilityFunc: func(_ context.Context, _, _ string, g models.Geometry) ([]models.Opportunity, error) {
			feasibilityCalls++
			assert.Equal(t, "Point", g.Type)
			return []models.Opportunity{{ID: "opp-1"}}, nil
		},
	}

	bus := &fakeBus{}
	o := newTestOrchestrator(bus, p)

	start, end := futureWindow()
	require.NoError(t, o.HandleMessage(context.Background(), orderMessage(t, "o5", "search", start, end)))

	assert.Equal(t, 0, archiveCalls)
	assert.Equal(t, 1, feasibilityCalls)

	updates := bus.byType(models.EventProviderUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, string(ModeFeasibility), updates[0].Event.Mode)
	assert.Equal(t, models.StatusOK, updates[0].Event.Status)
	assert.Len(t, updates[0].Event.Opportunities, 1)
}

func TestHandleMessage_MixedWindowRunsBothCapabilities(t *testing.T) {
	p := &mock.MockProvider{
		Name_: "Umbra",
		Caps:  models.CapArchive | models.CapFeasibility,
		ArchiveFunc: func(_ context.Context, _, _ string, _ []float64) ([]models.Feature, error) {
			return []models.Feature{{ID: "f1"}}, nil
		},
		FeasibilityFunc: func(_ context.Context, _, _ string, _ models.Geometry) ([]models.Opportunity, error) {
			return []models.Opportunity{{ID: "opp-1"}}, nil
		},
	}

	bus := &fakeBus{}
	o := newTestOrchestrator(bus, p)

	require.NoError(t, o.HandleMessage(context.Background(),
		orderMessage(t, "o6", "search", testNow.Add(-time.Hour), testNow.Add(time.Hour))))

	updates := bus.byType(models.EventProviderUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, string(ModeMixed), updates[0].Event.Mode)
	assert.Equal(t, models.StatusOK, updates[0].Event.Status)
	assert.Len(t, updates[0].Event.Features, 1)
	assert.Len(t, updates[0].Event.Opportunities, 1)
}

func TestHandleMessage_EmptyResultIsEmptyStatusNotError(t *testing.T) {
	bus := &fakeBus{}
	o := newTestOrchestrator(bus, mock.NewArchiveProvider("Copernicus", []models.Feature{}))

	start, end := pastWindow()
	require.NoError(t, o.HandleMessage(context.Background(), orderMessage(t, "o7", "search", start, end)))

	updates := bus.byType(models.EventProviderUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, models.StatusEmpty, updates[0].Event.Status)
	assert.Equal(t, "order.o7.provider.Copernicus.empty", updates[0].Key)

	assert.Len(t, bus.byType(models.EventOrderComplete), 1)
}

func TestHandleMessage_TaskJobChecksCapability(t *testing.T) {
	var taskCalls int
	tasker := &mock.MockProvider{
		Name_: "Umbra",
		Caps:  models.CapArchive | models.CapFeasibility | models.CapTasking,
		TaskFunc: func(_ context.Context, _, _ string, _ models.Geometry) (*models.TaskDescriptor, error) {
			taskCalls++
			return &models.TaskDescriptor{ID: "task-1"}, nil
		},
	}
	archiveOnly := mock.NewArchiveProvider("Copernicus", nil)

	bus := &fakeBus{}
	o := newTestOrchestrator(bus, tasker, archiveOnly)

	start, end := futureWindow()
	require.NoError(t, o.HandleMessage(context.Background(), orderMessage(t, "o8", "task", start, end)))

	assert.Equal(t, 1, taskCalls)

	updates := bus.byType(models.EventProviderUpdate)
	require.Len(t, updates, 1, "only tasking-capable providers may publish for a task job")
	assert.Equal(t, "Umbra", updates[0].Event.Provider)
	assert.Equal(t, "task", updates[0].Event.Mode)
	require.NotNil(t, updates[0].Event.Task)
	assert.Equal(t, "task-1", updates[0].Event.Task.ID)

	assert.Len(t, bus.byType(models.EventOrderComplete), 1)
}

func TestHandleMessage_ProviderPanicIsIsolated(t *testing.T) {
	panicking := &mock.MockProvider{
		Name_: "Umbra",
		Caps:  models.CapArchive,
		ArchiveFunc: func(_ context.Context, _, _ string, _ []float64) ([]models.Feature, error) {
			panic("boom")
		},
	}
	good := mock.NewArchiveProvider("Copernicus", []models.Feature{{ID: "f1"}})

	bus := &fakeBus{}
	o := newTestOrchestrator(bus, panicking, good)

	start, end := pastWindow()
	require.NoError(t, o.HandleMessage(context.Background(), orderMessage(t, "o9", "search", start, end)))

	updates := bus.byType(models.EventProviderUpdate)
	require.Len(t, updates, 2)

	var panicUpdate, okUpdate *published
	for i := range updates {
		switch updates[i].Event.Provider {
		case "Umbra":
			panicUpdate = &updates[i]
		case "Copernicus":
			okUpdate = &updates[i]
		}
	}
	require.NotNil(t, panicUpdate)
	require.NotNil(t, okUpdate)
	assert.Equal(t, models.StatusError, panicUpdate.Event.Status)
	assert.Contains(t, panicUpdate.Event.Error, "panic")
	assert.Equal(t, models.StatusOK, okUpdate.Event.Status)

	assert.Len(t, bus.byType(models.EventOrderComplete), 1)
	assert.Empty(t, bus.byType(models.EventOrderFailed))
}

func TestHandleMessage_ProviderPublishFailureFailsOrder(t *testing.T) {
	bus := &fakeBus{failTypes: map[string]error{
		models.EventProviderUpdate: fmt.Errorf("broker gone"),
	}}
	o := newTestOrchestrator(bus, mock.NewArchiveProvider("Copernicus", []models.Feature{{ID: "f1"}}))

	start, end := pastWindow()
	require.NoError(t, o.HandleMessage(context.Background(), orderMessage(t, "o10", "search", start, end)))

	failed := bus.byType(models.EventOrderFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Event.Error, "broker gone")
	assert.Empty(t, bus.byType(models.EventOrderComplete))
}

func TestHandleMessage_TerminalPublishFailureIsPlumbingError(t *testing.T) {
	bus := &fakeBus{failTypes: map[string]error{
		models.EventProviderUpdate: fmt.Errorf("broker gone"),
		models.EventOrderFailed:    fmt.Errorf("broker still gone"),
	}}
	o := newTestOrchestrator(bus, mock.NewArchiveProvider("Copernicus", []models.Feature{{ID: "f1"}}))

	start, end := pastWindow()
	err := o.HandleMessage(context.Background(), orderMessage(t, "o11", "search", start, end))
	require.Error(t, err)
}

func TestHandleMessage_DefaultsToSearchJobType(t *testing.T) {
	bus := &fakeBus{}
	o := newTestOrchestrator(bus, mock.NewArchiveProvider("Copernicus", []models.Feature{{ID: "f1"}}))

	start, end := pastWindow()
	raw, err := json.Marshal(map[string]any{
		"orderId":    "o12",
		"start_date": start.Format(time.RFC3339),
		"end_date":   end.Format(time.RFC3339),
		"bbox":       []float64{0, 0, 1, 1},
	})
	require.NoError(t, err)

	require.NoError(t, o.HandleMessage(context.Background(), raw))
	assert.Len(t, bus.byType(models.EventProviderUpdate), 1)
	assert.Len(t, bus.byType(models.EventOrderComplete), 1)
}
