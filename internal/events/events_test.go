package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_MarshalRoundTrip(t *testing.T) {
	event := Event{
		Type:      EvaluationCompleted,
		Timestamp: time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC),
		Module:    "pipeline",
		Data: &EvaluationCompletedData{
			CompanyID:    "com-001",
			EvaluationID: "run-1",
			Grade:        "B+",
			TotalScore:   76.2,
			DiscountPct:  1.3,
			Eligible:     2,
			ForecastRan:  true,
		},
	}

	jsonData, err := json.Marshal(&event)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), "EVALUATION_COMPLETED")
	assert.Contains(t, string(jsonData), "com-001")
	assert.Contains(t, string(jsonData), "76.2")

	var decoded Event
	require.NoError(t, json.Unmarshal(jsonData, &decoded))
	assert.Equal(t, EvaluationCompleted, decoded.Type)
	assert.Equal(t, "pipeline", decoded.Module)

	data, ok := decoded.Data.(*EvaluationCompletedData)
	require.True(t, ok, "data decodes to its typed struct")
	assert.Equal(t, "com-001", data.CompanyID)
	assert.Equal(t, "B+", data.Grade)
	assert.True(t, data.ForecastRan)
}

func TestEvent_UnmarshalBatchProgress(t *testing.T) {
	raw := `{"type":"BATCH_PROGRESS","timestamp":"2025-08-25T12:00:00Z","module":"pipeline","data":{"run_id":"batch-7","done":3,"total":10,"failed":1}}`

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))

	data, ok := decoded.Data.(*BatchProgressData)
	require.True(t, ok)
	assert.Equal(t, "batch-7", data.RunID)
	assert.Equal(t, 3, data.Done)
	assert.Equal(t, 10, data.Total)
	assert.Equal(t, 1, data.Failed)
}

func TestEvent_UnknownTypeFallsBackToGeneric(t *testing.T) {
	raw := `{"type":"SOMETHING_ELSE","timestamp":"2025-08-25T12:00:00Z","module":"ext","data":{"answer":42}}`

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))

	data, ok := decoded.Data.(*GenericEventData)
	require.True(t, ok, "unknown types decode as generic data")
	assert.Equal(t, EventType("SOMETHING_ELSE"), data.EventType())
	assert.Equal(t, 42.0, data.Data["answer"])
}

func TestErrorEventData(t *testing.T) {
	data := ErrorEventData{
		Error:   "evaluation failed",
		Context: map[string]interface{}{"company_id": "com-001"},
	}

	jsonData, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), "evaluation failed")
	assert.Contains(t, string(jsonData), "com-001")

	var unmarshaled ErrorEventData
	require.NoError(t, json.Unmarshal(jsonData, &unmarshaled))
	assert.Equal(t, data.Error, unmarshaled.Error)
}

func TestBus_PublishReachesSubscriber(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	all := bus.Subscribe("")
	defer bus.Unsubscribe(all)

	bus.Publish(Event{Type: EvaluationStarted, Module: "pipeline", Data: &EvaluationStartedData{CompanyID: "com-001"}})

	select {
	case event := <-all:
		assert.Equal(t, EvaluationStarted, event.Type)
		assert.False(t, event.Timestamp.IsZero(), "publish stamps the event")
	case <-time.After(time.Second):
		t.Fatal("expected an event on the subscriber channel")
	}
}

func TestBus_FilterLimitsDelivery(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	progressOnly := bus.Subscribe(BatchProgress)
	defer bus.Unsubscribe(progressOnly)

	bus.Publish(Event{Type: EvaluationStarted, Data: &EvaluationStartedData{CompanyID: "com-001"}})
	bus.Publish(Event{Type: BatchProgress, Data: &BatchProgressData{RunID: "batch-1", Done: 1, Total: 2}})

	select {
	case event := <-progressOnly:
		assert.Equal(t, BatchProgress, event.Type, "filtered subscriber only sees its type")
	case <-time.After(time.Second):
		t.Fatal("expected the batch progress event")
	}

	select {
	case event := <-progressOnly:
		t.Fatalf("unexpected extra event %s", event.Type)
	default:
	}
}

func TestBus_FullSubscriberDropsWithoutBlocking(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	slow := bus.Subscribe("")
	defer bus.Unsubscribe(slow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+5; i++ {
			bus.Publish(Event{Type: BatchProgress, Data: &BatchProgressData{Done: i}})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish must not block on a full subscriber")
	}

	assert.Len(t, slow, subscriberBuffer, "overflow events are dropped")
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	ch := bus.Subscribe("")
	require.Equal(t, 1, bus.SubscriberCount())

	bus.Unsubscribe(ch)
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open, "unsubscribed channels are closed")

	// A second unsubscribe is a no-op, not a double close.
	bus.Unsubscribe(ch)
}

func TestManager_EmitPublishesTypedEvent(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	ch := bus.Subscribe("")
	defer bus.Unsubscribe(ch)

	manager.Emit("pipeline", &ForecastCompletedData{CompanyID: "com-001", Horizon: 12, FinalE: 74.1})

	select {
	case event := <-ch:
		assert.Equal(t, ForecastCompleted, event.Type)
		assert.Equal(t, "pipeline", event.Module)
		data, ok := event.Data.(*ForecastCompletedData)
		require.True(t, ok)
		assert.Equal(t, 12, data.Horizon)
	case <-time.After(time.Second):
		t.Fatal("expected the emitted event")
	}
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	ch := bus.Subscribe(ErrorOccurred)
	defer bus.Unsubscribe(ch)

	manager.EmitError("pipeline", errors.New("short history"), map[string]interface{}{"company_id": "com-001"})

	select {
	case event := <-ch:
		data, ok := event.Data.(*ErrorEventData)
		require.True(t, ok)
		assert.Equal(t, "short history", data.Error)
		assert.Equal(t, "com-001", data.Context["company_id"])
	case <-time.After(time.Second):
		t.Fatal("expected the error event")
	}
}
