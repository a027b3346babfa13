package models_test

import (
	"testing"

	"notekeep/models"
)

// TestEventBusDeliveryOrder verifies listeners fire in registration order
func TestEventBusDeliveryOrder(t *testing.T) {
	bus := models.NewEventBus()

	var got []string
	bus.Subscribe(func(ev models.SyncEvent) { got = append(got, "first") })
	bus.Subscribe(func(ev models.SyncEvent) { got = append(got, "second") })
	bus.Subscribe(func(ev models.SyncEvent) { got = append(got, "third") })

	bus.Emit(models.SyncEvent{Kind: models.EventSyncStart})

	if len(got) != 3 || got[0] != "first" || got[1] != "second" || got[2] != "third" {
		t.Errorf("unexpected delivery order: %v", got)
	}
}

// TestEventBusPanicIsolation verifies a panicking listener doesn't starve the rest
func TestEventBusPanicIsolation(t *testing.T) {
	bus := models.NewEventBus()

	delivered := false
	bus.Subscribe(func(ev models.SyncEvent) { panic("listener bug") })
	bus.Subscribe(func(ev models.SyncEvent) { delivered = true })

	bus.Emit(models.SyncEvent{Kind: models.EventSyncComplete})

	if !delivered {
		t.Error("expected delivery to continue past a panicking listener")
	}
}

// TestEventBusUnsubscribe verifies removed listeners stop receiving events
func TestEventBusUnsubscribe(t *testing.T) {
	bus := models.NewEventBus()

	count := 0
	id := bus.Subscribe(func(ev models.SyncEvent) { count++ })

	bus.Emit(models.SyncEvent{Kind: models.EventSyncStart})
	bus.Unsubscribe(id)
	bus.Emit(models.SyncEvent{Kind: models.EventSyncStart})

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}

	// Unknown ids are a no-op
	bus.Unsubscribe(999)
}
