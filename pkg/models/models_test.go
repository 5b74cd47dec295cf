package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	// Forward edges.
	assert.True(t, CanTransition(StatusPending, StatusRouting))
	assert.True(t, CanTransition(StatusRouting, StatusBuilding))
	assert.True(t, CanTransition(StatusBuilding, StatusSubmitted))
	assert.True(t, CanTransition(StatusSubmitted, StatusConfirmed))

	// failed is reachable from any non-terminal state.
	for _, from := range []OrderStatus{StatusPending, StatusRouting, StatusBuilding, StatusSubmitted} {
		assert.True(t, CanTransition(from, StatusFailed), "failed from %s", from)
	}

	// No skipping stages, no going back.
	assert.False(t, CanTransition(StatusPending, StatusBuilding))
	assert.False(t, CanTransition(StatusRouting, StatusConfirmed))
	assert.False(t, CanTransition(StatusBuilding, StatusRouting))

	// Terminal states stay terminal.
	assert.False(t, CanTransition(StatusConfirmed, StatusFailed))
	assert.False(t, CanTransition(StatusFailed, StatusPending))
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusConfirmed.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusSubmitted.Terminal())
}

func TestNewStatusUpdate(t *testing.T) {
	id := uuid.New()
	upd := NewStatusUpdate(id, StatusRouting, StatusData{Dex: VenueRaydium})

	assert.Equal(t, "status_update", upd.Event)
	assert.Equal(t, id.String(), upd.OrderID)
	assert.Equal(t, StatusRouting, upd.Status)
	assert.Equal(t, VenueRaydium, upd.Data.Dex)
	assert.Positive(t, upd.Timestamp)
}
