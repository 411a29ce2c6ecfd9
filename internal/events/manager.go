package events

import (
	"time"

	"github.com/rs/zerolog"
)

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus for subscribers.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Emit publishes an event to the bus and logs it
func (m *Manager) Emit(eventType EventType, portfolioID, module string, data map[string]interface{}) {
	event := Event{
		Type:        eventType,
		PortfolioID: portfolioID,
		Timestamp:   time.Now().UTC(),
		Module:      module,
		Data:        data,
	}

	m.bus.Publish(event)

	m.log.Debug().
		Str("event_type", string(eventType)).
		Str("portfolio_id", portfolioID).
		Str("module", module).
		Msg("Event emitted")
}

// EmitError emits an error event
func (m *Manager) EmitError(portfolioID, module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(ErrorOccurred, portfolioID, module, data)
}
