package hub

import (
	"context"
	"fmt"
	"log"

	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/history"
	"github.com/go-monolith/mono"
)

// HubModule hosts the room broadcast hub.
type HubModule struct {
	hub              *Hub
	eventBus         mono.EventBus
	historyContainer mono.ServiceContainer
}

// Compile-time interface checks.
var _ mono.Module = (*HubModule)(nil)
var _ mono.DependentModule = (*HubModule)(nil)
var _ mono.EventBusAwareModule = (*HubModule)(nil)
var _ mono.EventEmitterModule = (*HubModule)(nil)
var _ mono.HealthCheckableModule = (*HubModule)(nil)

// NewModule creates a new HubModule.
func NewModule() *HubModule {
	return &HubModule{}
}

// Name returns the module name.
func (m *HubModule) Name() string {
	return "hub"
}

// Dependencies returns the list of module dependencies.
func (m *HubModule) Dependencies() []string {
	return []string{"history"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *HubModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "history" {
		m.historyContainer = container
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *HubModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *HubModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
	}
}

// Start builds the hub on top of the history service.
func (m *HubModule) Start(_ context.Context) error {
	if m.historyContainer == nil {
		return fmt.Errorf("history dependency not set")
	}

	m.hub = NewHub(history.NewHistoryAdapter(m.historyContainer))
	m.hub.SetEventBus(m.eventBus)

	log.Println("[hub] Module started")
	return nil
}

// Stop closes every live connection.
func (m *HubModule) Stop(_ context.Context) error {
	if m.hub != nil {
		m.hub.CloseAll()
	}
	log.Println("[hub] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *HubModule) Health(_ context.Context) mono.HealthStatus {
	if m.hub == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "hub not initialized",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms":       m.hub.RoomCount(),
			"connections": m.hub.ConnectionCount(),
		},
	}
}

// Hub returns the broadcast hub. Valid after Start.
func (m *HubModule) Hub() *Hub {
	return m.hub
}
