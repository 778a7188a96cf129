package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/example/realtime-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// StatsModule consumes hub and roster events and keeps per-room counters.
// Counters are advisory: they reflect events observed on the bus, not the
// hub's authoritative state.
type StatsModule struct {
	mu       sync.RWMutex
	messages map[int64]int64
	joins    map[int64]int64
	leaves   map[int64]int64
	rooms    int64
}

// Compile-time interface checks.
var _ mono.Module = (*StatsModule)(nil)
var _ mono.ServiceProviderModule = (*StatsModule)(nil)
var _ mono.EventConsumerModule = (*StatsModule)(nil)
var _ mono.HealthCheckableModule = (*StatsModule)(nil)

// NewModule creates a new StatsModule.
func NewModule() *StatsModule {
	return &StatsModule{
		messages: make(map[int64]int64),
		joins:    make(map[int64]int64),
		leaves:   make(map[int64]int64),
	}
}

// Name returns the module name.
func (m *StatsModule) Name() string {
	return "stats"
}

// Start initializes the module.
func (m *StatsModule) Start(_ context.Context) error {
	log.Println("[stats] Module started")
	return nil
}

// Stop shuts down the module.
func (m *StatsModule) Stop(_ context.Context) error {
	log.Println("[stats] Module stopped")
	return nil
}

// Health returns the health status.
func (m *StatsModule) Health(_ context.Context) mono.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"tracked_rooms": len(m.messages),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *StatsModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserJoinedV1, m.handleUserJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserLeftV1, m.handleUserLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	log.Println("[stats] Registered event consumers: MessageSent, UserJoined, UserLeft, RoomCreated")
	return nil
}

// RegisterServices registers request-reply services in the service container.
func (m *StatsModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "snapshot", json.Unmarshal, json.Marshal, m.handleSnapshot,
	); err != nil {
		return fmt.Errorf("failed to register snapshot service: %w", err)
	}

	log.Printf("[stats] Registered services: snapshot")
	return nil
}

// Event handlers

func (m *StatsModule) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[event.RoomID]++
	return nil
}

func (m *StatsModule) handleUserJoined(_ context.Context, event events.UserJoinedEvent, _ *mono.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joins[event.RoomID]++
	return nil
}

func (m *StatsModule) handleUserLeft(_ context.Context, event events.UserLeftEvent, _ *mono.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[event.RoomID]++
	return nil
}

func (m *StatsModule) handleRoomCreated(_ context.Context, _ events.RoomCreatedEvent, _ *mono.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms++
	return nil
}

// handleSnapshot handles the stats.snapshot service request.
func (m *StatsModule) handleSnapshot(_ context.Context, _ SnapshotRequest, _ *mono.Msg) (SnapshotResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resp := SnapshotResponse{
		Rooms:        make([]RoomStats, 0, len(m.messages)),
		RoomsCreated: m.rooms,
	}

	roomIDs := make(map[int64]bool)
	for id := range m.messages {
		roomIDs[id] = true
	}
	for id := range m.joins {
		roomIDs[id] = true
	}
	for id := range m.leaves {
		roomIDs[id] = true
	}

	for id := range roomIDs {
		resp.Rooms = append(resp.Rooms, RoomStats{
			RoomID:   id,
			Messages: m.messages[id],
			Joins:    m.joins[id],
			Leaves:   m.leaves[id],
		})
	}

	return resp, nil
}
