package api

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"github.com/example/realtime-chat/modules/hub"
	"github.com/example/realtime-chat/modules/roster"
	"github.com/example/realtime-chat/modules/stats"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const defaultHistoryLimit = 50

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes() {
	m.wsHandler = websocket.New(m.handleWebSocket)

	// Health check
	m.app.Get("/health", m.healthHandler)

	// Users and sessions
	m.app.Post("/user", m.createUser)
	m.app.Get("/user/:id", m.getUser)
	m.app.Delete("/user/:id", AuthMiddleware(m.rosterAdapter), m.deleteUser)
	m.app.Post("/login", m.login)

	// Rooms
	m.app.Get("/room", m.listRooms)
	m.app.Post("/room", m.createRoom)
	m.app.Delete("/room/:id", AuthMiddleware(m.rosterAdapter), m.deleteRoom)
	m.app.Patch("/room/:id/name", AuthMiddleware(m.rosterAdapter), m.renameRoom)

	// Counters
	m.app.Get("/api/v1/stats", m.getStats)

	// The history route must be registered before the upgrade route so
	// GET /ws/:room_id/messages is not swallowed by the :room_id param.
	m.app.Get("/ws/:room_id/messages", m.getHistory)
	m.app.Get("/ws/:room_id", m.upgradeWebSocket)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":      "api",
			"connections": m.hubModule.Hub().ConnectionCount(),
		},
	})
}

// rosterError maps a roster service error to an HTTP response. Errors
// cross the service boundary as strings, so matching is by substring.
func rosterError(c *fiber.Ctx, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Detail: "not found"})
	case strings.Contains(msg, "already taken"):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Detail: "already exists"})
	case strings.Contains(msg, "invalid password"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid credentials"})
	case strings.Contains(msg, "cannot be empty"),
		strings.Contains(msg, "invalid email"),
		strings.Contains(msg, "password must be"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "validation failed"})
	default:
		log.Printf("[api] Unexpected roster error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Detail: "internal server error"})
	}
}

// createUser handles POST /user.
func (m *APIModule) createUser(c *fiber.Ctx) error {
	var body CreateUserBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid request body"})
	}

	user, err := m.rosterAdapter.CreateUser(c.UserContext(), body.Username, body.Email, body.Password)
	if err != nil {
		return rosterError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
}

// getUser handles GET /user/:id.
func (m *APIModule) getUser(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid user id"})
	}

	user, err := m.rosterAdapter.GetUser(c.UserContext(), id)
	if err != nil {
		return rosterError(c, err)
	}

	return c.JSON(UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
}

// deleteUser handles DELETE /user/:id. A user may only delete itself.
func (m *APIModule) deleteUser(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid user id"})
	}

	claims, ok := c.Locals(UserContextKey).(*roster.Claims)
	if !ok || claims.UserID != id {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{Detail: "cannot delete another user"})
	}

	if err := m.rosterAdapter.DeleteUser(c.UserContext(), id); err != nil {
		return rosterError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// login handles POST /login.
func (m *APIModule) login(c *fiber.Ctx) error {
	var body LoginBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid request body"})
	}

	resp, err := m.rosterAdapter.Login(c.UserContext(), body.Username, body.Password)
	if err != nil {
		return rosterError(c, err)
	}

	return c.JSON(resp)
}

// listRooms handles GET /room.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	rooms, err := m.rosterAdapter.ListRooms(c.UserContext())
	if err != nil {
		return rosterError(c, err)
	}

	response := RoomListResponse{
		Rooms: make([]RoomResponse, 0, len(rooms)),
	}
	for _, room := range rooms {
		response.Rooms = append(response.Rooms, RoomResponse{
			ID:          room.ID,
			Name:        room.Name,
			Description: room.Description,
			CreatorID:   room.CreatorID,
			Members:     len(m.hubModule.Hub().Members(room.ID)),
		})
	}
	return c.JSON(response)
}

// createRoom handles POST /room.
func (m *APIModule) createRoom(c *fiber.Ctx) error {
	var body CreateRoomBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid request body"})
	}

	room, err := m.rosterAdapter.CreateRoom(c.UserContext(), body.Name, body.Description, body.CreatorID)
	if err != nil {
		return rosterError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(RoomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		CreatorID:   room.CreatorID,
	})
}

// deleteRoom handles DELETE /room/:id.
func (m *APIModule) deleteRoom(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid room id"})
	}

	if err := m.rosterAdapter.DeleteRoom(c.UserContext(), id); err != nil {
		return rosterError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// renameRoom handles PATCH /room/:id/name?val=<new name>.
func (m *APIModule) renameRoom(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid room id"})
	}

	name := strings.TrimSpace(c.Query("val"))
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "room name cannot be empty"})
	}

	if err := m.rosterAdapter.RenameRoom(c.UserContext(), id, name); err != nil {
		return rosterError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// getStats handles GET /api/v1/stats.
func (m *APIModule) getStats(c *fiber.Ctx) error {
	req := stats.SnapshotRequest{}
	var resp stats.SnapshotResponse
	if err := helper.CallRequestReplyService(
		c.UserContext(),
		m.statsContainer,
		stats.ServiceSnapshot,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		log.Printf("[api] Failed to fetch stats snapshot: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Detail: "internal server error"})
	}
	return c.JSON(resp)
}

// getHistory handles GET /ws/:room_id/messages?max=<n>.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	roomID, err := strconv.ParseInt(c.Params("room_id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid room id"})
	}

	max := defaultHistoryLimit
	if v := c.Query("max"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "max must be a positive integer"})
		}
		max = parsed
	}

	entries, err := m.hubModule.Hub().ListHistory(c.UserContext(), roomID, max)
	if err != nil {
		log.Printf("[api] Failed to list history for room %d: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Detail: "internal server error"})
	}

	response := HistoryResponse{
		RoomID:   roomID,
		Messages: make([]json.RawMessage, 0, len(entries)),
		Total:    len(entries),
	}
	for _, entry := range entries {
		response.Messages = append(response.Messages, json.RawMessage(entry.Payload))
	}
	return c.JSON(response)
}

// upgradeWebSocket handles GET /ws/:room_id. Identity is validated
// before the upgrade so a bad request fails as plain HTTP.
func (m *APIModule) upgradeWebSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	roomID, err := strconv.ParseInt(c.Params("room_id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid room id"})
	}

	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "invalid user id"})
	}

	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Detail: "username is required"})
	}

	c.Locals("room_id", roomID)
	c.Locals("user_id", userID)
	c.Locals("username", username)
	return m.wsHandler(c)
}

// handleWebSocket runs one member connection from upgrade to teardown.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	roomID, _ := c.Locals("room_id").(int64)
	userID, _ := c.Locals("user_id").(int64)
	username, _ := c.Locals("username").(string)

	h := m.hubModule.Hub()
	ctx := context.Background()

	conn := hub.NewConnection(c, roomID, userID, username)
	h.Connect(ctx, conn)
	defer h.Disconnect(conn)

	log.Printf("[api] WebSocket client connected: %s (%s) room %d", conn.ID, username, roomID)

	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Client %s closed connection", conn.ID)
			} else {
				log.Printf("[api] Read error from %s: %v", conn.ID, err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.Receive(ctx, conn, data)
	}
}
