package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/example/realtime-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RosterModule provides user and room management services.
type RosterModule struct {
	db       *gorm.DB
	service  *RosterService
	eventBus mono.EventBus
	dbPath   string
}

// Compile-time interface checks.
var _ mono.Module = (*RosterModule)(nil)
var _ mono.ServiceProviderModule = (*RosterModule)(nil)
var _ mono.HealthCheckableModule = (*RosterModule)(nil)
var _ mono.EventBusAwareModule = (*RosterModule)(nil)
var _ mono.EventEmitterModule = (*RosterModule)(nil)

// sqliteDSN appends a busy timeout to the database path. The history
// module writes to the same file through its own connection, so a
// concurrent writer must wait instead of failing with SQLITE_BUSY.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&_busy_timeout=5000"
	}
	return path + "?_busy_timeout=5000"
}

// NewModule creates a new RosterModule.
func NewModule() *RosterModule {
	dbPath := os.Getenv("CHAT_DB_PATH")
	if dbPath == "" {
		dbPath = "chat.db"
	}
	return &RosterModule{
		dbPath: dbPath,
	}
}

// Name returns the module name.
func (m *RosterModule) Name() string {
	return "roster"
}

// SetEventBus receives the EventBus from the framework.
func (m *RosterModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *RosterModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
	}
}

// Start initializes the database connection and runs migrations.
func (m *RosterModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(sqliteDSN(m.dbPath)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&User{}, &Room{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	repo := NewRepository(db)
	hasher := NewPasswordHasher()
	jwtManager := NewJWTManager(loadJWTConfig())

	m.service = NewRosterService(repo, hasher, jwtManager)

	log.Printf("[roster] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop shuts down the module.
func (m *RosterModule) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[roster] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *RosterModule) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dbPath,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *RosterModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "create_user", json.Unmarshal, json.Marshal, m.handleCreateUser,
	); err != nil {
		return fmt.Errorf("failed to register create_user service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get_user", json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register get_user service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "delete_user", json.Unmarshal, json.Marshal, m.handleDeleteUser,
	); err != nil {
		return fmt.Errorf("failed to register delete_user service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "login", json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "validate_token", json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate_token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "create_room", json.Unmarshal, json.Marshal, m.handleCreateRoom,
	); err != nil {
		return fmt.Errorf("failed to register create_room service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list_rooms", json.Unmarshal, json.Marshal, m.handleListRooms,
	); err != nil {
		return fmt.Errorf("failed to register list_rooms service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "delete_room", json.Unmarshal, json.Marshal, m.handleDeleteRoom,
	); err != nil {
		return fmt.Errorf("failed to register delete_room service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "rename_room", json.Unmarshal, json.Marshal, m.handleRenameRoom,
	); err != nil {
		return fmt.Errorf("failed to register rename_room service: %w", err)
	}

	log.Printf("[roster] Registered services: create_user, get_user, delete_user, login, validate_token, create_room, list_rooms, delete_room, rename_room")
	return nil
}

// handleCreateUser handles user registration.
func (m *RosterModule) handleCreateUser(ctx context.Context, req CreateUserRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.CreateUser(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(user), nil
}

// handleGetUser handles user lookups.
func (m *RosterModule) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.GetUser(ctx, req.ID)
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(user), nil
}

// handleDeleteUser handles user deletion.
func (m *RosterModule) handleDeleteUser(ctx context.Context, req DeleteUserRequest, _ *mono.Msg) (DeleteUserResponse, error) {
	if err := m.service.DeleteUser(ctx, req.ID); err != nil {
		return DeleteUserResponse{}, err
	}
	return DeleteUserResponse{Deleted: true}, nil
}

// handleLogin handles authentication.
func (m *RosterModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (LoginResponse, error) {
	user, token, err := m.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Token:    token,
	}, nil
}

// handleValidateToken handles session token validation. Validation
// failures are reported in the response, not as service errors.
func (m *RosterModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.service.ValidateToken(ctx, req.Token)
	if err != nil {
		errMsg := "invalid token"
		if errors.Is(err, ErrExpiredToken) {
			errMsg = "token expired"
		}
		return ValidateTokenResponse{
			Valid: false,
			Error: errMsg,
		}, nil
	}

	return ValidateTokenResponse{
		Valid:    true,
		UserID:   claims.UserID,
		Username: claims.Username,
	}, nil
}

// handleCreateRoom handles room creation and publishes a RoomCreated event.
func (m *RosterModule) handleCreateRoom(ctx context.Context, req CreateRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.service.CreateRoom(ctx, req.Name, req.Description, req.CreatorID)
	if err != nil {
		return RoomResponse{}, err
	}

	if m.eventBus != nil {
		event := events.RoomCreatedEvent{
			RoomID:    room.ID,
			RoomName:  room.Name,
			CreatorID: room.CreatorID,
			Timestamp: time.Now().UTC(),
		}
		if err := events.RoomCreatedV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[roster] Failed to publish RoomCreated event: %v", err)
		}
	}

	return toRoomResponse(room), nil
}

// handleListRooms handles room listing.
func (m *RosterModule) handleListRooms(ctx context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms, err := m.service.ListRooms(ctx)
	if err != nil {
		return ListRoomsResponse{}, err
	}

	response := ListRoomsResponse{
		Rooms: make([]RoomResponse, 0, len(rooms)),
		Total: len(rooms),
	}
	for _, room := range rooms {
		response.Rooms = append(response.Rooms, toRoomResponse(room))
	}
	return response, nil
}

// handleDeleteRoom handles room deletion.
func (m *RosterModule) handleDeleteRoom(ctx context.Context, req DeleteRoomRequest, _ *mono.Msg) (DeleteRoomResponse, error) {
	if err := m.service.DeleteRoom(ctx, req.ID); err != nil {
		return DeleteRoomResponse{}, err
	}
	return DeleteRoomResponse{Deleted: true}, nil
}

// handleRenameRoom handles room renaming.
func (m *RosterModule) handleRenameRoom(ctx context.Context, req RenameRoomRequest, _ *mono.Msg) (RenameRoomResponse, error) {
	if err := m.service.RenameRoom(ctx, req.ID, req.Name); err != nil {
		return RenameRoomResponse{}, err
	}
	return RenameRoomResponse{Renamed: true}, nil
}

// toUserResponse converts a User entity to a UserResponse.
func toUserResponse(user *User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

// toRoomResponse converts a Room entity to a RoomResponse.
func toRoomResponse(room *Room) RoomResponse {
	return RoomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		CreatorID:   room.CreatorID,
		CreatedAt:   room.CreatedAt,
	}
}

// loadJWTConfig loads JWT configuration from environment variables.
func loadJWTConfig() JWTConfig {
	config := DefaultJWTConfig()

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.SecretKey = secret
	}
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		config.Issuer = issuer
	}

	return config
}
