package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/realtime-chat/modules/api"
	"github.com/example/realtime-chat/modules/history"
	"github.com/example/realtime-chat/modules/hub"
	"github.com/example/realtime-chat/modules/roster"
	"github.com/example/realtime-chat/modules/stats"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Realtime Chat - Fiber + EventBus Pubsub ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	historyModule := history.NewModule()
	rosterModule := roster.NewModule()
	hubModule := hub.NewModule()
	statsModule := stats.NewModule()
	apiModule := api.NewModule()

	// Inject the hub module into the API module
	// (This is done manually because the hub is not exposed via ServiceContainer)
	apiModule.SetHubModule(hubModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - history: Message persistence (ServiceProviderModule)
	// - roster: Users, rooms and sessions (ServiceProviderModule + EventEmitterModule)
	// - hub: Room broadcast hub (depends on history, EventEmitterModule)
	// - stats: Event counters (EventConsumerModule + ServiceProviderModule)
	// - api: Driving adapter (Fiber HTTP/WebSocket server, depends on roster and stats)
	app.Register(historyModule)
	app.Register(rosterModule)
	app.Register(hubModule)
	app.Register(statsModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}
	dbPath := os.Getenv("CHAT_DB_PATH")
	if dbPath == "" {
		dbPath = "chat.db"
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Event Bus: NATS JetStream (internal pubsub)")
	log.Printf("  - NATS URL: %s", natsURL)
	log.Printf("  - Database: SQLite (%s)", dbPath)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                 - Health check")
	log.Println("  POST   /user                   - Register an account")
	log.Println("  GET    /user/:id               - Get user details")
	log.Println("  DELETE /user/:id               - Delete own account (Bearer token)")
	log.Println("  POST   /login                  - Authenticate, returns a token")
	log.Println("  GET    /room                   - List all rooms")
	log.Println("  POST   /room                   - Create a new room")
	log.Println("  DELETE /room/:id               - Delete a room (Bearer token)")
	log.Println("  PATCH  /room/:id/name?val=     - Rename a room (Bearer token)")
	log.Println("  GET    /ws/:room_id/messages   - Get message history")
	log.Println("  GET    /api/v1/stats           - Event counters snapshot")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s):", port)
	log.Println("  Connect with: ws://localhost:3000/ws/<room_id>?user_id=<id>&username=<name>")
	log.Println("  Send: {\"type\":\"message\",\"content\":\"hello\"}")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
