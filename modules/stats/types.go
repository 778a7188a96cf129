package stats

// ServiceSnapshot is the snapshot service name in the module's container.
const ServiceSnapshot = "snapshot"

// SnapshotRequest is the request for a counters snapshot.
type SnapshotRequest struct{}

// RoomStats holds the counters observed for one room.
type RoomStats struct {
	RoomID   int64 `json:"room_id"`
	Messages int64 `json:"messages"`
	Joins    int64 `json:"joins"`
	Leaves   int64 `json:"leaves"`
}

// SnapshotResponse is the response containing all observed counters.
type SnapshotResponse struct {
	Rooms        []RoomStats `json:"rooms"`
	RoomsCreated int64       `json:"rooms_created"`
}
