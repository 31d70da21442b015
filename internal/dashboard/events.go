package dashboard

import "time"

// Event is the wrapper for everything pushed to WebSocket clients, the
// same envelope shape as the teacher's DashboardEvent.
type Event struct {
	Type      string      `json:"type"` // "snapshot" or "market_snapshot"
	Timestamp time.Time   `json:"timestamp"`
	Commodity string      `json:"commodity,omitempty"`
	Data      interface{} `json:"data"`
}

// NewSnapshotEvent wraps a full dashboard snapshot.
func NewSnapshotEvent(snap Snapshot) Event {
	return Event{Type: "snapshot", Timestamp: snap.Timestamp, Data: snap}
}

// NewMarketSnapshotEvent wraps one commodity's just-published market
// snapshot (House.SetDashboardPublisher's delivery path).
func NewMarketSnapshotEvent(info CommodityStatus) Event {
	return Event{Type: "market_snapshot", Timestamp: time.Now(), Commodity: info.Commodity, Data: info}
}
