package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the chat room server.
//
// Naming convention: namespace_subsystem_name
// - namespace: chatroom (application-level grouping)
// - subsystem: session, room, pool (feature-level grouping)
// - name: specific metric (connections_active, messages_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, members)
// - Counter: Cumulative events (chats relayed, requests rejected)

var (
	// ActiveConnections tracks the current number of accepted TLS connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatroom",
		Subsystem: "session",
		Name:      "connections_active",
		Help:      "Current number of active client connections",
	})

	// LoggedInClients tracks the current number of authenticated sessions.
	LoggedInClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatroom",
		Subsystem: "session",
		Name:      "clients_logged_in",
		Help:      "Current number of logged-in clients",
	})

	// ActiveRooms tracks the current number of live rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatroom",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of live chat rooms",
	})

	// RoomMembers tracks the number of members in each room.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chatroom",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of members in each room",
	}, []string{"room"})

	// ChatMessages counts chat messages relayed through rooms.
	ChatMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatroom",
		Subsystem: "room",
		Name:      "messages_total",
		Help:      "Total chat messages appended and fanned out",
	})

	// RejectedRequests counts protocol-level rejects by code name.
	RejectedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatroom",
		Subsystem: "session",
		Name:      "rejects_total",
		Help:      "Total requests refused with a REJECT frame",
	}, []string{"code"})

	// PoolQueueDepth tracks the number of work items waiting for a worker.
	PoolQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatroom",
		Subsystem: "pool",
		Name:      "queue_depth",
		Help:      "Work items waiting in the submission queue",
	})
)

func IncConnection() {
	ActiveConnections.Inc()
}

func DecConnection() {
	ActiveConnections.Dec()
}
