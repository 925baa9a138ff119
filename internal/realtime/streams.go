package realtime

// Named realtime streams.
const (
	// StreamNotifications carries per-user notification events to their owner.
	StreamNotifications = "notifications"
	// StreamAnnouncements carries global notification lifecycle events to every subscriber.
	// Payloads hold the notification id only; clients re-fetch their filtered feed.
	StreamAnnouncements = "announcements"
)

// Event names published on the realtime streams.
const (
	EventNotificationCreated       = "notification.created"
	EventNotificationsRead         = "notification.read_all"
	EventGlobalNotificationCreated = "global_notification.created"
	EventGlobalNotificationUpdated = "global_notification.updated"
	EventGlobalNotificationDeleted = "global_notification.deleted"
)

// DefaultStreams lists the streams a client joins when it does not ask for any.
func DefaultStreams() []string {
	return []string{StreamNotifications, StreamAnnouncements}
}

// Broadcaster delivers realtime messages. Hub delivers to local sockets;
// RedisRelay fans out across every instance sharing a Redis channel.
type Broadcaster interface {
	BroadcastToUser(stream, userID string, message Message)
	BroadcastStream(stream string, message Message)
}
