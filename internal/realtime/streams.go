package realtime

import "strings"

// Named realtime streams.
const (
	StreamNotifications = "notifications"
)

// Events published on the notifications stream.
const (
	EventNotificationCreated = "notification.created"
	EventNotificationRead    = "notification.read"
	EventNotificationReadAll = "notification.read_all"
	EventNotificationDeleted = "notification.deleted"
)

// DefaultStreams lists the streams a client joins when it names none.
func DefaultStreams() []string {
	return []string{StreamNotifications}
}

// ParseStreams splits comma separated values into normalised stream names,
// dropping blanks and duplicates while keeping first-seen order.
func ParseStreams(values ...string) []string {
	var parts []string
	for _, value := range values {
		parts = append(parts, strings.Split(value, ",")...)
	}
	return uniqueStreams(parts)
}

func isKnownStream(stream string) bool {
	return stream == StreamNotifications
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}

func uniqueStreams(streams []string) []string {
	seen := make(map[string]struct{}, len(streams))
	var out []string
	for _, stream := range streams {
		stream = normalizeStream(stream)
		if stream == "" {
			continue
		}
		if _, dup := seen[stream]; dup {
			continue
		}
		seen[stream] = struct{}{}
		out = append(out, stream)
	}
	return out
}
