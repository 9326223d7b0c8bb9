package chat

// Topic names published on the pub/sub bridge. One topic per room and event
// kind; subscriptions are always for an exact topic string.

// ChatTopic is the topic carrying persisted chat messages for a room.
func ChatTopic(room string) string { return "chat:" + room }

// NotifyTopic is the topic carrying transient notifications for a room.
func NotifyTopic(room string) string { return "notify:" + room }
