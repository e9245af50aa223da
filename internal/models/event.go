package models

const (
	NoticeCreated = "created"
	NoticeUpdated = "updated"
	NoticeDeleted = "deleted"
)

// NoticeEvent is published on the event bus after a notice changes.
type NoticeEvent struct {
	V        int    `msgpack:"v"`
	TS       int64  `msgpack:"ts"`
	Type     string `msgpack:"type"`
	NoticeID string `msgpack:"notice_id"`
	UserID   string `msgpack:"user_id"`
	Category string `msgpack:"category"`
}
