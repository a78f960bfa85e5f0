package domain

// MessageType tags a cross-tab broadcast message.
type MessageType string

const (
	MessageUpsert MessageType = "UPSERT"
	MessageDelete MessageType = "DELETE"
)

// Message is the payload exchanged on the cross-tab broadcast channel.
//
//	{type: UPSERT, bookmark}
//	{type: DELETE, bookmarkId}
type Message struct {
	Type       MessageType `json:"type"`
	Bookmark   *Bookmark   `json:"bookmark,omitempty"`
	BookmarkID string      `json:"bookmarkId,omitempty"`
}

// UpsertMessage builds an UPSERT message carrying a copy of b.
func UpsertMessage(b Bookmark) Message {
	return Message{Type: MessageUpsert, Bookmark: &b}
}

// DeleteMessage builds a DELETE message for id.
func DeleteMessage(id string) Message {
	return Message{Type: MessageDelete, BookmarkID: id}
}
