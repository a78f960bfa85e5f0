package domain

// ChangeType is the kind of row change reported by the change feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is one notification of the data service change feed.
// New is set for INSERT and UPDATE, Old for DELETE (and optionally UPDATE).
type ChangeEvent struct {
	Type ChangeType `json:"eventType"`
	New  *Bookmark  `json:"new,omitempty"`
	Old  *Bookmark  `json:"old,omitempty"`
}

// Record returns the row the event is about: New for inserts and
// updates, Old for deletes. It returns nil when the payload is missing.
func (e ChangeEvent) Record() *Bookmark {
	if e.Type == ChangeDelete {
		return e.Old
	}
	return e.New
}

// OwnerID returns the user id of the changed row, or "" when unknown.
func (e ChangeEvent) OwnerID() string {
	if r := e.Record(); r != nil {
		return r.UserID
	}
	return ""
}
