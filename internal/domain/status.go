package domain

// Status is the bounded outcome of the last user mutation, as rendered
// in the dashboard banner. Data service errors are always collapsed to
// one of these values before they reach a client.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusCreated      Status = "created"
	StatusDeleted      Status = "deleted"
	StatusInvalidInput Status = "invalid-input"
	StatusInvalidURL   Status = "invalid-url"
	StatusError        Status = "error"
)

// Text returns the banner text for s, or "" for StatusIdle.
func (s Status) Text() string {
	switch s {
	case StatusCreated:
		return "Bookmark added successfully."
	case StatusDeleted:
		return "Bookmark deleted successfully."
	case StatusInvalidInput:
		return "Title and URL are both required."
	case StatusInvalidURL:
		return "URL must start with http:// or https://"
	case StatusError:
		return "Request failed. Please try again."
	default:
		return ""
	}
}

// Variant returns the banner style for s.
func (s Status) Variant() string {
	switch s {
	case StatusCreated, StatusDeleted:
		return "success"
	case StatusInvalidInput, StatusInvalidURL:
		return "warning"
	case StatusError:
		return "danger"
	default:
		return ""
	}
}
