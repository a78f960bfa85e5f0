package redis

import "fmt"

const (
	// KeyPrefixBookmark is the prefix for bookmark row keys
	KeyPrefixBookmark = "nexmark:bookmark:"
	// KeyPrefixUser is the prefix for per-user keys
	KeyPrefixUser = "nexmark:user:"
	// KeyPrefixChanges is the prefix for per-user change feed channels
	KeyPrefixChanges = "nexmark:changes:"
)

// BookmarkKey returns the Redis key holding a bookmark row
func BookmarkKey(id string) string {
	return KeyPrefixBookmark + id
}

// UserBookmarksKey returns the sorted set of a user's bookmark IDs,
// scored by created_at in microseconds
func UserBookmarksKey(userID string) string {
	return KeyPrefixUser + userID + ":bookmarks"
}

// ChangesChannel returns the pub/sub channel carrying a user's change feed
func ChangesChannel(userID string) string {
	return KeyPrefixChanges + userID
}

// ExtractUserID extracts the user ID from a change feed channel name
func ExtractUserID(channel string) (string, error) {
	if len(channel) <= len(KeyPrefixChanges) || channel[:len(KeyPrefixChanges)] != KeyPrefixChanges {
		return "", fmt.Errorf("invalid changes channel: %s", channel)
	}
	return channel[len(KeyPrefixChanges):], nil
}
