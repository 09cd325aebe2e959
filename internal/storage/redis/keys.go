package redis

import "fmt"

// snapshotKey returns the Redis key holding the JSON snapshot payload
func snapshotKey(prefix string) string {
	return fmt.Sprintf("%s:snapshot", prefix)
}

// snapshotMetaKey returns the Redis key for the HASH describing the snapshot
func snapshotMetaKey(prefix string) string {
	return fmt.Sprintf("%s:snapshot:meta", prefix)
}
