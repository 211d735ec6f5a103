package redis

import "fmt"

// ActiveSessionKey returns the key for the live state of a tracking session (hash)
// Pattern: sleep:active:{location}
func ActiveSessionKey(location string) string {
	return fmt.Sprintf("sleep:active:%s", location)
}
