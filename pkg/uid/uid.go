package uid

import "github.com/google/uuid"

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// Short returns the first eight hex digits of id, for log lines.
func Short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
