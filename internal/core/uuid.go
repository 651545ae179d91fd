package core

import "github.com/google/uuid"

// NewID generates a UUIDv7 identifier (time-ordered, suitable for sort keys).
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the entropy source does; fall back to v4.
		return uuid.New().String()
	}
	return id.String()
}
