package task

import "github.com/google/uuid"

// IDGenerator produces fresh opaque identities.
type IDGenerator func() string

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}
