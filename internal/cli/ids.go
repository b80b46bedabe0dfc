package cli

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces version ids for new versions.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator produces RFC 9562 UUIDv7 ids. They sort by creation
// time, so the version_id winner rule prefers later commits.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// timestampLayout is fixed width so timestamps compare lexically in time
// order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// utcNow returns the current time as an UpdatedAt value.
func utcNow() string {
	return time.Now().UTC().Format(timestampLayout)
}
