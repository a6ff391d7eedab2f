package types

import (
	"time"

	"github.com/google/uuid"
)

// EmissionID represents a UUIDv7 identifier of a derived event.
// String alias enables type safety while maintaining JSON string serialization.
type EmissionID string

// NewEmissionID generates a UUIDv7 emission identifier.
// Time-ordered IDs keep the journal's primary key index append-only.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewEmissionID() EmissionID {
	return EmissionID(uuid.Must(uuid.NewV7()).String())
}

// ParseEmissionID validates and converts a string to EmissionID.
func ParseEmissionID(s string) (EmissionID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return EmissionID(s), nil
}

// EmissionIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func EmissionIDTime(id EmissionID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
