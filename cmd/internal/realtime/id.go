package realtime

import (
	"time"

	"pedex/cmd/identity/ids"
)

// NewEnvelopeID returns a ULID used as envelope id.
// ULIDs keep outbound envelopes ordered in logs.
func NewEnvelopeID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
