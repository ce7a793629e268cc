package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// JobStatusKey holds the status response body of one job.
func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

// CurrentJobKey holds the ID of the job occupying the slot.
func CurrentJobKey() string {
	return "job:current"
}

// SlotKey holds the full view of the current job, read back on startup
// when no database is configured.
func SlotKey() string {
	return "job:slot"
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
