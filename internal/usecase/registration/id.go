package registration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	immediatePrefix = "immediate"
	scheduledPrefix = "job"
)

// newID returns "<prefix>-<unix millis>-<uuid>".
func newID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), uuid.NewString())
}
