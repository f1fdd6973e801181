package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

// NewReference builds human-facing numbers like BK-20250301-3F9A1C07B2. The
// suffix carries 40 random bits.
func NewReference(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return prefix + "-" + at.Format("20060102") + "-" + suffix
}
