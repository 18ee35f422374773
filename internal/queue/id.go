package queue

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

const idTimeLayout = "20060102T150405.000Z"

// NewEntryID generates an opaque entry identifier: a UTC timestamp plus a
// random hex suffix, so ids sort loosely by creation time while staying
// unique even for files enqueued in the same millisecond.
func NewEntryID() string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// entropy exhaustion: degrade to the clock
		nano := time.Now().UnixNano()
		for i := range suffix {
			suffix[i] = byte(nano >> (8 * i))
		}
	}
	return time.Now().UTC().Format(idTimeLayout) + "-" + hex.EncodeToString(suffix)
}
