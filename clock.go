package bivcodec

import "time"

// Clock supplies the current time to Sync-record creation. Sync.Timestamp is
// seconds since the Unix epoch, truncated to 16 bits on the wire.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock, backed by the host's wall clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the default Clock, which reads the host's wall
// clock via time.Now.
func SystemClock() Clock { return systemClock{} }
