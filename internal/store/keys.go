package store

import (
	"strconv"
	"time"
)

const (
	keySettings      = "settings:plugin"
	prefixSyncRun    = "syncrun:"
	maxSyncRunRecord = 50
)

// syncRunKey orders runs by start time. Zero-padded nanoseconds keep
// lexical and chronological order identical.
func syncRunKey(startedAt time.Time) []byte {
	ns := strconv.FormatInt(startedAt.UnixNano(), 10)
	for len(ns) < 20 {
		ns = "0" + ns
	}
	return []byte(prefixSyncRun + ns)
}
