package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

var entrySeq atomic.Uint64

// NewEntryID returns a process-unique identifier for a dynamic card entry
// (phone, social link). The id is assigned once at creation time and is
// never derived from the entry's content, so editing a value in place keeps
// the same identity across renders and save/load cycles.
func NewEntryID(kind string) string {
	bytes := make([]byte, 6)
	_, _ = rand.Read(bytes)
	seq := entrySeq.Add(1)
	return fmt.Sprintf("%s_%d_%d_%s", kind, time.Now().UnixMilli(), seq, hex.EncodeToString(bytes))
}

// NewID returns a random identifier with an optional prefix, used for saved
// design ids and other non-entry identifiers.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
