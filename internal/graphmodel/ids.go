package graphmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// NodeID computes the stable 32-character hashed id for a node from its
// environment, repository id, path and kind. Re-running the builder on
// unchanged input must reproduce the same id (invariant §3.3.1), so the
// hash is a pure function of these four fields and nothing else (no
// timestamps, no counters).
func NodeID(environment, repoID, path, kind string) string {
	sum := sha256.Sum256([]byte(environment + "\x00" + repoID + "\x00" + path + "\x00" + kind))
	return hex.EncodeToString(sum[:])[:32]
}

// EdgeKey returns a deterministic key for deduplicating an edge of a given
// kind between two node ids, used by in-memory Graph assembly and by the
// store layer's MERGE-based upsert.
func EdgeKey(fromID, toID, kind string) string {
	return fmt.Sprintf("%s->%s:%s", fromID, toID, kind)
}
