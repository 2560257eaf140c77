// Package evidence implements the ordered, content-hash-keyed evidence set
// (spec.md §3, §4.2). DeriveID computes a content-derived identity, so two
// submissions that describe the same observation get one ID. The Set keys
// items by the ID they carry and does not derive or check it.
package evidence

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/aporia-systems/aporia/internal/types"
)

// TimeBucket truncates t to the given granularity, matching the
// "time_bucket(time, granularity)" term in spec.md's EvidenceID derivation:
// two observations recorded within the same bucket hash identically.
func TimeBucket(t time.Time, granularity time.Duration) int64 {
	if granularity <= 0 {
		return t.UnixNano()
	}
	return t.Truncate(granularity).UnixNano()
}

// DeriveID computes the deterministic EvidenceID for an item from
// hash(kind, claim, src, time_bucket(time, granularity)), following the
// length-prefixed encoding the teacher's integrity package uses for its
// content hashes (no delimiter collisions for freeform claim text).
func DeriveID(kind types.EvidenceKind, claim string, src types.AgentID, bucketedTimeNanos int64) types.EvidenceID {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeField(string(kind))
	writeField(claim)
	writeField(string(src))
	var tBuf [8]byte
	binary.BigEndian.PutUint64(tBuf[:], uint64(bucketedTimeNanos))
	h.Write(tBuf[:])
	return types.EvidenceID(hex.EncodeToString(h.Sum(nil)))
}
