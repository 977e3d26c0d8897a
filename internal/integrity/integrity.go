// Package integrity provides tamper-evident hashing for the expansion
// ledger and the diagnostic sweep over the vocabulary tables. Hash
// functions are pure and deterministic.
package integrity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"github.com/soundscape-ai/lexicon/internal/model"
)

// Hash version prefixes. New hashes get v2 (length-prefixed encoding).
// Old hashes (no prefix) are treated as v1 (pipe-delimited) for
// backward compatibility.
const hashV2Prefix = "v2:"

// HashRecord computes the versioned SHA-256 content hash over the
// immutable canonical fields of a ledger entry: id, term, category,
// expanded_by and created_at. expansion_type is excluded because
// MarkManualRejected rewrites it on human rejection; created_at is
// truncated to microseconds, the precision a timestamptz column
// retains, so the hash survives a storage round trip.
func HashRecord(rec model.ExpansionRecord) string {
	return hashV2Prefix + computeV2Hash(rec)
}

// VerifyRecord checks a ledger entry against its stored hash. Legacy
// unprefixed hashes verify through the v1 encoding.
func VerifyRecord(rec model.ExpansionRecord) bool {
	if rec.ContentHash == "" {
		return false
	}
	if strings.HasPrefix(rec.ContentHash, hashV2Prefix) {
		return rec.ContentHash == HashRecord(rec)
	}
	return rec.ContentHash == computeV1Hash(rec)
}

// computeV1Hash produces the legacy pipe-delimited SHA-256 hex digest.
// v1 covered expansion_type and nanosecond timestamps, so manually
// rejected or storage-round-tripped legacy entries may no longer
// verify; they surface in the sweep for a human look.
func computeV1Hash(rec model.ExpansionRecord) string {
	canonical := strings.Join([]string{
		rec.ID.String(), rec.Term, string(rec.Category), string(rec.ExpansionType),
		string(rec.ExpandedBy), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// computeV2Hash produces a length-prefixed SHA-256 hex digest. Each
// field is encoded as a 4-byte big-endian length followed by the field
// bytes, so freeform term text containing pipes cannot collide.
func computeV2Hash(rec model.ExpansionRecord) string {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeField(rec.ID.String())
	writeField(rec.Term)
	writeField(string(rec.Category))
	writeField(string(rec.ExpandedBy))
	writeField(rec.CreatedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano))
	return hex.EncodeToString(h.Sum(nil))
}
