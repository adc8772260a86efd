// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest of content. All content addressing
// (commit content hashes, per-chunk hashes) uses this type.
type Digest [32]byte

// Fingerprint computes the BLAKE3 digest of content. Deterministic:
// identical input always yields an identical digest, across calls and
// across process restarts.
func Fingerprint(content []byte) Digest {
	return Digest(blake3.Sum256(content))
}

// Verify reports whether content hashes to the expected digest.
func Verify(content []byte, expected Digest) bool {
	return Fingerprint(content) == expected
}

// String returns the canonical 64-character lowercase hex form. This
// is the form stored in the catalog and carried in payload headers.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses a 64-character hex string into a Digest.
func ParseDigest(hexString string) (Digest, error) {
	var d Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return d, fmt.Errorf("parsing content digest: %w", err)
	}
	if len(decoded) != 32 {
		return d, fmt.Errorf("content digest is %d bytes, want 32", len(decoded))
	}
	copy(d[:], decoded)
	return d, nil
}
