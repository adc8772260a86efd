// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

// Split divides content into ordered chunks of at most limit bytes.
// Boundaries are fixed-size, not content-defined: chunk idx i covers
// bytes [i*limit, min((i+1)*limit, len(content))). The substrate's
// per-post size cap is a hard transport constraint, and fixed
// boundaries keep chunk idx → byte range arithmetic trivial for the
// read path.
//
// Empty content yields exactly one empty chunk, so every commit owns
// at least one post and the commit id (= first chunk's post id) is
// always defined.
//
// The returned slices alias content; the caller must not modify the
// buffer while the chunks are in use. Panics if limit <= 0: the limit
// comes from validated configuration, and a non-positive value is a
// programming error, not an input condition.
func Split(content []byte, limit int) [][]byte {
	if limit <= 0 {
		panic("chunk: Split called with non-positive limit")
	}

	if len(content) == 0 {
		return [][]byte{{}}
	}

	chunks := make([][]byte, 0, (len(content)+limit-1)/limit)
	for offset := 0; offset < len(content); offset += limit {
		end := offset + limit
		if end > len(content) {
			end = len(content)
		}
		chunks = append(chunks, content[offset:end])
	}
	return chunks
}

// Join concatenates chunks in order, reversing Split:
// Join(Split(x, limit)) == x for all x and all limit > 0.
func Join(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	joined := make([]byte, 0, total)
	for _, c := range chunks {
		joined = append(joined, c...)
	}
	return joined
}
