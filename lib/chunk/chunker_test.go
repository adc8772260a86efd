// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"bytes"
	"testing"
)

func TestSplitSizes(t *testing.T) {
	tests := []struct {
		name      string
		content   int // content length in bytes
		limit     int
		wantSizes []int
	}{
		{"under limit", 100, 280, []int{100}},
		{"exactly limit", 280, 280, []int{280}},
		{"post cap scenario", 700, 280, []int{280, 280, 140}},
		{"limit one", 3, 1, []int{1, 1, 1}},
		{"even split", 560, 280, []int{280, 280}},
		{"one over", 281, 280, []int{280, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := make([]byte, tt.content)
			for i := range content {
				content[i] = byte(i)
			}

			chunks := Split(content, tt.limit)
			if len(chunks) != len(tt.wantSizes) {
				t.Fatalf("Split produced %d chunks, want %d", len(chunks), len(tt.wantSizes))
			}
			for i, want := range tt.wantSizes {
				if len(chunks[i]) != want {
					t.Errorf("chunk %d has %d bytes, want %d", i, len(chunks[i]), want)
				}
			}
		})
	}
}

func TestSplitEmptyContent(t *testing.T) {
	chunks := Split(nil, 280)
	if len(chunks) != 1 {
		t.Fatalf("Split(nil) produced %d chunks, want exactly 1", len(chunks))
	}
	if len(chunks[0]) != 0 {
		t.Errorf("empty content chunk has %d bytes, want 0", len(chunks[0]))
	}
}

func TestSplitNonPositiveLimitPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Split with limit 0 did not panic")
		}
	}()
	Split([]byte("x"), 0)
}

func TestJoinSplitRoundTrip(t *testing.T) {
	contents := [][]byte{
		nil,
		{},
		[]byte("x"),
		[]byte("Hello, world!"),
		bytes.Repeat([]byte("abc"), 1000),
		make([]byte, 4096),
	}
	limits := []int{1, 2, 7, 280, 4096, 100000}

	for _, content := range contents {
		for _, limit := range limits {
			joined := Join(Split(content, limit))
			if !bytes.Equal(joined, content) {
				t.Errorf("round trip failed for %d bytes at limit %d", len(content), limit)
			}
		}
	}
}

func TestSplitNeverReorders(t *testing.T) {
	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i * 31)
	}

	offset := 0
	for _, c := range Split(content, 64) {
		if !bytes.Equal(c, content[offset:offset+len(c)]) {
			t.Fatalf("chunk at offset %d does not match source bytes", offset)
		}
		offset += len(c)
	}
	if offset != len(content) {
		t.Errorf("chunks cover %d bytes, want %d", offset, len(content))
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	content := []byte("deterministic test")
	first := Fingerprint(content)
	second := Fingerprint(content)
	if first != second {
		t.Error("Fingerprint of identical input differs across calls")
	}
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	if Fingerprint([]byte("a")) == Fingerprint([]byte("b")) {
		t.Error("different content produced the same digest")
	}
}

func TestVerify(t *testing.T) {
	content := []byte("test content")
	d := Fingerprint(content)

	if !Verify(content, d) {
		t.Error("Verify rejected matching content")
	}
	if Verify([]byte("different content"), d) {
		t.Error("Verify accepted non-matching content")
	}
}

func TestDigestStringParseRoundTrip(t *testing.T) {
	d := Fingerprint([]byte("round trip"))

	s := d.String()
	if len(s) != 64 {
		t.Fatalf("digest string has %d chars, want 64", len(s))
	}

	parsed, err := ParseDigest(s)
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if parsed != d {
		t.Error("parsed digest does not equal original")
	}
}

func TestParseDigestRejectsBadInput(t *testing.T) {
	if _, err := ParseDigest("zz"); err == nil {
		t.Error("ParseDigest accepted non-hex input")
	}
	if _, err := ParseDigest("abcd"); err == nil {
		t.Error("ParseDigest accepted short input")
	}
}
