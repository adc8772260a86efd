// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package xfs

import (
	"bytes"
	"testing"
)

func TestPayloadRootRoundTrip(t *testing.T) {
	encoded, err := encodePayload(payloadHeader{Version: payloadVersion, Path: "notes/memory.txt"}, nil)
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}

	header, body, err := decodePayload(encoded)
	if err != nil {
		t.Fatalf("decodePayload: %v", err)
	}
	if header.Path != "notes/memory.txt" {
		t.Errorf("Path = %q, want %q", header.Path, "notes/memory.txt")
	}
	if len(body) != 0 {
		t.Errorf("root payload body = %d bytes, want 0", len(body))
	}
}

func TestPayloadCommitRoundTrip(t *testing.T) {
	content := []byte("framed content bytes")
	in := payloadHeader{
		Version: payloadVersion,
		MIME:    "text/plain",
		Size:    int64(len(content)),
		Hash:    "deadbeef",
		Codec:   "zstd",
	}

	encoded, err := encodePayload(in, content)
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}

	header, body, err := decodePayload(encoded)
	if err != nil {
		t.Fatalf("decodePayload: %v", err)
	}
	if header != in {
		t.Errorf("header = %+v, want %+v", header, in)
	}
	if !bytes.Equal(body, content) {
		t.Errorf("body = %q, want %q", body, content)
	}
}

func TestPayloadDeterministic(t *testing.T) {
	header := payloadHeader{Version: payloadVersion, MIME: "text/plain", Size: 3, Hash: "ab"}
	first, err := encodePayload(header, []byte("abc"))
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	second, err := encodePayload(header, []byte("abc"))
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical header and body produced different framed bytes")
	}
}

func TestPayloadDecodeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte("XF")},
		{"wrong magic", []byte("NOPE\x00\x01x")},
		{"truncated header", append(append([]byte{}, payloadMagic...), 0xFF, 0xFF)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := decodePayload(tt.data); err == nil {
				t.Error("decodePayload succeeded, want error")
			}
		})
	}
}
