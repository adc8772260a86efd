// Copyright 2026 The XFiles Authors
// SPDX-License-Identifier: Apache-2.0

package xfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cryptopatrick/xfiles/lib/codec"
)

// Post payloads are self-describing so that content remains
// reconstructable from the remote reply chain alone, without the local
// catalog: a root post carries the file's path, and a commit's framed
// content carries the metadata needed to verify and decode it.
//
// Frame layout: 4-byte magic, big-endian uint16 header length, CBOR
// header, body. The framed bytes are what gets split into chunks, so
// only chunk 0 of a commit starts with the magic.

// payloadMagic opens every framed payload. The trailing byte is the
// frame format version.
var payloadMagic = []byte{'X', 'F', 'S', 0x01}

// payloadVersion is the header schema version, independent of the
// frame format byte in the magic.
const payloadVersion = 1

// maxHeaderSize bounds the CBOR header; the length prefix is a uint16
// but real headers are well under 200 bytes.
const maxHeaderSize = 1 << 12

// payloadHeader is the CBOR-encoded metadata at the front of a framed
// payload. Root posts set Path and nothing else; commit payloads set
// everything but Path.
type payloadHeader struct {
	// Version is the header schema version.
	Version uint8 `cbor:"v"`

	// Path marks a root post: the file path this post creates.
	Path string `cbor:"path,omitempty"`

	// MIME is the content type of the commit's content.
	MIME string `cbor:"mime,omitempty"`

	// Size is the uncompressed content length in bytes.
	Size int64 `cbor:"size,omitempty"`

	// Hash is the hex digest of the uncompressed content.
	Hash string `cbor:"hash,omitempty"`

	// Codec names the body compression ("zstd") or is empty for raw
	// bytes. The hash always covers the uncompressed content.
	Codec string `cbor:"codec,omitempty"`
}

// encodePayload frames a header and body into a single byte sequence.
func encodePayload(header payloadHeader, body []byte) ([]byte, error) {
	headerBytes, err := codec.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("xfs: encode payload header: %w", err)
	}
	if len(headerBytes) > maxHeaderSize {
		return nil, fmt.Errorf("xfs: payload header %d bytes exceeds %d", len(headerBytes), maxHeaderSize)
	}

	framed := make([]byte, 0, len(payloadMagic)+2+len(headerBytes)+len(body))
	framed = append(framed, payloadMagic...)
	framed = binary.BigEndian.AppendUint16(framed, uint16(len(headerBytes)))
	framed = append(framed, headerBytes...)
	framed = append(framed, body...)
	return framed, nil
}

// decodePayload splits a framed payload back into header and body. The
// returned body aliases data.
func decodePayload(data []byte) (payloadHeader, []byte, error) {
	var header payloadHeader

	prefixLen := len(payloadMagic) + 2
	if len(data) < prefixLen {
		return header, nil, fmt.Errorf("xfs: payload truncated at %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(payloadMagic)], payloadMagic) {
		return header, nil, fmt.Errorf("xfs: payload missing frame magic")
	}

	headerLen := int(binary.BigEndian.Uint16(data[len(payloadMagic):prefixLen]))
	if headerLen > maxHeaderSize {
		return header, nil, fmt.Errorf("xfs: payload header length %d exceeds %d", headerLen, maxHeaderSize)
	}
	if len(data) < prefixLen+headerLen {
		return header, nil, fmt.Errorf("xfs: payload truncated inside header")
	}

	if err := codec.Unmarshal(data[prefixLen:prefixLen+headerLen], &header); err != nil {
		return header, nil, fmt.Errorf("xfs: decode payload header: %w", err)
	}
	if header.Version != payloadVersion {
		return header, nil, fmt.Errorf("xfs: unsupported payload version %d", header.Version)
	}
	return header, data[prefixLen+headerLen:], nil
}
