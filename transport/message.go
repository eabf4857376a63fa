/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package transport

// Message types carried in a frame header's "type" field (spec §4.3.2).
const (
	msgHello    = "hello"
	msgSession  = "session"
	msgMeta     = "meta"
	msgAccepted = "accepted"
	msgRejected = "rejected"
	msgData     = "data"
	msgDone     = "done"
)

// header is the single envelope shape for every frame header. Unused
// fields for a given message type are omitted on the wire.
type header struct {
	Type string `json:"type"`

	// hello
	PublicKey string `json:"publicKey,omitempty"`

	// hello, meta, accepted, rejected
	TransferID string `json:"transferId,omitempty"`

	// session
	EncryptedKey string `json:"encryptedKey,omitempty"`
	IV           string `json:"iv,omitempty"`

	// meta
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
	Hash string `json:"hash,omitempty"`

	// data
	Index     uint32 `json:"index,omitempty"`
	AuthTag   string `json:"authTag,omitempty"`
	ChunkSize int    `json:"chunkSize,omitempty"`
}
