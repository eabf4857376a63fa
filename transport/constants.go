/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package transport

import "time"

// ChunkSize is the block size the sender reads the source file in and
// seals with AES-256-GCM before framing (spec §4.3.4).
const ChunkSize = 64 * 1024

// frameLengthFieldSize is the width of each of the two big-endian length
// fields that open every frame.
const frameLengthFieldSize = 4

// maxHeaderSize bounds the JSON header so a malicious or broken peer can't
// force an unbounded allocation while we wait for the rest of the frame.
const maxHeaderSize = 64 * 1024

// maxFrameBodySize bounds the total frame body (header + payload) to one
// chunk's ciphertext plus generous header room, so a corrupt outer length
// can't make us allocate gigabytes before validating anything.
const maxFrameBodySize = ChunkSize + 4096

// dialTimeout bounds the sender's outbound TLS connect attempt (spec §5:
// "implementation-chosen timeout").
const dialTimeout = 10 * time.Second
