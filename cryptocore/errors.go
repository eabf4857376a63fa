/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package cryptocore

import "errors"

// ErrAuthFailure is returned by OpenChunk when the AEAD tag does not verify
// — any bit flip in key, iv, ciphertext, or tag surfaces here.
var ErrAuthFailure = errors.New("cryptocore: authentication failed")

// ErrBadKeySize is returned when a session key or nonce is not the exact
// size the protocol requires.
var ErrBadKeySize = errors.New("cryptocore: key or nonce has wrong size")
