/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package cryptocore

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
)

// GCMTagSize is the length in bytes of the AES-GCM authentication tag.
const GCMTagSize = 16

// DeriveChunkIV copies base (IV0) and overwrites its last 4 bytes with
// index, big-endian. This is the critical per-chunk nonce derivation: the
// first 8 bytes come from the random base IV, the chunk index supplies
// uniqueness, so no two data messages in a session ever share a nonce even
// if IV0 collided across sessions (spec invariant P7).
func DeriveChunkIV(base [BaseIVSize]byte, index uint32) [BaseIVSize]byte {
	iv := base
	binary.BigEndian.PutUint32(iv[BaseIVSize-4:], index)
	return iv
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != SessionKeySize {
		return nil, ErrBadKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: new AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: new GCM: %w", err)
	}
	return gcm, nil
}

// SealChunk encrypts plaintext under (key, iv) with AES-256-GCM, with no
// additional authenticated data, and returns the ciphertext and the
// detached 16-byte authentication tag.
func SealChunk(key []byte, iv []byte, plaintext []byte) (ciphertext, authTag []byte, err error) {
	if len(iv) != BaseIVSize {
		return nil, nil, ErrBadKeySize
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - GCMTagSize
	return sealed[:split], sealed[split:], nil
}

// OpenChunk decrypts ciphertext sealed by SealChunk, verifying authTag.
// Any tampering with key, iv, ciphertext, or authTag causes ErrAuthFailure.
func OpenChunk(key []byte, iv []byte, ciphertext []byte, authTag []byte) ([]byte, error) {
	if len(iv) != BaseIVSize || len(authTag) != GCMTagSize {
		return nil, ErrAuthFailure
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+len(authTag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, authTag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrAuthFailure
	}
	return plaintext, nil
}
