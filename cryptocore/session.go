/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package cryptocore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// SessionKeySize is the length in bytes of the AES-256 session key K.
const SessionKeySize = 32

// BaseIVSize is the length in bytes of the base nonce IV0 from which every
// per-chunk nonce is derived.
const BaseIVSize = 12

// GenerateSession returns a fresh 32-byte AES-256 key and 12-byte base IV
// drawn from a cryptographically secure RNG. Lifetime is one TLS
// connection; neither value is ever persisted.
func GenerateSession() (key [SessionKeySize]byte, iv [BaseIVSize]byte, err error) {
	if _, err = rand.Read(key[:]); err != nil {
		return key, iv, fmt.Errorf("cryptocore: generate session key: %w", err)
	}
	if _, err = rand.Read(iv[:]); err != nil {
		return key, iv, fmt.Errorf("cryptocore: generate session iv: %w", err)
	}
	return key, iv, nil
}

// WrapSessionKey seals a 32-byte session key under the peer's RSA public
// key using RSA-OAEP/SHA-256.
func WrapSessionKey(peerPublicKeyPEM []byte, key []byte) ([]byte, error) {
	if len(key) != SessionKeySize {
		return nil, ErrBadKeySize
	}
	pub, err := parsePublicKeyPEM(peerPublicKeyPEM)
	if err != nil {
		return nil, err
	}
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: wrap session key: %w", err)
	}
	return ciphertext, nil
}

// UnwrapSessionKey recovers the 32-byte session key wrapped by
// WrapSessionKey, using this process's private key.
func UnwrapSessionKey(ciphertext []byte) ([]byte, error) {
	priv, err := privateKey()
	if err != nil {
		return nil, err
	}
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptocore: unwrap session key: %w", err)
	}
	if len(plaintext) != SessionKeySize {
		return nil, ErrBadKeySize
	}
	return plaintext, nil
}
