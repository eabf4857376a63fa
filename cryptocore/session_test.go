/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package cryptocore

import (
	"bytes"
	"testing"
)

// TestWrapUnwrapRoundTrip covers P3.
func TestWrapUnwrapRoundTrip(t *testing.T) {
	pub, _, err := GetKeyPair()
	if err != nil {
		t.Fatalf("GetKeyPair: %v", err)
	}

	key, _, err := GenerateSession()
	if err != nil {
		t.Fatalf("GenerateSession: %v", err)
	}

	wrapped, err := WrapSessionKey(pub, key[:])
	if err != nil {
		t.Fatalf("WrapSessionKey: %v", err)
	}

	unwrapped, err := UnwrapSessionKey(wrapped)
	if err != nil {
		t.Fatalf("UnwrapSessionKey: %v", err)
	}

	if !bytes.Equal(unwrapped, key[:]) {
		t.Fatal("unwrapped session key does not match original")
	}
}

func TestWrapSessionKeyRejectsBadSize(t *testing.T) {
	pub, _, err := GetKeyPair()
	if err != nil {
		t.Fatalf("GetKeyPair: %v", err)
	}
	if _, err := WrapSessionKey(pub, make([]byte, 31)); err != ErrBadKeySize {
		t.Fatalf("WrapSessionKey(31 bytes): got err=%v, want ErrBadKeySize", err)
	}
}

// TestGetKeyPairCached covers P4.
func TestGetKeyPairCached(t *testing.T) {
	pub1, priv1, err := GetKeyPair()
	if err != nil {
		t.Fatalf("GetKeyPair (first): %v", err)
	}
	pub2, priv2, err := GetKeyPair()
	if err != nil {
		t.Fatalf("GetKeyPair (second): %v", err)
	}
	if !bytes.Equal(pub1, pub2) {
		t.Fatal("public key PEM differs across calls")
	}
	if !bytes.Equal(priv1, priv2) {
		t.Fatal("private key PEM differs across calls")
	}
}

func TestGenerateSessionProducesDistinctValues(t *testing.T) {
	key1, iv1, err := GenerateSession()
	if err != nil {
		t.Fatalf("GenerateSession: %v", err)
	}
	key2, iv2, err := GenerateSession()
	if err != nil {
		t.Fatalf("GenerateSession: %v", err)
	}
	if key1 == key2 {
		t.Fatal("two calls to GenerateSession produced the same key")
	}
	if iv1 == iv2 {
		t.Fatal("two calls to GenerateSession produced the same base iv")
	}
}
