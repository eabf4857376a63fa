/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package cryptocore

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return b
}

// TestSealOpenRoundTrip covers P1: openChunk(key, iv, sealChunk(key, iv, pt)) == pt.
func TestSealOpenRoundTrip(t *testing.T) {
	key := randomBytes(t, SessionKeySize)
	iv := randomBytes(t, BaseIVSize)

	for _, size := range []int{0, 1, 15, 64 * 1024, 70000} {
		plaintext := randomBytes(t, size)

		ciphertext, tag, err := SealChunk(key, iv, plaintext)
		if err != nil {
			t.Fatalf("SealChunk(size=%d): %v", size, err)
		}
		if len(tag) != GCMTagSize {
			t.Fatalf("authTag length = %d, want %d", len(tag), GCMTagSize)
		}

		got, err := OpenChunk(key, iv, ciphertext, tag)
		if err != nil {
			t.Fatalf("OpenChunk(size=%d): %v", size, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("OpenChunk(size=%d) round trip mismatch", size)
		}
	}
}

// TestOpenChunkTamperDetection covers P2: flipping any bit of ciphertext,
// tag, iv, or key causes OpenChunk to fail.
func TestOpenChunkTamperDetection(t *testing.T) {
	key := randomBytes(t, SessionKeySize)
	iv := randomBytes(t, BaseIVSize)
	plaintext := []byte("La-Vak E2E Test")

	ciphertext, tag, err := SealChunk(key, iv, plaintext)
	if err != nil {
		t.Fatalf("SealChunk: %v", err)
	}

	flipBit := func(b []byte) []byte {
		out := append([]byte(nil), b...)
		out[0] ^= 0x01
		return out
	}

	cases := map[string]struct {
		key, iv, ciphertext, tag []byte
	}{
		"tampered ciphertext": {key, iv, flipBit(ciphertext), tag},
		"tampered tag":        {key, iv, ciphertext, flipBit(tag)},
		"tampered iv":         {key, flipBit(iv), ciphertext, tag},
		"tampered key":        {flipBit(key), iv, ciphertext, tag},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := OpenChunk(c.key, c.iv, c.ciphertext, c.tag); err != ErrAuthFailure {
				t.Fatalf("OpenChunk with %s: got err=%v, want ErrAuthFailure", name, err)
			}
		})
	}
}

// TestDeriveChunkIVMonotonic covers P7: every index yields a distinct IV,
// with only the last 4 bytes varying.
func TestDeriveChunkIVMonotonic(t *testing.T) {
	var base [BaseIVSize]byte
	copy(base[:], randomBytes(t, BaseIVSize))

	seen := make(map[[BaseIVSize]byte]bool)
	for i := uint32(0); i < 1000; i++ {
		iv := DeriveChunkIV(base, i)
		if !bytes.Equal(iv[:BaseIVSize-4], base[:BaseIVSize-4]) {
			t.Fatalf("index %d: first 8 bytes of iv changed", i)
		}
		if seen[iv] {
			t.Fatalf("index %d: iv collided with a previous index", i)
		}
		seen[iv] = true
	}
}
