/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package cryptocore

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFileMatchesDirectSum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")

	content := append([]byte("La-Vak E2E Test"), randomBytesNoT(256)...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	want := sha256.Sum256(content)
	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if got != hex.EncodeToString(want[:]) {
		t.Fatalf("HashFile = %s, want %s", got, hex.EncodeToString(want[:]))
	}
}

func TestHashFileStreamsLargeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "large.bin")

	content := randomBytesNoT(10 * 1024 * 1024)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	want := sha256.Sum256(content)
	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if got != hex.EncodeToString(want[:]) {
		t.Fatal("HashFile mismatch on large file")
	}
}

func randomBytesNoT(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 2654435761 % 251)
	}
	return b
}
