/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package cryptocore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// hashChunkSize bounds the memory used by HashFile regardless of file size.
const hashChunkSize = 64 * 1024

// HashFile returns the lowercase hex SHA-256 digest of the file at path,
// computed by streaming read.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cryptocore: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("cryptocore: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
