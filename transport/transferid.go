/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package transport

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newTransferID returns a random, collision-checked identifier: generate,
// check the live table, retry on the rare collision (up to 16 attempts).
func newTransferID(live map[string]*Transfer) (string, error) {
	for attempt := 0; attempt < 16; attempt++ {
		var raw [16]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return "", fmt.Errorf("transport: generate transfer id: %w", err)
		}
		id := hex.EncodeToString(raw[:])
		if _, taken := live[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("transport: could not allocate a unique transfer id")
}
