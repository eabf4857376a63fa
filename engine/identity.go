/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
)

// newDeviceID derives this process's discovery identity from its hostname
// and process id (spec §3: "deviceId is derived from hostname and process
// id and is stable for the process lifetime. No persistent identity key."),
// hashed so it fits comfortably in a discovery hello payload.
func newDeviceID() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("engine: resolve hostname: %w", err)
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d", host, os.Getpid()))
	return hex.EncodeToString(sum[:8]), nil
}

// deviceName returns a human-readable label for this node, preferring the
// OS hostname.
func deviceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "la-vak-node"
	}
	return host
}

// platformString identifies the OS/arch pair this node is running on, sent
// in every discovery hello for display purposes only.
func platformString() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
