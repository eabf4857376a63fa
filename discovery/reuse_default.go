//go:build !linux

/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2026 La-Vak Authors. All Rights Reserved.
 */

package discovery

import "syscall"

// reuseControl is a no-op on platforms where SO_REUSEPORT either does not
// exist or is not needed for a single discovery socket per host. See
// reuse_linux.go for the Linux implementation.
func reuseControl(network, address string, c syscall.RawConn) error {
	return nil
}
